// Package logging provides structured logging for the audiowatch daemon.
//
// It wraps Go's log/slog to produce JSON lines, one per event, with
// persistent attributes attached through child loggers. Monitor workers tag
// their logs with worker kind, slot, and pool generation so a single log file
// can be filtered per worker or per producer after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/audiowatch", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	workerLog := logger.WithGeneration(3).WithWorker("steady", 7)
//	workerLog.WithProducer("alice").Info("item notified", "item", "101")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"item notified","generation":3,"worker_kind":"steady","worker_slot":7,"producer":"alice","item":"101"}
//
// # Rotation
//
// When a directory is given, output goes through a [RotatingWriter] which
// renames the live file to .1 once it exceeds MaxSizeMB, keeps MaxBackups
// older files, and optionally gzips them in the background.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package logging
