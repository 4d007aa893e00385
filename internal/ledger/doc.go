// Package ledger is the persisted deduplication record of notified items.
//
// A [Ledger] maps each tracked producer to the ordered identifiers of items a
// notification was dispatched for. It is the single source of truth for
// "already notified": a worker records an identifier only after delivery
// succeeds, and never dispatches for an identifier the ledger holds.
//
// # Persistence
//
// The document is a flat, indented JSON object:
//
//	{
//	  "alice": ["101", "102"],
//	  "bob": []
//	}
//
// [FileStore] rewrites it on every mutation by writing <path>.tmp and
// renaming it over <path>, so a crash never leaves a truncated file. With
// [WithFileLock] each read-modify-write holds an flock on <path>.lock, which
// lets the CLI track producers while the daemon is running.
//
// Memory is updated only after the write succeeds. A write that still fails
// after retries returns an error wrapping errors.ErrPersist and leaves the
// ledger unchanged, so the item is delivered again on the next cycle.
//
// # Watching
//
// [Watcher] reloads the ledger when the file changes and reports producers
// added by another process.
package ledger
