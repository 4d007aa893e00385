package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// ProfileLockFileName is the lock file written inside the browser profile.
const ProfileLockFileName = "audiowatch.lock"

// ErrProfileLocked is returned when another live daemon owns the profile.
var ErrProfileLocked = errors.New("browser profile is in use by another process")

// ProfileLock records which daemon owns a browser profile directory. Two
// browsers on one profile corrupt each other's state, so run takes this lock
// before the first launch and holds it across relaunches.
type ProfileLock struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`

	path   string
	logger *logging.Logger
}

// AcquireProfileLock takes the lock on profileDir. A lock left by a dead
// process is removed. logger may be nil.
func AcquireProfileLock(profileDir string, logger *logging.Logger) (*ProfileLock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	path := filepath.Join(profileDir, ProfileLockFileName)

	if existing, err := readProfileLock(path); err == nil {
		if isProcessAlive(existing.PID) && existing.PID != os.Getpid() {
			return nil, fmt.Errorf("%w: PID %d on %s", ErrProfileLocked, existing.PID, existing.Hostname)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
		logger.Warn("stale profile lock cleaned", "old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &ProfileLock{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		path:      path,
		logger:    logger,
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	// O_EXCL loses cleanly to a daemon that started in between.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrProfileLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	logger.Info("profile lock acquired", "profile_dir", profileDir, "pid", lock.PID)
	return lock, nil
}

// Release removes the lock if this process still owns it. Safe to call
// multiple times.
func (l *ProfileLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	existing, err := readProfileLock(l.path)
	if err != nil || existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil {
		return err
	}
	l.logger.Info("profile lock released")
	return nil
}

func readProfileLock(path string) (*ProfileLock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock ProfileLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	lock.path = path
	return &lock, nil
}

// isProcessAlive sends signal 0, which checks existence without side effects.
// EPERM means the process exists but belongs to another user.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
