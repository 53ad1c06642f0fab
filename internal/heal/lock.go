package heal

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrSessionActive is returned when another healing session already holds
// the advisory lock for the same journey and output directory.
var ErrSessionActive = errors.New("another healing session holds the lock for this journey")

// sessionLock is an advisory flock keyed by the heal-log path. Two sessions
// writing the same journey's log would corrupt the read-modify-write cycle,
// so the second acquirer is rejected rather than queued.
type sessionLock struct {
	path string
	file *os.File
}

func newSessionLock(logPath string) *sessionLock {
	return &sessionLock{path: logPath + ".lock"}
}

// TryLock acquires the lock without blocking.
func (l *sessionLock) TryLock() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrSessionActive
		}
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	l.file = f
	return nil
}

// Unlock releases the lock and closes the file.
func (l *sessionLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		l.file = nil
		return err
	}
	err := l.file.Close()
	l.file = nil
	return err
}
