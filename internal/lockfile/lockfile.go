// Package lockfile provides the advisory, whole-file exclusive lock that
// Log Store uses to mediate cross-process writer exclusion. It wraps
// flock(2) directly on an already-open file descriptor: flock locks the
// open file (inode), not a path, so two processes racing to open the same
// log file still serialize correctly as long as both go through Acquire.
//
// This is a blocking-only, exclusive-only lock: the engine never takes a
// shared/read lock, and callers that need a timeout wrap Acquire themselves
// (the engine layer imposes none, per spec).
package lockfile

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Lock represents a held advisory exclusive lock. Close releases it.
type Lock struct {
	file *os.File
}

// Acquire blocks until an exclusive advisory lock on f is obtained. The
// caller retains ownership of f; Close on the returned Lock releases the
// lock but does not close f.
func Acquire(f *os.File) (*Lock, error) {
	if err := flockRetryEINTR(int(f.Fd()), unix.LOCK_EX); err != nil {
		return nil, fmt.Errorf("lockfile: acquire exclusive lock: %w", err)
	}
	return &Lock{file: f}, nil
}

// Close releases the lock. It is idempotent.
func (l *Lock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := flockRetryEINTR(int(l.file.Fd()), unix.LOCK_UN)
	l.file = nil
	if err != nil {
		return fmt.Errorf("lockfile: release lock: %w", err)
	}
	return nil
}

// flockRetryEINTR calls unix.Flock, retrying on EINTR the way blocking
// syscalls that can be interrupted by a signal must be retried.
func flockRetryEINTR(fd int, how int) error {
	for {
		err := unix.Flock(fd, how)
		if err == syscall.EINTR {
			continue
		}
		return err
	}
}
