package pager

import "errors"

// Sentinel errors returned by this package. Callers should use errors.Is
// against these rather than matching on message text; I/O, row-size, lock
// and closed-store failures wrap one of these via fmt.Errorf("...: %w", ...).
// A stride smaller than the length prefix and a slot whose declared length
// runs past its stride are reported as plain errors that wrap none of them.
var (
	// ErrIO wraps any failure from the underlying file (open, seek, read,
	// write, fsync). An append that fails with ErrIO leaves the in-memory
	// tail in an "attempted" state; reopening the store re-derives the tail
	// from the bytes actually on disk.
	ErrIO = errors.New("pager: io error")

	// ErrRowTooLarge is returned when an encoded row does not fit the
	// slot stride, i.e. 8+len(payload) > R. Nothing is written.
	ErrRowTooLarge = errors.New("pager: row too large for slot stride")

	// ErrLockUnavailable is returned when the advisory exclusive lock
	// cannot be acquired.
	ErrLockUnavailable = errors.New("pager: exclusive lock unavailable")

	// ErrClosed is returned by any operation attempted on a Store after
	// Close has been called.
	ErrClosed = errors.New("pager: store is closed")
)
