package pager

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/esporadb/espora/internal/lockfile"
)

// ───────────────────────────────────────────────────────────────────────────
// Sync policy
// ───────────────────────────────────────────────────────────────────────────

// SyncPolicy governs when Store.Append calls fsync on the underlying file.
type SyncPolicy int

const (
	// SyncNever never fsyncs; durability is left entirely to the OS page
	// cache. Legal for a ledger, but durability is then undefined.
	SyncNever SyncPolicy = iota
	// SyncAfterEveryAppend fsyncs after every single append.
	SyncAfterEveryAppend
	// SyncInterval fsyncs only when the wall time since the last fsync
	// exceeds the configured interval. An interval of 0 behaves exactly
	// like SyncAfterEveryAppend.
	SyncInterval
)

// String returns a human-readable label for the policy.
func (p SyncPolicy) String() string {
	switch p {
	case SyncNever:
		return "Never"
	case SyncAfterEveryAppend:
		return "AfterEveryAppend"
	case SyncInterval:
		return "Interval"
	default:
		return "Unknown"
	}
}

// Options configures a Store at open time.
type Options struct {
	// Stride is the fixed slot width R in bytes. Required; 8+max payload
	// size must fit within it, and it is fixed for the life of the file.
	Stride int
	// SyncPolicy selects the fsync-throttling behavior. Defaults to
	// SyncNever (the zero value) if left unset by the caller via
	// DefaultOptions.
	SyncPolicy SyncPolicy
	// SyncInterval is only consulted when SyncPolicy == SyncInterval.
	SyncInterval time.Duration
}

// DefaultOptions returns Options with SyncPolicy explicitly set to
// SyncNever and the given stride.
func DefaultOptions(stride int) Options {
	return Options{Stride: stride, SyncPolicy: SyncNever}
}

// ───────────────────────────────────────────────────────────────────────────
// Store
// ───────────────────────────────────────────────────────────────────────────

// Store owns a single append-only Log File. It maintains exactly one
// resident page, the tail, which it rewrites in place until full and then
// rolls to a fresh page at the next file offset. Store is safe for
// concurrent use by multiple goroutines within one process; cross-process
// exclusion is the caller's responsibility via AcquireExclusiveWriteLock.
type Store struct {
	mu sync.Mutex

	path   string
	stride int

	writer *os.File // exclusive to writes and the tail page
	reader *os.File // opened and closed with the store; iterators open their own handles

	tail       *Page
	tailOffset int64 // file offset of the start of the tail page

	syncPolicy   SyncPolicy
	syncInterval time.Duration
	lastSync     time.Time

	closed bool
}

// Open opens (creating if absent) the log file at path and reconstructs
// the tail page from the bytes on disk, per spec.md §4.2's construction
// algorithm: if the file is at least one page long, the final page becomes
// the in-memory tail and the write position seeks back to its start (when
// that page has no free slot, an empty tail starts at the next page
// offset instead); otherwise the store starts with a fresh empty tail at
// the end of file.
func Open(path string, opts Options) (*Store, error) {
	if opts.Stride < lengthPrefixSize {
		return nil, fmt.Errorf("pager: stride %d too small for length prefix", opts.Stride)
	}

	writer, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %q for writing: %w", path, joinIO(err))
	}
	reader, err := os.Open(path)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("pager: open %q for reading: %w", path, joinIO(err))
	}

	info, err := writer.Stat()
	if err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("pager: stat %q: %w", path, joinIO(err))
	}

	s := &Store{
		path:         path,
		stride:       opts.Stride,
		writer:       writer,
		reader:       reader,
		syncPolicy:   opts.SyncPolicy,
		syncInterval: opts.SyncInterval,
		lastSync:     time.Now(),
	}

	size := info.Size()
	if size >= PageSize {
		tailOffset := (size/PageSize - 1) * PageSize
		// size may not be an exact multiple of PageSize if a previous
		// process crashed mid-write; read only the final full page.
		buf := make([]byte, PageSize)
		if _, err := writer.ReadAt(buf, tailOffset); err != nil && err != io.EOF {
			writer.Close()
			reader.Close()
			return nil, fmt.Errorf("pager: read tail page of %q: %w", path, joinIO(err))
		}
		page, err := FromBytes(buf, opts.Stride)
		if err != nil {
			writer.Close()
			reader.Close()
			return nil, fmt.Errorf("pager: reconstruct tail page of %q: %w", path, err)
		}
		if page.Sealed() {
			// The final page is full: the next append starts a new page.
			page = Empty(opts.Stride)
			tailOffset += PageSize
		}
		s.tail = page
		s.tailOffset = tailOffset
	} else {
		s.tail = Empty(opts.Stride)
		s.tailOffset = 0
	}

	if _, err := writer.Seek(s.tailOffset, io.SeekStart); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("pager: seek to tail offset of %q: %w", path, joinIO(err))
	}

	return s, nil
}

// Append serializes and appends one pre-encoded row payload. It returns
// ErrRowTooLarge if the payload does not fit in one slot (a configuration
// error, not a transient one). I/O errors are surfaced as ErrIO-wrapped
// errors; the store should be considered poisoned afterward and reopened.
func (s *Store) Append(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.tail.Append(payload); err != nil {
		return err
	}

	if _, err := s.writer.WriteAt(s.tail.Bytes(), s.tailOffset); err != nil {
		return fmt.Errorf("pager: write tail page of %q: %w", s.path, joinIO(err))
	}

	if s.shouldSync() {
		if err := s.writer.Sync(); err != nil {
			return fmt.Errorf("pager: fsync %q: %w", s.path, joinIO(err))
		}
		s.lastSync = time.Now()
	}

	if s.tail.Sealed() {
		s.tailOffset += PageSize
		s.tail = Empty(s.stride)
	}

	return nil
}

// shouldSync reports whether the configured sync policy calls for an
// fsync right now. Caller must hold s.mu.
func (s *Store) shouldSync() bool {
	switch s.syncPolicy {
	case SyncAfterEveryAppend:
		return true
	case SyncInterval:
		return time.Since(s.lastSync) >= s.syncInterval
	default:
		return false
	}
}

// AcquireExclusiveWriteLock takes an advisory whole-file exclusive lock on
// the log file, blocking until available. The returned handle releases the
// lock when Close is called. The lock is advisory: it coordinates only with
// other callers that also call this method; it does not serialize readers.
func (s *Store) AcquireExclusiveWriteLock() (*lockfile.Lock, error) {
	s.mu.Lock()
	writer := s.writer
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	lock, err := lockfile.Acquire(writer)
	if err != nil {
		return nil, fmt.Errorf("pager: %w: %v", ErrLockUnavailable, err)
	}
	return lock, nil
}

// Close releases both file handles. Closing the writer handle also drops
// an exclusive lock taken through it, after which that Lock's Close
// reports an error; callers must close locks they hold before closing Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return fmt.Errorf("pager: close writer handle for %q: %w", s.path, joinIO(werr))
	}
	if rerr != nil {
		return fmt.Errorf("pager: close reader handle for %q: %w", s.path, joinIO(rerr))
	}
	return nil
}

// joinIO wraps err so that errors.Is(err, ErrIO) succeeds while the
// original error remains visible via %v/Unwrap chains.
func joinIO(err error) error {
	return fmt.Errorf("%w: %v", ErrIO, err)
}
