package pager

import (
	"fmt"
	"io"
	"os"
)

// ───────────────────────────────────────────────────────────────────────────
// Forward iteration
// ───────────────────────────────────────────────────────────────────────────

// ForwardIterator walks a Log File from its first page to its last, in
// insertion order. It opens its own read handle independent of the Store's
// writer, so it never disturbs the writer's position. It does not record
// the file length when it is created; it reads page after page until a
// short read, so appends made after IterateForward returns may or may not
// be observed.
type ForwardIterator struct {
	file    *os.File
	stride  int
	pageIdx int64
	slots   *SlotIterator
	cur     []byte
	err     error
	done    bool
}

// IterateForward returns a fresh forward iterator over the store's log
// file. Callers must call Close when finished.
func (s *Store) IterateForward() (*ForwardIterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("pager: open %q for forward iteration: %w", s.path, joinIO(err))
	}
	return &ForwardIterator{file: f, stride: s.stride}, nil
}

// Next advances to the next occupied slot, loading further pages as
// needed. It returns false at end of file or after a fatal I/O error; a
// per-row framing error does not stop iteration, only the page in which it
// occurred.
func (it *ForwardIterator) Next() bool {
	if it.done {
		return false
	}
	for {
		if it.slots != nil {
			if it.slots.Next() {
				it.cur = it.slots.Payload()
				return true
			}
			if err := it.slots.Err(); err != nil {
				it.err = err
			}
			it.slots = nil
		}

		buf := make([]byte, PageSize)
		n, err := it.file.ReadAt(buf, it.pageIdx*PageSize)
		if err != nil && err != io.EOF {
			it.err = fmt.Errorf("pager: read page %d: %w", it.pageIdx, joinIO(err))
			it.done = true
			return false
		}
		if n < PageSize {
			it.done = true
			return false
		}

		page, err := FromBytes(buf, it.stride)
		if err != nil {
			it.err = fmt.Errorf("pager: decode page %d: %w", it.pageIdx, err)
			it.done = true
			return false
		}
		it.pageIdx++
		it.slots = page.Slots()
	}
}

// Payload returns the payload produced by the most recent call to Next.
func (it *ForwardIterator) Payload() []byte {
	return it.cur
}

// Err returns the first error observed during iteration, if any.
func (it *ForwardIterator) Err() error {
	return it.err
}

// Close releases the iterator's read handle.
func (it *ForwardIterator) Close() error {
	return it.file.Close()
}

// ───────────────────────────────────────────────────────────────────────────
// Reverse iteration
// ───────────────────────────────────────────────────────────────────────────

// ReverseIterator walks a Log File from its last page to its first,
// yielding each page's rows in reverse order, so the overall sequence is
// the concatenation of each page's rows reversed, in reverse page order.
type ReverseIterator struct {
	file    *os.File
	stride  int
	size    int64
	nextK   int64 // 1-based page count from the end still to read
	pending [][]byte
	idx     int
	cur     []byte
	err     error
	done    bool
}

// IterateReverse returns a fresh reverse iterator over the store's log
// file. Callers must call Close when finished.
func (s *Store) IterateReverse() (*ReverseIterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("pager: open %q for reverse iteration: %w", s.path, joinIO(err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %q for reverse iteration: %w", s.path, joinIO(err))
	}
	return &ReverseIterator{file: f, stride: s.stride, size: info.Size(), nextK: 1}, nil
}

// Next advances to the next row in reverse order.
func (it *ReverseIterator) Next() bool {
	if it.done {
		return false
	}
	for {
		if it.idx < len(it.pending) {
			it.cur = it.pending[it.idx]
			it.idx++
			return true
		}

		offset := it.size - PageSize*it.nextK
		if offset < 0 {
			it.done = true
			return false
		}

		buf := make([]byte, PageSize)
		if _, err := it.file.ReadAt(buf, offset); err != nil && err != io.EOF {
			it.err = fmt.Errorf("pager: read page at offset %d: %w", offset, joinIO(err))
			it.done = true
			return false
		}

		page, err := FromBytes(buf, it.stride)
		if err != nil {
			it.err = fmt.Errorf("pager: decode page at offset %d: %w", offset, err)
			it.done = true
			return false
		}
		it.nextK++

		var forward [][]byte
		si := page.Slots()
		for si.Next() {
			forward = append(forward, si.Payload())
		}
		if serr := si.Err(); serr != nil {
			it.err = serr
		}

		for i, j := 0, len(forward)-1; i < j; i, j = i+1, j-1 {
			forward[i], forward[j] = forward[j], forward[i]
		}
		it.pending = forward
		it.idx = 0

		if len(it.pending) == 0 {
			continue
		}
	}
}

// Payload returns the payload produced by the most recent call to Next.
func (it *ReverseIterator) Payload() []byte {
	return it.cur
}

// Err returns the first error observed during iteration, if any.
func (it *ReverseIterator) Err() error {
	return it.err
}

// Close releases the iterator's read handle.
func (it *ReverseIterator) Close() error {
	return it.file.Close()
}
