// Package pager implements the append-only, fixed-row, paged log store that
// backs every account ledger: a single regular file laid out as a sequence
// of fixed-size pages, each page an ordered sequence of fixed-stride slots.
//
// On-disk layout:
//
//	file := page(0) ++ page(1) ++ ... ++ page(n-1)      -- len(file) % 4096 == 0
//	page := slot(0) ++ slot(1) ++ ... ++ slot(k-1) ++ zero-padding(k = floor(4096/R))
//	slot := len:u64(big-endian) ++ payload[:len] ++ zero-padding(R-8-len)
//
// A slot whose first 8 bytes are all zero is empty and marks the end of the
// occupied prefix of its page; no valid payload ever encodes to zero bytes.
// Page is the leaf component: it owns slot framing only, nothing about the
// file or I/O. Store (store.go) owns the file and the tail-page rewrite
// protocol; AsyncStore (async.go) offers the identical contract from a
// cooperative-async caller's point of view.
package pager

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the fixed size in bytes of every page in a Log File.
const PageSize = 4096

// lengthPrefixSize is the width in bytes of a slot's length prefix.
const lengthPrefixSize = 8

// Page is a fixed 4096-byte buffer holding an ordered sequence of
// fixed-stride slots. It is not safe for concurrent use; Store serializes
// access to the tail page it owns.
type Page struct {
	stride int
	data   []byte // always len(data) == PageSize
	free   int    // bytes free, i.e. PageSize - occupied prefix length
}

// Empty returns a new, fully free page for the given slot stride.
func Empty(stride int) *Page {
	return &Page{
		stride: stride,
		data:   make([]byte, PageSize),
		free:   PageSize,
	}
}

// FromBytes reconstructs a page from a raw 4096-byte (or shorter, for a
// partially-read tail) buffer for the given slot stride. It scans slots
// from offset 0 in steps of stride; the last slot whose length prefix is
// nonzero determines the occupied prefix. A buffer shorter than PageSize is
// treated as if zero-padded to PageSize.
func FromBytes(buf []byte, stride int) (*Page, error) {
	if stride < lengthPrefixSize {
		return nil, fmt.Errorf("pager: slot stride %d smaller than length prefix", stride)
	}
	data := make([]byte, PageSize)
	copy(data, buf)

	occupied := 0
	for off := 0; off+stride <= PageSize; off += stride {
		length := binary.BigEndian.Uint64(data[off : off+lengthPrefixSize])
		if length == 0 {
			break
		}
		occupied = off + stride
	}

	return &Page{
		stride: stride,
		data:   data,
		free:   PageSize - occupied,
	}, nil
}

// Stride returns the slot width this page was constructed with.
func (p *Page) Stride() int {
	return p.stride
}

// Available returns the number of unused slots remaining in the page.
func (p *Page) Available() int {
	return p.free / p.stride
}

// Bytes borrows the page's current byte image; callers must not retain it
// across a further Append, which mutates the underlying array in place.
func (p *Page) Bytes() []byte {
	return p.data
}

// Append writes payload into the next free slot. It returns ErrRowTooLarge
// if the page has no free slot, or if the payload plus its length prefix
// does not fit within one slot.
func (p *Page) Append(payload []byte) error {
	if lengthPrefixSize+len(payload) > p.stride {
		return fmt.Errorf("pager: encoded payload %d bytes exceeds slot capacity %d: %w",
			len(payload), p.stride-lengthPrefixSize, ErrRowTooLarge)
	}
	if p.free < p.stride {
		return fmt.Errorf("pager: page has no free slot: %w", ErrRowTooLarge)
	}

	offset := PageSize - p.free
	binary.BigEndian.PutUint64(p.data[offset:offset+lengthPrefixSize], uint64(len(payload)))
	copy(p.data[offset+lengthPrefixSize:], payload)
	// Zero the remainder of the slot in case this buffer was reused.
	for i := offset + lengthPrefixSize + len(payload); i < offset+p.stride; i++ {
		p.data[i] = 0
	}

	p.free -= p.stride
	return nil
}

// Sealed reports whether the page has no remaining free slot.
func (p *Page) Sealed() bool {
	return p.free < p.stride
}

// SlotIterator yields occupied payloads from a page in insertion order. It
// stops at the first slot whose length prefix is zero or at end of page.
// The zero value is not usable; construct one with Page.Slots.
type SlotIterator struct {
	page   *Page
	offset int
	cur    []byte
	err    error
	done   bool
}

// Slots returns a fresh iterator over this page's occupied slots.
func (p *Page) Slots() *SlotIterator {
	return &SlotIterator{page: p}
}

// Next advances the iterator. It returns false once iteration is exhausted
// or a framing error has been observed; call Err afterward to distinguish
// the two.
func (it *SlotIterator) Next() bool {
	if it.done {
		return false
	}
	p := it.page
	if it.offset+p.stride > PageSize {
		it.done = true
		return false
	}
	length := binary.BigEndian.Uint64(p.data[it.offset : it.offset+lengthPrefixSize])
	if length == 0 {
		it.done = true
		return false
	}
	start := it.offset + lengthPrefixSize
	end := start + int(length)
	if end > it.offset+p.stride || end > PageSize {
		it.err = fmt.Errorf("pager: slot at offset %d declares length %d beyond stride", it.offset, length)
		it.done = true
		return false
	}
	it.cur = p.data[start:end]
	it.offset += p.stride
	return true
}

// Payload returns the payload produced by the most recent call to Next.
func (it *SlotIterator) Payload() []byte {
	return it.cur
}

// Err returns the first framing error encountered, if any.
func (it *SlotIterator) Err() error {
	return it.err
}
