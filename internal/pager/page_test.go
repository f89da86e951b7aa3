package pager

import (
	"bytes"
	"testing"
)

func TestPage_EmptyIsFullyFree(t *testing.T) {
	p := Empty(128)
	if got := p.Available(); got != PageSize/128 {
		t.Fatalf("Available() = %d, want %d", got, PageSize/128)
	}
	if p.Sealed() {
		t.Fatal("empty page reports sealed")
	}
}

func TestPage_AppendAndIterateRoundTrip(t *testing.T) {
	p := Empty(64)
	rows := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	for _, r := range rows {
		if err := p.Append(r); err != nil {
			t.Fatalf("Append(%q): %v", r, err)
		}
	}

	var got [][]byte
	it := p.Slots()
	for it.Next() {
		buf := make([]byte, len(it.Payload()))
		copy(buf, it.Payload())
		got = append(got, buf)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if !bytes.Equal(got[i], rows[i]) {
			t.Errorf("row %d = %q, want %q", i, got[i], rows[i])
		}
	}
}

func TestPage_AppendRejectsOversizedPayload(t *testing.T) {
	p := Empty(16) // 8-byte prefix leaves 8 bytes of payload capacity
	if err := p.Append(make([]byte, 9)); err == nil {
		t.Fatal("expected RowTooLarge for payload exceeding stride capacity")
	}
}

func TestPage_AppendRejectsWhenSealed(t *testing.T) {
	p := Empty(16)
	for i := 0; i < PageSize/16; i++ {
		if err := p.Append([]byte("x")); err != nil {
			t.Fatalf("unexpected append failure at slot %d: %v", i, err)
		}
	}
	if !p.Sealed() {
		t.Fatal("page should be sealed after filling every slot")
	}
	if err := p.Append([]byte("x")); err == nil {
		t.Fatal("expected RowTooLarge once page has no free slot")
	}
}

func TestPage_FromBytesReconstructsOccupiedPrefix(t *testing.T) {
	p := Empty(32)
	for _, v := range []string{"one", "two", "three"} {
		if err := p.Append([]byte(v)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	reconstructed, err := FromBytes(p.Bytes(), 32)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if reconstructed.Available() != p.Available() {
		t.Fatalf("Available() after reconstruction = %d, want %d", reconstructed.Available(), p.Available())
	}

	var values []string
	it := reconstructed.Slots()
	for it.Next() {
		values = append(values, string(it.Payload()))
	}
	want := []string{"one", "two", "three"}
	if len(values) != len(want) {
		t.Fatalf("reconstructed slot count = %d, want %d", len(values), len(want))
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("reconstructed slot %d = %q, want %q", i, values[i], want[i])
		}
	}
}

func TestPage_FromBytesEmptyBufferIsFullyFree(t *testing.T) {
	p, err := FromBytes(nil, 64)
	if err != nil {
		t.Fatalf("FromBytes(nil): %v", err)
	}
	if p.Available() != PageSize/64 {
		t.Fatalf("Available() = %d, want %d", p.Available(), PageSize/64)
	}
}

func TestSlotIterator_StopsAtZeroLengthSlot(t *testing.T) {
	p := Empty(32)
	if err := p.Append([]byte("only")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	count := 0
	it := p.Slots()
	for it.Next() {
		count++
	}
	if count != 1 {
		t.Fatalf("iterated %d slots, want 1", count)
	}
}
