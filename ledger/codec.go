package ledger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Each row is decoded independently of every other row — reverse iteration,
// crash-recovery tail reads and cold-start ring seeding all hand decodeEntry
// a single standalone slot payload — so the encoding cannot rely on any
// state shared across calls. That rules out encoding/gob here even though
// the teacher reaches for gob everywhere else (internal/storage/backend_disk.go):
// a fresh gob.Encoder emits a full type descriptor on every call, and that
// overhead does not reliably fit inside the 120 bytes of payload spec.md's
// stride R=128 leaves per row. A fixed binary layout has a size the ledger
// can reason about exactly, so it is used here instead.
//
// Layout: balance_after i64 | value i64 | kind u8 | created_at_unix_nanos i64
// | description_len u8 | description bytes.
const (
	codecFixedSize  = 8 + 8 + 1 + 8 + 1
	maxDescriptionN = 255
)

// encodeEntry serializes e into a compact fixed-layout payload. It returns
// ErrSerialization only if the description somehow exceeds what the
// one-byte length prefix can express, which NewDescription's 10-character
// limit already prevents in practice.
func encodeEntry(e Entry) ([]byte, error) {
	desc := []byte(e.Transaction.Description)
	if len(desc) > maxDescriptionN {
		return nil, fmt.Errorf("ledger: description %d bytes exceeds %d: %w", len(desc), maxDescriptionN, ErrSerialization)
	}

	buf := make([]byte, codecFixedSize+len(desc))
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.BalanceAfter))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.Transaction.Value))
	buf[16] = byte(e.Transaction.Kind)
	binary.BigEndian.PutUint64(buf[17:25], uint64(e.Transaction.CreatedAt.UnixNano()))
	buf[25] = byte(len(desc))
	copy(buf[26:], desc)

	return buf, nil
}

// decodeEntry deserializes a payload previously produced by encodeEntry.
func decodeEntry(payload []byte) (Entry, error) {
	if len(payload) < codecFixedSize {
		return Entry{}, fmt.Errorf("ledger: entry payload %d bytes shorter than fixed header %d: %w",
			len(payload), codecFixedSize, ErrDeserialization)
	}

	balanceAfter := int64(binary.BigEndian.Uint64(payload[0:8]))
	value := int64(binary.BigEndian.Uint64(payload[8:16]))
	kind := TransactionType(payload[16])
	createdAtNanos := int64(binary.BigEndian.Uint64(payload[17:25]))
	descLen := int(payload[25])

	if codecFixedSize+descLen != len(payload) {
		return Entry{}, fmt.Errorf("ledger: entry declares description length %d, payload is %d bytes: %w",
			descLen, len(payload), ErrDeserialization)
	}
	description := Description(payload[codecFixedSize:])

	return Entry{
		BalanceAfter: balanceAfter,
		Transaction: Transaction{
			Value:       value,
			Kind:        kind,
			Description: description,
			CreatedAt:   time.Unix(0, createdAtNanos).UTC(),
		},
	}, nil
}
