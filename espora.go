// Package espora is the thin public surface over internal/pager, mirroring
// the original espora-db crate's split between a low-level Db type and a
// fluent Builder (original_source/espora-db/src/builder.rs): most callers
// in this repository use ledger.OpenCached/OpenUncached instead, which
// already know the ledger's row stride; this package exists for anyone
// embedding the bare log store directly, outside the ledger's business
// rule.
package espora

import (
	"time"

	"github.com/esporadb/espora/internal/pager"
)

// Store is the append-only, fixed-row, paged log store described by
// spec.md. It is a type alias so that callers constructing one through
// Builder and callers reaching into internal/pager directly (as ledger
// does) share the exact same type.
type Store = pager.Store

// SyncPolicy governs when Store.Append fsyncs.
type SyncPolicy = pager.SyncPolicy

const (
	SyncNever            = pager.SyncNever
	SyncAfterEveryAppend = pager.SyncAfterEveryAppend
	SyncInterval         = pager.SyncInterval
)

// Builder constructs a Store with a fluent configuration API, mirroring
// the original Rust crate's Builder.
type Builder struct {
	syncPolicy   SyncPolicy
	syncInterval time.Duration
}

// NewBuilder returns a Builder defaulting to SyncNever, matching
// pager.DefaultOptions.
func NewBuilder() *Builder {
	return &Builder{syncPolicy: SyncNever}
}

// WithSyncWrite selects SyncAfterEveryAppend when enabled is true, or
// SyncNever otherwise, mirroring the original Builder::sync_write.
func (b *Builder) WithSyncWrite(enabled bool) *Builder {
	if enabled {
		b.syncPolicy = SyncAfterEveryAppend
	} else {
		b.syncPolicy = SyncNever
	}
	return b
}

// WithSyncInterval selects SyncInterval with the given duration.
func (b *Builder) WithSyncInterval(d time.Duration) *Builder {
	b.syncPolicy = SyncInterval
	b.syncInterval = d
	return b
}

// Build opens (or creates) the log file at path with the given slot
// stride and the builder's configured sync policy.
func (b *Builder) Build(path string, stride int) (*Store, error) {
	return pager.Open(path, pager.Options{
		Stride:       stride,
		SyncPolicy:   b.syncPolicy,
		SyncInterval: b.syncInterval,
	})
}
