package pager

import (
	"context"

	"github.com/esporadb/espora/internal/lockfile"
)

// AsyncStore offers the identical Log Store contract as Store from a
// cooperative-async caller's point of view. Go has no native async/await,
// so every operation is handed to a single dedicated worker goroutine
// through a request channel; the caller selects between the reply channel
// and ctx.Done(), never blocking the calling goroutine on file I/O itself
// once the request has been handed off. This mirrors the worker-pool-over-
// channels pattern used for the rest of the engine's concurrency, scaled
// down to one worker because Store already serializes its own state with
// an internal mutex and a second concurrent worker would buy nothing.
type AsyncStore struct {
	store *Store
	reqs  chan asyncRequest
	done  chan struct{}
}

type asyncRequest struct {
	run   func() (any, error)
	reply chan asyncResult
}

type asyncResult struct {
	value any
	err   error
}

// OpenAsync opens the log file exactly as Open does and starts the worker
// goroutine that serializes all operations issued through the returned
// AsyncStore.
func OpenAsync(path string, opts Options) (*AsyncStore, error) {
	store, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	a := &AsyncStore{
		store: store,
		reqs:  make(chan asyncRequest),
		done:  make(chan struct{}),
	}
	go a.worker()
	return a, nil
}

func (a *AsyncStore) worker() {
	defer close(a.done)
	for req := range a.reqs {
		value, err := req.run()
		req.reply <- asyncResult{value: value, err: err}
	}
}

// call submits fn to the worker and waits for either its result or ctx to
// be done. If ctx is done first, the worker still completes fn in the
// background (the operation is not actually cancelled mid-flight — cancel
// only stops the caller from waiting on it, per spec.md's note that
// cancellation between suspension points leaves the file unchanged but
// in-flight work already past a suspension point runs to completion).
func (a *AsyncStore) call(ctx context.Context, fn func() (any, error)) (any, error) {
	reply := make(chan asyncResult, 1)
	select {
	case a.reqs <- asyncRequest{run: fn, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Append is the async analogue of Store.Append.
func (a *AsyncStore) Append(ctx context.Context, payload []byte) error {
	_, err := a.call(ctx, func() (any, error) {
		return nil, a.store.Append(payload)
	})
	return err
}

// AcquireExclusiveWriteLock is the async analogue of
// Store.AcquireExclusiveWriteLock.
func (a *AsyncStore) AcquireExclusiveWriteLock(ctx context.Context) (*lockfile.Lock, error) {
	v, err := a.call(ctx, func() (any, error) {
		return a.store.AcquireExclusiveWriteLock()
	})
	if err != nil {
		return nil, err
	}
	return v.(*lockfile.Lock), nil
}

// Close stops the worker and releases the underlying Store's file handles.
// No further calls may be made on this AsyncStore afterward.
func (a *AsyncStore) Close(ctx context.Context) error {
	_, err := a.call(ctx, func() (any, error) {
		return nil, a.store.Close()
	})
	close(a.reqs)
	<-a.done
	return err
}

// AsyncRowIterator yields (payload, error) pairs over a channel, the
// async analogue of ForwardIterator/ReverseIterator: the Go stand-in for
// the Rust Stream the original engine exposes in its tokio variant.
type AsyncRowIterator struct {
	ch <-chan asyncRow
}

type asyncRow struct {
	payload []byte
	err     error
}

// Next receives the next (payload, error) pair, or reports ok=false once
// the iterator is exhausted.
func (it *AsyncRowIterator) Next(ctx context.Context) (payload []byte, err error, ok bool) {
	select {
	case row, open := <-it.ch:
		if !open {
			return nil, nil, false
		}
		return row.payload, row.err, true
	case <-ctx.Done():
		return nil, ctx.Err(), true
	}
}

// IterateForward is the async analogue of Store.IterateForward. Paging
// happens on the worker goroutine; each page's rows are pushed to the
// returned channel-backed iterator, suspending the producer between pages
// exactly as spec.md requires for the async variant.
func (a *AsyncStore) IterateForward(ctx context.Context) (*AsyncRowIterator, error) {
	v, err := a.call(ctx, func() (any, error) {
		return a.store.IterateForward()
	})
	if err != nil {
		return nil, err
	}
	fwd := v.(*ForwardIterator)
	return &AsyncRowIterator{ch: a.streamForward(ctx, fwd)}, nil
}

func (a *AsyncStore) streamForward(ctx context.Context, fwd *ForwardIterator) <-chan asyncRow {
	out := make(chan asyncRow)
	go func() {
		defer close(out)
		defer fwd.Close()
		for {
			v, err := a.call(ctx, func() (any, error) {
				return fwd.Next(), nil
			})
			if err != nil {
				select {
				case out <- asyncRow{err: err}:
				case <-ctx.Done():
				}
				return
			}
			hasNext := v.(bool)
			if !hasNext {
				if err := fwd.Err(); err != nil {
					select {
					case out <- asyncRow{err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case out <- asyncRow{payload: fwd.Payload()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// IterateReverse is the async analogue of Store.IterateReverse.
func (a *AsyncStore) IterateReverse(ctx context.Context) (*AsyncRowIterator, error) {
	v, err := a.call(ctx, func() (any, error) {
		return a.store.IterateReverse()
	})
	if err != nil {
		return nil, err
	}
	rev := v.(*ReverseIterator)
	out := make(chan asyncRow)
	go func() {
		defer close(out)
		defer rev.Close()
		for {
			v, err := a.call(ctx, func() (any, error) {
				return rev.Next(), nil
			})
			if err != nil {
				select {
				case out <- asyncRow{err: err}:
				case <-ctx.Done():
				}
				return
			}
			hasNext := v.(bool)
			if !hasNext {
				if err := rev.Err(); err != nil {
					select {
					case out <- asyncRow{err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case out <- asyncRow{payload: rev.Payload()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &AsyncRowIterator{ch: out}, nil
}
