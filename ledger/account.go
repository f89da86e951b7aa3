// Package ledger implements the per-account credit/debit ledger described
// by spec.md §4.3: one Log Store per account, whose rows are the pair
// (running balance, transaction), with the debit rule enforced against the
// most recently stored row.
//
// Two deployment modes share one core: OpenCached keeps an in-process
// mirror of the latest balance and the last 10 transactions (grounded on
// original_source/rinha-espora-server/src/main.rs), OpenUncached always
// re-reads the tail under the exclusive lock (grounded on
// original_source/rinha-espora-embedded/src/main.rs). Both take the Log
// Store's advisory exclusive lock around the read-latest/append pair,
// which is what makes the ledger invariant hold even when another process
// shares the same file.
package ledger

import (
	"container/ring"
	"fmt"
	"sync"

	"github.com/esporadb/espora/internal/pager"
)

// LedgerStride is the slot width fixed for ledger files, per spec.md §4.3.
// It is a deployment parameter, chosen empirically, not derived.
const LedgerStride = 128

// ringSize is the number of most-recent transactions a cached Account
// mirrors in memory ("ultimas_transacoes").
const ringSize = 10

// Account is one per-account ledger. It is safe for concurrent use: an
// internal mutex serializes same-process callers before the cross-process
// exclusive lock is even attempted, mirroring the teacher's
// sync.RWMutex-guarded Pager.
type Account struct {
	mu     sync.Mutex
	store  *pager.Store
	limit  int64
	cached bool

	// Only meaningful when cached is true.
	balance int64
	history *ring.Ring // of Entry values, oldest-to-newest write order
}

// OpenCached opens (or creates) the account's log file in cached mode: the
// latest balance and the last 10 transactions are mirrored in memory and
// seeded from the last 10 rows on disk, newest-first per spec.md §4.3.
func OpenCached(path string, limit int64, syncPolicy pager.SyncPolicy) (*Account, error) {
	store, err := pager.Open(path, pager.Options{Stride: LedgerStride, SyncPolicy: syncPolicy})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}

	a := &Account{
		store:   store,
		limit:   limit,
		cached:  true,
		history: ring.New(ringSize),
	}
	if err := a.seed(); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// OpenUncached opens (or creates) the account's log file in uncached mode:
// every Transact re-reads the tail under the exclusive lock. Slower, but
// correct even when multiple processes share the file.
func OpenUncached(path string, limit int64, syncPolicy pager.SyncPolicy) (*Account, error) {
	store, err := pager.Open(path, pager.Options{Stride: LedgerStride, SyncPolicy: syncPolicy})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}
	return &Account{store: store, limit: limit, cached: false}, nil
}

// seed reads the last ringSize rows in reverse to populate the mirror.
// Deserialization failures here are fatal to bootstrap, per spec.md §7.
func (a *Account) seed() error {
	entries, err := a.readLastNFromDisk(ringSize)
	if err != nil {
		return fmt.Errorf("ledger: seed account: %w", err)
	}
	// entries is newest-first; push oldest-first so the ring's write
	// cursor ends up exactly where it would after a live sequence of
	// Transact calls.
	for i := len(entries) - 1; i >= 0; i-- {
		a.pushEntry(entries[i])
	}
	if len(entries) > 0 {
		a.balance = entries[0].BalanceAfter
	}
	return nil
}

// pushEntry records e as the most recent entry in the in-memory ring,
// evicting the oldest once full. Caller must hold a.mu, except during
// seed where the account is not yet visible to other goroutines.
func (a *Account) pushEntry(e Entry) {
	a.history.Value = e
	a.history = a.history.Next()
}

// Limit returns the account's configured overdraft limit.
func (a *Account) Limit() int64 {
	return a.limit
}

// CachedBalance returns the in-memory mirrored balance and true when the
// account is open in cached mode, or (0, false) in uncached mode, where
// there is no mirror to report.
func (a *Account) CachedBalance() (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.cached {
		return 0, false
	}
	return a.balance, true
}

// Transact applies tx against the account, enforcing the credit/debit
// rule from spec.md §3, and returns the resulting balance. It acquires
// the Log Store's exclusive write lock around the read-latest/append
// pair for the duration of the call.
func (a *Account) Transact(tx Transaction) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, err := a.store.AcquireExclusiveWriteLock()
	if err != nil {
		return 0, fmt.Errorf("ledger: transact: %w", err)
	}
	defer lock.Close()

	var balance int64
	if a.cached {
		balance = a.balance
	} else {
		balance, err = a.readLatestBalance()
		if err != nil {
			return 0, err
		}
	}

	next, err := applyTransaction(balance, a.limit, tx)
	if err != nil {
		return 0, err
	}

	entry := Entry{BalanceAfter: next, Transaction: tx}
	payload, err := encodeEntry(entry)
	if err != nil {
		return 0, err
	}
	if err := a.store.Append(payload); err != nil {
		return 0, fmt.Errorf("ledger: append entry: %w", err)
	}

	if a.cached {
		a.balance = next
		a.pushEntry(entry)
	}
	return next, nil
}

// applyTransaction computes the balance that results from applying tx to
// balance under limit, per spec.md §3's monotonicity invariant.
func applyTransaction(balance, limit int64, tx Transaction) (int64, error) {
	switch tx.Kind {
	case Credit:
		sum := balance + tx.Value
		if tx.Value > 0 && sum < balance {
			return 0, fmt.Errorf("ledger: credit %d onto %d: %w", tx.Value, balance, ErrArithmeticOverflow)
		}
		return sum, nil
	case Debit:
		if balance+limit < tx.Value {
			return 0, fmt.Errorf("ledger: debit %d exceeds balance %d + limit %d: %w", tx.Value, balance, limit, ErrInsufficientLimit)
		}
		diff := balance - tx.Value
		if tx.Value > 0 && diff > balance {
			return 0, fmt.Errorf("ledger: debit %d from %d: %w", tx.Value, balance, ErrArithmeticOverflow)
		}
		return diff, nil
	default:
		return 0, fmt.Errorf("ledger: unknown transaction kind %v", tx.Kind)
	}
}

// LastNTransactions returns up to n entries, newest-first.
func (a *Account) LastNTransactions(n int) ([]Entry, error) {
	if a.cached {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.lastNFromRing(n), nil
	}
	return a.readLastNFromDisk(n)
}

// lastNFromRing walks backward from the write cursor, newest-first.
// Caller must hold a.mu.
func (a *Account) lastNFromRing(n int) []Entry {
	if n > ringSize {
		n = ringSize
	}
	var out []Entry
	cur := a.history.Prev()
	for i := 0; i < n; i++ {
		if cur.Value == nil {
			break
		}
		out = append(out, cur.Value.(Entry))
		cur = cur.Prev()
	}
	return out
}

// readLatestBalance reads the single most recent row and returns its
// balance, or 0 if the log is empty.
func (a *Account) readLatestBalance() (int64, error) {
	entries, err := a.readLastNFromDisk(1)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].BalanceAfter, nil
}

// readLastNFromDisk reads up to n rows via reverse iteration and decodes
// each one, newest-first. A decode failure is fatal, per spec.md §7's
// "deserialization errors during the startup tail-read are fatal to
// account bootstrap" — readLastNFromDisk is also used mid-flight in
// uncached mode, where the same fatal treatment is appropriate: Transact
// must not silently drop a corrupt tail.
func (a *Account) readLastNFromDisk(n int) ([]Entry, error) {
	it, err := a.store.IterateReverse()
	if err != nil {
		return nil, fmt.Errorf("ledger: read tail: %w", err)
	}
	defer it.Close()

	var out []Entry
	for i := 0; i < n && it.Next(); i++ {
		entry, err := decodeEntry(it.Payload())
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("ledger: read tail: %w", err)
	}
	return out, nil
}

// Close releases the account's underlying Log Store file handles.
func (a *Account) Close() error {
	return a.store.Close()
}
