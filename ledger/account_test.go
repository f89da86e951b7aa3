package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/esporadb/espora/internal/pager"
)

func mustDescription(t *testing.T, s string) Description {
	t.Helper()
	d, err := NewDescription(s)
	if err != nil {
		t.Fatalf("NewDescription(%q): %v", s, err)
	}
	return d
}

// TestAccount_SingleCredit covers end-to-end scenario 1.
func TestAccount_SingleCredit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account-1.espora")
	acct, err := OpenCached(path, 1000, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenCached: %v", err)
	}
	defer acct.Close()

	tx := NewTransaction(100, Credit, mustDescription(t, "deposit"), time.Time{})
	balance, err := acct.Transact(tx)
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if balance != 100 {
		t.Fatalf("balance = %d, want 100", balance)
	}

	reopened, err := OpenCached(path, 1000, pager.SyncNever)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.LastNTransactions(1)
	if err != nil {
		t.Fatalf("LastNTransactions: %v", err)
	}
	if len(entries) != 1 || entries[0].BalanceAfter != 100 {
		t.Fatalf("entries = %+v, want one entry with balance 100", entries)
	}
}

// TestAccount_DebitWithinLimit covers end-to-end scenario 2.
func TestAccount_DebitWithinLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account-2.espora")
	acct, err := OpenCached(path, 1000, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenCached: %v", err)
	}
	defer acct.Close()

	balance, err := acct.Transact(NewTransaction(500, Debit, mustDescription(t, "rent"), time.Time{}))
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if balance != -500 {
		t.Fatalf("balance = %d, want -500", balance)
	}

	_, err = acct.Transact(NewTransaction(600, Debit, mustDescription(t, "food"), time.Time{}))
	if !errors.Is(err, ErrInsufficientLimit) {
		t.Fatalf("second debit err = %v, want ErrInsufficientLimit", err)
	}
}

// TestAccount_LedgerInvariant covers invariant 5: stored balances satisfy
// the credit/debit rule.
func TestAccount_LedgerInvariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "account-3.espora")
	acct, err := OpenUncached(path, 10000, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenUncached: %v", err)
	}
	defer acct.Close()

	ops := []Transaction{
		NewTransaction(1000, Credit, mustDescription(t, "a"), time.Time{}),
		NewTransaction(300, Debit, mustDescription(t, "b"), time.Time{}),
		NewTransaction(5000, Credit, mustDescription(t, "c"), time.Time{}),
		NewTransaction(200, Debit, mustDescription(t, "d"), time.Time{}),
	}

	var want int64
	for _, tx := range ops {
		balance, err := acct.Transact(tx)
		if err != nil {
			t.Fatalf("Transact: %v", err)
		}
		if tx.Kind == Credit {
			want += tx.Value
		} else {
			want -= tx.Value
		}
		if balance != want {
			t.Fatalf("balance = %d, want %d", balance, want)
		}
	}

	entries, err := acct.LastNTransactions(10)
	if err != nil {
		t.Fatalf("LastNTransactions: %v", err)
	}
	if len(entries) != len(ops) {
		t.Fatalf("got %d entries, want %d", len(entries), len(ops))
	}
	// entries are newest-first.
	for i, e := range entries {
		original := ops[len(ops)-1-i]
		if e.Transaction.Value != original.Value || e.Transaction.Kind != original.Kind {
			t.Errorf("entry %d = %+v, want corresponding to %+v", i, e, original)
		}
	}
}

// TestAccount_ZeroValueDescriptionRejected covers invariant 7 at the
// ledger boundary: an invalid description never reaches the encoder.
func TestAccount_ZeroValueDescriptionRejected(t *testing.T) {
	if _, err := NewDescription(""); !errors.Is(err, ErrInvalidDescription) {
		t.Fatalf("empty description err = %v, want ErrInvalidDescription", err)
	}
	if _, err := NewDescription("this description is too long"); !errors.Is(err, ErrInvalidDescription) {
		t.Fatalf("overlong description err = %v, want ErrInvalidDescription", err)
	}
}

// TestAccount_UncachedMatchesCached verifies both deployment modes enforce
// the identical rule for the same sequence of operations.
func TestAccount_UncachedMatchesCached(t *testing.T) {
	cachedPath := filepath.Join(t.TempDir(), "cached.espora")
	uncachedPath := filepath.Join(t.TempDir(), "uncached.espora")

	cached, err := OpenCached(cachedPath, 500, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenCached: %v", err)
	}
	defer cached.Close()
	uncached, err := OpenUncached(uncachedPath, 500, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenUncached: %v", err)
	}
	defer uncached.Close()

	ops := []Transaction{
		NewTransaction(200, Credit, mustDescription(t, "x"), time.Time{}),
		NewTransaction(900, Debit, mustDescription(t, "y"), time.Time{}),
		NewTransaction(50, Credit, mustDescription(t, "z"), time.Time{}),
	}

	for _, tx := range ops {
		b1, err1 := cached.Transact(tx)
		b2, err2 := uncached.Transact(tx)
		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("divergent errors: cached=%v uncached=%v", err1, err2)
		}
		if err1 == nil && b1 != b2 {
			t.Fatalf("divergent balances: cached=%d uncached=%d", b1, b2)
		}
	}
}

// TestAccount_CrossProcessRace covers end-to-end scenario 6: two Account
// handles on the same file serialize correctly under the exclusive lock.
func TestAccount_CrossProcessRace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.espora")

	a, err := OpenUncached(path, 1_000_000, pager.SyncNever)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	b, err := OpenUncached(path, 1_000_000, pager.SyncNever)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()

	const perHandle = 50
	done := make(chan error, 2)
	runDebits := func(acct *Account) {
		for i := 0; i < perHandle; i++ {
			if _, err := acct.Transact(NewTransaction(1, Debit, mustDescription(t, "d"), time.Time{})); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}
	go runDebits(a)
	go runDebits(b)

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent debit: %v", err)
		}
	}

	final, err := OpenUncached(path, 1_000_000, pager.SyncNever)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer final.Close()

	entries, err := final.readLastNFromDisk(2 * perHandle)
	if err != nil {
		t.Fatalf("readLastNFromDisk: %v", err)
	}
	if len(entries) != 2*perHandle {
		t.Fatalf("got %d entries, want %d", len(entries), 2*perHandle)
	}
	if entries[0].BalanceAfter != int64(-2*perHandle) {
		t.Fatalf("final balance = %d, want %d", entries[0].BalanceAfter, -2*perHandle)
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].BalanceAfter != entries[i+1].BalanceAfter-1 {
			t.Fatalf("entries[%d].BalanceAfter = %d, want entries[%d].BalanceAfter-1 = %d",
				i, entries[i].BalanceAfter, i+1, entries[i+1].BalanceAfter-1)
		}
	}
}

// TestAccount_CachedBalanceReflectsMirror covers the mirror-consistency
// check cmd/espora-server's scheduled housekeeping job relies on.
func TestAccount_CachedBalanceReflectsMirror(t *testing.T) {
	cachedPath := filepath.Join(t.TempDir(), "cached.espora")
	cached, err := OpenCached(cachedPath, 1000, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenCached: %v", err)
	}
	defer cached.Close()

	if balance, ok := cached.CachedBalance(); !ok || balance != 0 {
		t.Fatalf("CachedBalance() = (%d, %v), want (0, true) before any transaction", balance, ok)
	}

	if _, err := cached.Transact(NewTransaction(400, Credit, mustDescription(t, "x"), time.Time{})); err != nil {
		t.Fatalf("Transact: %v", err)
	}
	balance, ok := cached.CachedBalance()
	if !ok || balance != 400 {
		t.Fatalf("CachedBalance() = (%d, %v), want (400, true)", balance, ok)
	}

	uncachedPath := filepath.Join(t.TempDir(), "uncached.espora")
	uncached, err := OpenUncached(uncachedPath, 1000, pager.SyncNever)
	if err != nil {
		t.Fatalf("OpenUncached: %v", err)
	}
	defer uncached.Close()
	if _, ok := uncached.CachedBalance(); ok {
		t.Fatal("CachedBalance ok=true for an uncached account, want false")
	}
}

func TestApplyTransaction_CreditOverflow(t *testing.T) {
	_, err := applyTransaction(9223372036854775800, 0, NewTransaction(100, Credit, mustDescription(t, "x"), time.Time{}))
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("err = %v, want ErrArithmeticOverflow", err)
	}
}
