package ledger

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerochat/zerochat/internal/history"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFund_IncreasesAvailable(t *testing.T) {
	store := history.NewMemoryStore()
	l := New(store)

	b, err := l.Fund(dec("1.5"))
	require.NoError(t, err)
	assert.True(t, b.Available.Equal(dec("1.5")), "available = %s", b.Available)
	assert.True(t, b.Locked.IsZero())

	txs, err := store.List()
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, history.KindDeposit, txs[0].Kind)
	assert.Equal(t, history.StatusCompleted, txs[0].Status)
	assert.True(t, txs[0].Amount.Equal(dec("1.5")))
}

func TestFund_RejectsNonPositive(t *testing.T) {
	store := history.NewMemoryStore()
	l := New(store)

	_, err := l.Fund(dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.Fund(decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// No transaction recorded, balance unchanged.
	txs, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.True(t, l.Balance().Available.IsZero())
}

func TestReserve_MovesAvailableToLocked(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("0.5"))
	require.NoError(t, err)

	res, err := l.Reserve(dec("0.3"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Amount().Equal(dec("0.3")))

	b := l.Balance()
	assert.True(t, b.Available.Equal(dec("0.2")), "available = %s", b.Available)
	assert.True(t, b.Locked.Equal(dec("0.3")), "locked = %s", b.Locked)
}

func TestReserve_InsufficientFundsLeavesBalanceUnchanged(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("0.1"))
	require.NoError(t, err)

	res, err := l.Reserve(dec("0.5"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Nil(t, res)

	b := l.Balance()
	assert.True(t, b.Available.Equal(dec("0.1")))
	assert.True(t, b.Locked.IsZero())
}

func TestSettle_ChargesCostAndReturnsSurplus(t *testing.T) {
	store := history.NewMemoryStore()
	l := New(store)
	_, err := l.Fund(dec("0.5"))
	require.NoError(t, err)

	res, err := l.Reserve(dec("0.3"))
	require.NoError(t, err)

	b, err := l.Settle(res, dec("0.2"), "AI chat with llama-3.3-70b-instruct")
	require.NoError(t, err)
	assert.True(t, b.Available.Equal(dec("0.3")), "available = %s", b.Available)
	assert.True(t, b.Locked.IsZero(), "locked = %s", b.Locked)

	txs, err := store.List()
	require.NoError(t, err)
	require.Len(t, txs, 2) // deposit + usage
	usage := txs[0]
	assert.Equal(t, history.KindUsage, usage.Kind)
	assert.Equal(t, history.StatusCompleted, usage.Status)
	assert.True(t, usage.Amount.Equal(dec("0.2")))
}

func TestSettle_Conservation(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("2"))
	require.NoError(t, err)

	before := l.Balance()
	res, err := l.Reserve(dec("0.7"))
	require.NoError(t, err)
	after, err := l.Settle(res, dec("0.25"), "usage")
	require.NoError(t, err)

	// Δavailable + Δlocked = -cost
	delta := after.Total().Sub(before.Total())
	assert.True(t, delta.Equal(dec("-0.25")), "delta = %s", delta)
}

func TestSettle_RejectsCostAboveReservation(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)
	res, err := l.Reserve(dec("0.2"))
	require.NoError(t, err)

	_, err = l.Settle(res, dec("0.3"), "usage")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// Reservation still unresolved; a full release must work.
	b, err := l.Release(res, "rolled back")
	require.NoError(t, err)
	assert.True(t, b.Available.Equal(dec("1")))
	assert.True(t, b.Locked.IsZero())
}

func TestSettle_ZeroCostRecordsNoUsage(t *testing.T) {
	store := history.NewMemoryStore()
	l := New(store)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)
	res, err := l.Reserve(dec("0.2"))
	require.NoError(t, err)

	b, err := l.Settle(res, decimal.Zero, "usage")
	require.NoError(t, err)
	assert.True(t, b.Available.Equal(dec("1")))

	txs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, txs, 1) // only the deposit
}

func TestRelease_FullRollbackRoundTrip(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("0.9"))
	require.NoError(t, err)

	res, err := l.Reserve(dec("0.9"))
	require.NoError(t, err)
	b, err := l.Release(res, "invocation failed")
	require.NoError(t, err)

	assert.True(t, b.Available.Equal(dec("0.9")), "available = %s", b.Available)
	assert.True(t, b.Locked.IsZero())
}

func TestRelease_EmitsFailedUsageForAudit(t *testing.T) {
	store := history.NewMemoryStore()
	l := New(store)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)
	res, err := l.Reserve(dec("0.4"))
	require.NoError(t, err)
	_, err = l.Release(res, "invocation failed")
	require.NoError(t, err)

	txs, err := store.List()
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, history.KindUsage, txs[0].Kind)
	assert.Equal(t, history.StatusFailed, txs[0].Status)
}

func TestRelease_Idempotent(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)
	res, err := l.Reserve(dec("0.4"))
	require.NoError(t, err)

	_, err = l.Release(res, "first")
	require.NoError(t, err)
	b, err := l.Release(res, "second")
	assert.ErrorIs(t, err, ErrReservationDone)

	// Second call never double-credits.
	assert.True(t, b.Available.Equal(dec("1")), "available = %s", b.Available)
	assert.True(t, b.Locked.IsZero())
}

func TestSettleThenRelease_Exclusive(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)
	res, err := l.Reserve(dec("0.4"))
	require.NoError(t, err)

	_, err = l.Settle(res, dec("0.1"), "usage")
	require.NoError(t, err)

	_, err = l.Release(res, "late rollback")
	assert.ErrorIs(t, err, ErrReservationDone)

	b := l.Balance()
	assert.True(t, b.Available.Equal(dec("0.9")), "available = %s", b.Available)
	assert.True(t, b.Locked.IsZero())
}

func TestReconcile_ReplacesAvailableKeepsLocked(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)
	_, err = l.Reserve(dec("0.3"))
	require.NoError(t, err)

	b, err := l.Reconcile(dec("5.25"))
	require.NoError(t, err)
	assert.True(t, b.Available.Equal(dec("5.25")))
	assert.True(t, b.Locked.Equal(dec("0.3")))
}

func TestReconcile_RejectsNegative(t *testing.T) {
	l := New(nil)
	_, err := l.Fund(dec("1"))
	require.NoError(t, err)

	_, err = l.Reconcile(dec("-0.1"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, l.Balance().Available.Equal(dec("1")))
}

// Two concurrent reservations that do not both fit must yield exactly one
// success.
func TestReserve_NoDoubleSpend(t *testing.T) {
	for n := 0; n < 50; n++ {
		l := New(nil)
		_, err := l.Fund(dec("0.5"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, amount := range []decimal.Decimal{dec("0.3"), dec("0.3")} {
			i, amount := i, amount
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = l.Reserve(amount)
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
			}
		}
		assert.Equal(t, 1, succeeded)

		b := l.Balance()
		assert.False(t, b.Available.IsNegative())
		assert.True(t, b.Locked.Equal(dec("0.3")))
	}
}

// Invariant: available >= 0 and locked >= 0 after every operation of a mixed
// concurrent workload.
func TestLedger_InvariantUnderConcurrency(t *testing.T) {
	l := New(history.NewMemoryStore())
	_, err := l.Fund(dec("10"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Reserve(dec("0.9"))
			if err != nil {
				return
			}
			if i%2 == 0 {
				_, _ = l.Settle(res, dec("0.5"), "usage")
			} else {
				_, _ = l.Release(res, "rollback")
			}
		}()
	}
	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Fund(dec("0.1"))
		}()
	}
	wg.Wait()

	b := l.Balance()
	assert.False(t, b.Available.IsNegative(), "available = %s", b.Available)
	assert.False(t, b.Locked.IsNegative(), "locked = %s", b.Locked)
	assert.True(t, b.Locked.IsZero(), "all reservations resolved, locked = %s", b.Locked)
}
