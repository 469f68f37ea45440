// Package ledger tracks the prepaid account balance and enforces its core
// invariant: available and locked never go negative, and funds can only be
// spent through a reservation taken while they were available.
//
// DESIGN: Every public operation is one indivisible step under the mutex, so
// two concurrent Reserve calls can never both succeed against the same
// available balance when only one would fit. The mutex is never held across
// I/O; remote calls (funding, balance queries, inference) happen outside the
// ledger and only their outcomes are applied here.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/zerochat/zerochat/internal/history"
)

var (
	// ErrInvalidAmount rejects non-positive amounts before any state change.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds means available balance does not cover a reserve.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrReservationDone guards double resolution: a reservation is resolved
	// by exactly one of Settle or Release, the second call is a no-op error.
	ErrReservationDone = errors.New("reservation already resolved")
)

// Balance is a snapshot of the account.
type Balance struct {
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// Total is available + locked.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// Reservation is a temporary hold on funds for one request. It is resolved
// by exactly one of Ledger.Settle or Ledger.Release.
type Reservation struct {
	amount   decimal.Decimal
	resolved bool // guarded by the owning ledger's mutex
}

// Amount returns the reserved amount.
func (r *Reservation) Amount() decimal.Decimal {
	return r.amount
}

// Ledger is the single source of truth for spendable funds.
type Ledger struct {
	mu        sync.Mutex
	available decimal.Decimal
	locked    decimal.Decimal
	store     history.Store
}

// New creates a ledger with zero balance. Fund, settle, and release events
// are recorded to store; a nil store disables recording.
func New(store history.Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns a consistent snapshot.
func (l *Ledger) Balance() Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Balance{Available: l.available, Locked: l.locked}
}

// Fund credits available balance after a successful external transfer.
// It records a completed deposit transaction.
func (l *Ledger) Fund(amount decimal.Decimal) (Balance, error) {
	if !amount.IsPositive() {
		return l.Balance(), fmt.Errorf("%w: fund amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	l.available = l.available.Add(amount)
	b := Balance{Available: l.available, Locked: l.locked}
	l.mu.Unlock()

	l.record(history.NewTransaction(history.KindDeposit, amount, history.StatusCompleted, "Manual deposit"))
	log.Info().Str("amount", amount.String()).Str("available", b.Available.String()).Msg("funds added")
	return b, nil
}

// RecordFailedDeposit logs a deposit attempt whose external transfer failed.
// Balance is untouched; the entry exists for audit visibility.
func (l *Ledger) RecordFailedDeposit(amount decimal.Decimal, reason string) {
	if !amount.IsPositive() {
		return
	}
	l.record(history.NewTransaction(history.KindDeposit, amount, history.StatusFailed, reason))
}

// Reserve atomically moves amount from available to locked. This is the only
// gate between a funds check and a refusal: the check and the move happen
// under one lock, so concurrent reservations cannot overspend.
func (l *Ledger) Reserve(amount decimal.Decimal) (*Reservation, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: reserve amount must be positive, got %s", ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.available.LessThan(amount) {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, amount, l.available)
	}
	l.available = l.available.Sub(amount)
	l.locked = l.locked.Add(amount)
	return &Reservation{amount: amount}, nil
}

// Settle resolves a reservation into an actual charge. The reserved amount
// leaves locked; the surplus over actualCost returns to available. Records a
// completed usage transaction for the charge.
func (l *Ledger) Settle(res *Reservation, actualCost decimal.Decimal, description string) (Balance, error) {
	if res == nil {
		return l.Balance(), fmt.Errorf("%w: nil reservation", ErrInvalidAmount)
	}
	if actualCost.IsNegative() || actualCost.GreaterThan(res.amount) {
		return l.Balance(), fmt.Errorf("%w: actual cost %s outside [0, %s]", ErrInvalidAmount, actualCost, res.amount)
	}

	l.mu.Lock()
	if res.resolved {
		l.mu.Unlock()
		return l.Balance(), ErrReservationDone
	}
	res.resolved = true
	l.locked = l.locked.Sub(res.amount)
	l.available = l.available.Add(res.amount.Sub(actualCost))
	b := Balance{Available: l.available, Locked: l.locked}
	l.mu.Unlock()

	if actualCost.IsPositive() {
		l.record(history.NewTransaction(history.KindUsage, actualCost, history.StatusCompleted, description))
	}
	log.Debug().
		Str("reserved", res.amount.String()).
		Str("cost", actualCost.String()).
		Str("available", b.Available.String()).
		Msg("reservation settled")
	return b, nil
}

// Release rolls a reservation back in full: the held amount returns to
// available and the user is not charged. A failed usage transaction is
// recorded for audit visibility. Releasing an already-resolved reservation
// returns ErrReservationDone and never double-credits.
func (l *Ledger) Release(res *Reservation, description string) (Balance, error) {
	if res == nil {
		return l.Balance(), fmt.Errorf("%w: nil reservation", ErrInvalidAmount)
	}

	l.mu.Lock()
	if res.resolved {
		l.mu.Unlock()
		return l.Balance(), ErrReservationDone
	}
	res.resolved = true
	l.locked = l.locked.Sub(res.amount)
	l.available = l.available.Add(res.amount)
	b := Balance{Available: l.available, Locked: l.locked}
	l.mu.Unlock()

	l.record(history.NewTransaction(history.KindUsage, res.amount, history.StatusFailed, description))
	log.Debug().Str("amount", res.amount.String()).Msg("reservation released")
	return b, nil
}

// Reconcile replaces available with the authoritative external balance.
// Locked is untouched: in-flight reservations are local state the external
// source has never seen.
func (l *Ledger) Reconcile(externalAvailable decimal.Decimal) (Balance, error) {
	if externalAvailable.IsNegative() {
		return l.Balance(), fmt.Errorf("%w: external balance %s is negative", ErrInvalidAmount, externalAvailable)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.available = externalAvailable
	return Balance{Available: l.available, Locked: l.locked}, nil
}

func (l *Ledger) record(tx history.Transaction) {
	if l.store == nil {
		return
	}
	if err := l.store.Record(tx); err != nil {
		log.Warn().Err(err).Str("kind", string(tx.Kind)).Msg("failed to record transaction")
	}
}
