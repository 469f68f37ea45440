// Package history implements the append-only transaction ledger used for
// reporting: every funding and usage event lands here with a terminal status.
//
// DESIGN: Two store implementations share one interface. MemoryStore is the
// default (the client core is in-memory); SQLiteStore persists the audit log
// across runs. Transactions are never mutated or deleted after recording.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes money entering the account from money spent on inference.
type Kind string

const (
	KindDeposit Kind = "deposit"
	KindUsage   Kind = "usage"
)

// Status is the settlement state of a transaction.
// Transitions only run pending -> completed or pending -> failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is one funding or usage event. Amount is always positive; the
// Kind carries the direction.
type Transaction struct {
	ID          string
	Kind        Kind
	Amount      decimal.Decimal
	Timestamp   time.Time
	Status      Status
	Description string
}

// NewTransaction creates a transaction with a fresh ID and current timestamp.
func NewTransaction(kind Kind, amount decimal.Decimal, status Status, description string) Transaction {
	return Transaction{
		ID:          uuid.NewString(),
		Kind:        kind,
		Amount:      amount,
		Timestamp:   time.Now(),
		Status:      status,
		Description: description,
	}
}

// Totals aggregates completed transactions by kind.
type Totals struct {
	Deposits decimal.Decimal
	Usage    decimal.Decimal
}

// UsageRatio is usage/deposits over completed transactions, 0 when nothing
// has been deposited.
func (t Totals) UsageRatio() decimal.Decimal {
	if t.Deposits.IsZero() {
		return decimal.Zero
	}
	return t.Usage.Div(t.Deposits)
}

// Store is the transaction ledger contract. Record is append-only; List
// returns transactions newest first.
type Store interface {
	Record(tx Transaction) error
	List() ([]Transaction, error)
	Totals() (Totals, error)
}
