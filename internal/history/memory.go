package history

import "sync"

// MemoryStore is the default in-memory transaction ledger.
type MemoryStore struct {
	mu  sync.RWMutex
	txs []Transaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a transaction to the log.
func (s *MemoryStore) Record(tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

// List returns all transactions, newest first.
func (s *MemoryStore) List() ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Transaction, len(s.txs))
	for i, tx := range s.txs {
		out[len(s.txs)-1-i] = tx
	}
	return out, nil
}

// Totals sums completed transactions by kind.
func (s *MemoryStore) Totals() (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t Totals
	for _, tx := range s.txs {
		if tx.Status != StatusCompleted {
			continue
		}
		switch tx.Kind {
		case KindDeposit:
			t.Deposits = t.Deposits.Add(tx.Amount)
		case KindUsage:
			t.Usage = t.Usage.Add(tx.Amount)
		}
	}
	return t, nil
}
