package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewTransaction_FillsIDAndTimestamp(t *testing.T) {
	tx := NewTransaction(KindDeposit, dec("0.5"), StatusCompleted, "Manual deposit")
	assert.NotEmpty(t, tx.ID)
	assert.False(t, tx.Timestamp.IsZero())
	assert.Equal(t, KindDeposit, tx.Kind)
	assert.Equal(t, StatusCompleted, tx.Status)
}

func TestUsageRatio(t *testing.T) {
	tests := []struct {
		name     string
		deposits string
		usage    string
		want     string
	}{
		{"half spent", "1", "0.5", "0.5"},
		{"nothing spent", "2", "0", "0"},
		{"no deposits", "0", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tot := Totals{Deposits: dec(tt.deposits), Usage: dec(tt.usage)}
			assert.True(t, tot.UsageRatio().Equal(dec(tt.want)),
				"got %s", tot.UsageRatio())
		})
	}
}

// exerciseStore runs the shared Store contract against an implementation.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()

	first := NewTransaction(KindDeposit, dec("1"), StatusCompleted, "Manual deposit")
	second := NewTransaction(KindUsage, dec("0.25"), StatusCompleted, "AI chat with llama-3.3-70b-instruct")
	third := NewTransaction(KindUsage, dec("0.75"), StatusFailed, "AI chat with llama-3.3-70b-instruct")
	// Force distinct timestamps so newest-first ordering is well defined.
	first.Timestamp = time.Now().Add(-2 * time.Second)
	second.Timestamp = time.Now().Add(-1 * time.Second)

	require.NoError(t, store.Record(first))
	require.NoError(t, store.Record(second))
	require.NoError(t, store.Record(third))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID, "newest first")
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)

	tot, err := store.Totals()
	require.NoError(t, err)
	assert.True(t, tot.Deposits.Equal(dec("1")), "got %s", tot.Deposits)
	assert.True(t, tot.Usage.Equal(dec("0.25")), "failed usage excluded, got %s", tot.Usage)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_EmptyTotals(t *testing.T) {
	tot, err := NewMemoryStore().Totals()
	require.NoError(t, err)
	assert.True(t, tot.Deposits.IsZero())
	assert.True(t, tot.Usage.IsZero())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestSQLiteStore_RoundTripFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)

	tx := NewTransaction(KindUsage, dec("0.000123"), StatusCompleted, "AI chat with deepseek-r1-70b")
	require.NoError(t, store.Record(tx))
	require.NoError(t, store.Close())

	// Reopen to prove the record survived the process boundary.
	store, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.Kind, got.Kind)
	assert.True(t, got.Amount.Equal(tx.Amount), "got %s", got.Amount)
	assert.Equal(t, tx.Status, got.Status)
	assert.Equal(t, tx.Description, got.Description)
	assert.WithinDuration(t, tx.Timestamp, got.Timestamp, time.Millisecond)
}
