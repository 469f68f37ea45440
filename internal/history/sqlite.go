package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable transaction ledger backed by a local SQLite file.
// Amounts are stored as decimal strings to avoid float drift in the audit log.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	amount      TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	status      TEXT NOT NULL,
	description TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
`

// OpenSQLiteStore opens (creating if needed) the ledger database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends a transaction to the log.
func (s *SQLiteStore) Record(tx Transaction) error {
	_, err := s.db.Exec(
		`INSERT INTO transactions (id, kind, amount, timestamp, status, description) VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Kind), tx.Amount.String(), tx.Timestamp.UTC().Format(time.RFC3339Nano), string(tx.Status), tx.Description,
	)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// List returns all transactions, newest first.
func (s *SQLiteStore) List() ([]Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, amount, timestamp, status, description FROM transactions ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Totals sums completed transactions by kind.
func (s *SQLiteStore) Totals() (Totals, error) {
	// Sums run in Go, not SQL: amounts are decimal strings.
	rows, err := s.db.Query(
		`SELECT id, kind, amount, timestamp, status, description FROM transactions WHERE status = ?`,
		string(StatusCompleted))
	if err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var t Totals
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return Totals{}, err
		}
		switch tx.Kind {
		case KindDeposit:
			t.Deposits = t.Deposits.Add(tx.Amount)
		case KindUsage:
			t.Usage = t.Usage.Add(tx.Amount)
		}
	}
	return t, rows.Err()
}

func scanTransaction(rows *sql.Rows) (Transaction, error) {
	var tx Transaction
	var kind, amount, ts, status string
	if err := rows.Scan(&tx.ID, &kind, &amount, &ts, &status, &tx.Description); err != nil {
		return Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse transaction amount %q: %w", amount, err)
	}
	when, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse transaction timestamp %q: %w", ts, err)
	}
	tx.Kind = Kind(kind)
	tx.Amount = amt
	tx.Timestamp = when
	tx.Status = Status(status)
	return tx, nil
}
