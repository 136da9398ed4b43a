package fees

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Ledger persists fee records in a local sqlite database.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger at path. ":memory:" works for
// tests.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open fee ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS fee_records (
  id TEXT PRIMARY KEY,
  wallet_address TEXT NOT NULL,
  order_id TEXT NOT NULL,
  token_id TEXT NOT NULL,
  side TEXT NOT NULL,
  amount TEXT NOT NULL,
  percentage TEXT NOT NULL,
  status TEXT NOT NULL,
  tx_hash TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_fee_records_status ON fee_records(status);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate fee ledger: %w", err)
		}
	}
	return nil
}

// Insert stores a new record.
func (l *Ledger) Insert(ctx context.Context, r Record) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO fee_records (id,wallet_address,order_id,token_id,side,amount,percentage,status,tx_hash,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, r.ID, r.WalletAddress, r.OrderID, r.TokenID, r.Side, r.Amount.String(), r.Percentage.String(), string(r.Status), r.TxHash,
		r.CreatedAt.Format(time.RFC3339Nano), r.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert fee record: %w", err)
	}
	return nil
}

// UpdateStatus moves a record to a new status, recording the transfer
// hash when there is one.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status Status, txHash string) error {
	_, err := l.db.ExecContext(ctx, `
UPDATE fee_records SET status=?, tx_hash=?, updated_at=? WHERE id=?
`, string(status), txHash, time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update fee record %s: %w", id, err)
	}
	return nil
}

// Get loads one record, nil when absent.
func (l *Ledger) Get(ctx context.Context, id string) (*Record, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id,wallet_address,order_id,token_id,side,amount,percentage,status,tx_hash,created_at,updated_at
FROM fee_records WHERE id=?
`, id)
	r, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListByStatus returns records in one status, oldest first.
func (l *Ledger) ListByStatus(ctx context.Context, status Status) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id,wallet_address,order_id,token_id,side,amount,percentage,status,tx_hash,created_at,updated_at
FROM fee_records WHERE status=? ORDER BY created_at ASC
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list fee records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(scan func(...any) error) (Record, error) {
	var r Record
	var amount, percentage, status, createdAt, updatedAt string
	if err := scan(&r.ID, &r.WalletAddress, &r.OrderID, &r.TokenID, &r.Side, &amount, &percentage, &status, &r.TxHash, &createdAt, &updatedAt); err != nil {
		return Record{}, err
	}

	var err error
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return Record{}, fmt.Errorf("parse fee amount %q: %w", amount, err)
	}
	if r.Percentage, err = decimal.NewFromString(percentage); err != nil {
		return Record{}, fmt.Errorf("parse fee percentage %q: %w", percentage, err)
	}
	r.Status = Status(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return r, nil
}
