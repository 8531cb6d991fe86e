package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, txn_date, amount, vendor, category, raw_payload, status, risk_level, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var raw sql.NullString
	if err := row.Scan(&t.ID, &t.Date, &t.Amount, &t.Vendor, &t.Category, &raw,
		&t.Status, &t.RiskLevel, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if raw.Valid {
		t.RawPayload = []byte(raw.String)
	}
	return &t, nil
}

// Save inserts a new transaction. Existing ids are rejected.
func (r *TransactionRepository) Save(ctx context.Context, t *domain.Transaction) error {
	const q = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, q,
		t.ID, t.Date, t.Amount, t.Vendor, t.Category, jsonOrNull(t.RawPayload),
		orDefault(string(t.Status), string(domain.StatusClean)),
		orDefault(string(t.RiskLevel), string(domain.RiskLow)),
		now, now,
	)
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, t.ID)
	}
	return err
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id=? LIMIT 1;`
	t, err := scanTransaction(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return t, err
}

func (r *TransactionRepository) List(ctx context.Context) ([]*domain.Transaction, error) {
	const q = `SELECT ` + transactionColumns + ` FROM transactions ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepository) UpdateRisk(ctx context.Context, id string, status domain.Status, level domain.RiskLevel) error {
	const q = `UPDATE transactions SET status=?, risk_level=?, updated_at=? WHERE id=?;`
	res, err := r.db.ExecContext(ctx, q, status, level, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM transactions WHERE id=?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		return err
	}
	return nil
}
