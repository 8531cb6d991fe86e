package transactions

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("transaction not found")
	ErrDuplicate = errors.New("transaction already exists")
)

// Repository port (persistence for monitored transactions)
type Repository interface {
	// Save inserts a new transaction; an existing id returns ErrDuplicate.
	Save(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	List(ctx context.Context) ([]*Transaction, error)
	// UpdateRisk must be atomic per id.
	UpdateRisk(ctx context.Context, id string, status Status, level RiskLevel) error
}
