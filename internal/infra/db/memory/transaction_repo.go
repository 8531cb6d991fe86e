// Package memory holds in-process repositories used when no database is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

type TransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{transactions: make(map[string]*domain.Transaction)}
}

func (r *TransactionRepository) Save(_ context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[t.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, t.ID)
	}
	c := *t
	if c.Status == "" {
		c.Status = domain.StatusClean
	}
	if c.RiskLevel == "" {
		c.RiskLevel = domain.RiskLow
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.transactions[t.ID] = &c
	return nil
}

func (r *TransactionRepository) Get(_ context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	c := *t
	return &c, nil
}

func (r *TransactionRepository) List(_ context.Context) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Transaction, 0, len(r.transactions))
	for _, t := range r.transactions {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TransactionRepository) UpdateRisk(_ context.Context, id string, status domain.Status, level domain.RiskLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.transactions[id]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	t.Status = status
	t.RiskLevel = level
	t.UpdatedAt = time.Now()
	return nil
}
