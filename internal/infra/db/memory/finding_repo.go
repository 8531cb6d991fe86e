package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	domain "github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
)

type FindingRepository struct {
	mu       sync.RWMutex
	findings []*domain.Finding // index = id-1
	byKey    map[string]domain.ID
}

func NewFindingRepository() *FindingRepository {
	return &FindingRepository{byKey: make(map[string]domain.ID)}
}

func clone(f *domain.Finding) *domain.Finding {
	c := *f
	c.Details = maps.Clone(f.Details)
	return &c
}

func (r *FindingRepository) Insert(_ context.Context, f *domain.Finding) (domain.ID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := f.Fingerprint()
	if id, exists := r.byKey[key]; exists {
		return id, false, nil
	}
	c := clone(f)
	c.ID = domain.ID(len(r.findings) + 1)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.findings = append(r.findings, c)
	r.byKey[key] = c.ID
	return c.ID, true, nil
}

func (r *FindingRepository) Get(_ context.Context, id domain.ID) (*domain.Finding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 1 || int(id) > len(r.findings) {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return clone(r.findings[id-1]), nil
}

func (r *FindingRepository) Unenriched(_ context.Context) ([]*domain.Finding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Finding
	for _, f := range r.findings {
		if !f.Enriched() {
			out = append(out, clone(f))
		}
	}
	return out, nil
}

func (r *FindingRepository) ListByTransaction(_ context.Context, transactionID string) ([]*domain.Finding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Finding
	for _, f := range r.findings {
		if f.TransactionID == transactionID {
			out = append(out, clone(f))
		}
	}
	return out, nil
}

func (r *FindingRepository) SaveEnrichment(_ context.Context, id domain.ID, e domain.Enrichment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 1 || int(id) > len(r.findings) {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	r.findings[id-1].Apply(e)
	return nil
}
