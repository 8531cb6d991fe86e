package findings

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("finding not found")
	ErrUnknownSeverity = errors.New("unknown severity")
)

// Repository port for persisting findings. Findings are never deleted.
type Repository interface {
	// Insert appends f. A finding with the same fingerprint already stored is
	// not an error: the existing id is returned with created=false.
	Insert(ctx context.Context, f *Finding) (id ID, created bool, err error)
	Get(ctx context.Context, id ID) (*Finding, error)
	// Unenriched returns every finding whose semantic context is still nil, oldest first.
	Unenriched(ctx context.Context) ([]*Finding, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]*Finding, error)
	SaveEnrichment(ctx context.Context, id ID, e Enrichment) error
}

// ErrAlreadyEnriched is returned when scoring is attempted twice on the same
// finding without an explicit re-score.
var ErrAlreadyEnriched = errors.New("finding already enriched")
