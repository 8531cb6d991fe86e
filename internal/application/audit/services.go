// Package audit is the detection-and-scoring pipeline: it runs every
// detector over a batch, records their findings, escalates transaction risk
// and later enriches findings with the semantic service's opinion.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/anomaly-guard/internal/application"
	"github.com/bryanwahyu/anomaly-guard/internal/application/ai"
	"github.com/bryanwahyu/anomaly-guard/internal/application/detectors"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
	"github.com/bryanwahyu/anomaly-guard/internal/metrics"
	"github.com/bryanwahyu/anomaly-guard/internal/syncutil"
)

const (
	defaultPersistWorkers = 8
	defaultEnrichWorkers  = 4
)

// Archive stores run reports (port for object storage).
type Archive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Service implements the pipeline use-cases.
// Service is safe for concurrent use; writes touching one transaction are
// serialized on that transaction's id.
type Service struct {
	Transactions transactions.Repository
	Findings     findings.Repository
	// Detectors run in this order; see detectors.Default.
	Detectors []detectors.Detector
	Semantic  *ai.Service
	Archive   Archive
	Metrics   *metrics.Collector
	Clock     application.Clock
	Log       zerolog.Logger

	PersistWorkers int
	EnrichWorkers  int

	lockOnce sync.Once
	txLocks  *syncutil.KeyedMutex
}

func (s *Service) locks() *syncutil.KeyedMutex {
	s.lockOnce.Do(func() { s.txLocks = syncutil.NewKeyedMutex() })
	return s.txLocks
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func workers(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Transaction returns a transaction together with its findings.
func (s *Service) Transaction(ctx context.Context, id string) (*transactions.Transaction, []*findings.Finding, error) {
	tx, err := s.Transactions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fs, err := s.Findings.ListByTransaction(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return tx, fs, nil
}

// Unenriched lists findings still waiting for the enrichment pass.
func (s *Service) Unenriched(ctx context.Context) ([]*findings.Finding, error) {
	return s.Findings.Unenriched(ctx)
}

// Ingest stores batch, skipping ids that are already stored, and returns how
// many transactions were new.
func (s *Service) Ingest(ctx context.Context, batch []*transactions.Transaction) (int, error) {
	var added int
	for _, t := range batch {
		err := s.Transactions.Save(ctx, t)
		if errors.Is(err, transactions.ErrDuplicate) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("save transaction %s: %w", t.ID, err)
		}
		added++
	}
	return added, nil
}
