package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/risk"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/semantic"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

// EnrichReport summarizes one enrichment pass. Processed counts findings
// that reached the semantic service, degraded answers included.
type EnrichReport struct {
	Processed          int `json:"processed"`
	Degraded           int `json:"degraded"`
	MissingTransaction int `json:"missing_transaction"`
}

// Enrich sends every unenriched finding to the semantic service and scores
// it with the answer. Service faults never abort the pass: the finding is
// scored with the neutral fallback payload instead. Re-running Enrich only
// picks up findings that are still unenriched.
func (s *Service) Enrich(ctx context.Context) (EnrichReport, error) {
	var report EnrichReport
	pending, err := s.Findings.Unenriched(ctx)
	if err != nil {
		return report, fmt.Errorf("load unenriched findings: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(s.EnrichWorkers, defaultEnrichWorkers))
	for _, f := range pending {
		g.Go(func() error {
			tx, err := s.Transactions.Get(gctx, f.TransactionID)
			if errors.Is(err, transactions.ErrNotFound) {
				mu.Lock()
				report.MissingTransaction++
				mu.Unlock()
				s.Log.Warn().Int64("finding_id", int64(f.ID)).Str("transaction_id", f.TransactionID).Msg("finding references unknown transaction")
				return nil
			}
			if err != nil {
				return fmt.Errorf("load transaction %s: %w", f.TransactionID, err)
			}

			a := s.Semantic.Assess(gctx, semantic.Request{Transaction: tx.Snapshot(), FindingSummary: f.Summary})
			// our own cancellation is not a service fault; leave the finding for the next pass
			if err := gctx.Err(); err != nil {
				return err
			}
			if a.Degraded {
				s.Log.Warn().Int64("finding_id", int64(f.ID)).Str("assessment", a.RiskAssessment).Msg("semantic service degraded")
			}

			if _, err := s.apply(gctx, f.ID, a, false); err != nil && !errors.Is(err, findings.ErrAlreadyEnriched) {
				return err
			}
			mu.Lock()
			report.Processed++
			if a.Degraded {
				report.Degraded++
			}
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	s.Log.Info().
		Int("pending", len(pending)).
		Int("processed", report.Processed).
		Int("degraded", report.Degraded).
		Msg("enrichment pass finished")
	return report, err
}

// ApplyScore combines the finding's confidence and severity with the
// semantic result, writes the enrichment onto the finding and escalates the
// referenced transaction. An enriched finding is left untouched and
// findings.ErrAlreadyEnriched is returned.
func (s *Service) ApplyScore(ctx context.Context, id findings.ID, a semantic.Assessment) (*findings.Finding, error) {
	return s.apply(ctx, id, a, false)
}

// Rescore is ApplyScore for findings that were already enriched.
func (s *Service) Rescore(ctx context.Context, id findings.ID, a semantic.Assessment) (*findings.Finding, error) {
	return s.apply(ctx, id, a, true)
}

func (s *Service) apply(ctx context.Context, id findings.ID, a semantic.Assessment, force bool) (*findings.Finding, error) {
	f, err := s.Findings.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks().LockContext(ctx, f.TransactionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// re-read under the lock: a concurrent pass may have enriched it meanwhile
	f, err = s.Findings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Enriched() && !force {
		return f, findings.ErrAlreadyEnriched
	}

	modifier := risk.Clamp(a.RiskScoreModifier, risk.MinModifier, risk.MaxModifier)
	score := risk.Score(f.Confidence, f.Severity, modifier)
	e := findings.Enrichment{
		SemanticContext:    a.ContextAnalysis,
		SemanticAssessment: a.RiskAssessment,
		CombinedScore:      score,
		SuggestedAction:    a.SuggestedAction,
	}
	if err := s.Findings.SaveEnrichment(ctx, id, e); err != nil {
		return nil, fmt.Errorf("save enrichment for finding %d: %w", id, err)
	}
	f.Apply(e)
	s.Metrics.Enriched(string(a.Outcome()), score)

	tx, err := s.Transactions.Get(ctx, f.TransactionID)
	if err != nil {
		return f, fmt.Errorf("load transaction %s: %w", f.TransactionID, err)
	}
	level, raised := risk.Escalate(tx.RiskLevel, risk.LevelFor(score))
	if raised {
		status := tx.Status
		if status == "" || status == transactions.StatusClean {
			status = transactions.StatusFlagged
		}
		if err := s.Transactions.UpdateRisk(ctx, f.TransactionID, status, level); err != nil {
			return f, fmt.Errorf("update transaction %s: %w", f.TransactionID, err)
		}
		s.Metrics.Escalated(string(level))
	}
	return f, nil
}
