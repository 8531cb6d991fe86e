package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/risk"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

// RunReport summarizes one detection run. Produced is the primary count.
type RunReport struct {
	RunID           string              `json:"run_id"`
	StartedAt       time.Time           `json:"started_at"`
	DurationMS      int64               `json:"duration_ms"`
	BatchSize       int                 `json:"batch_size"`
	Produced        int                 `json:"produced"`
	Recorded        int                 `json:"recorded"`
	AlreadyRecorded int                 `json:"already_recorded"`
	Orphaned        int                 `json:"orphaned"`
	Escalated       int                 `json:"escalated"`
	PerDetector     map[string]int      `json:"per_detector"`
	Findings        []*findings.Finding `json:"findings,omitempty"`
	ArchiveURL      string              `json:"archive_url,omitempty"`
}

// RunDetection runs every detector over batch, records the findings and
// escalates the referenced transactions. Detectors run concurrently over a
// private copy of the batch; findings come back in detector registration
// order. A detector or store failure aborts the run, but whatever was
// already persisted stays.
func (s *Service) RunDetection(ctx context.Context, batch []*transactions.Transaction) (RunReport, error) {
	started := s.now()
	report := RunReport{
		RunID:       uuid.NewString(),
		StartedAt:   started,
		BatchSize:   len(batch),
		PerDetector: make(map[string]int, len(s.Detectors)),
	}
	log := s.Log.With().Str("run_id", report.RunID).Logger()

	all, err := s.detect(ctx, batch, &report)
	if err != nil {
		log.Error().Err(err).Msg("detection aborted")
		return report, err
	}
	report.Produced = len(all)
	report.Findings = all

	if err := s.persist(ctx, all, &report); err != nil {
		log.Error().Err(err).Int("recorded", report.Recorded).Msg("persisting findings aborted")
		return report, err
	}
	report.DurationMS = time.Since(started).Milliseconds()

	log.Info().
		Int("batch", report.BatchSize).
		Int("produced", report.Produced).
		Int("recorded", report.Recorded).
		Int("already_recorded", report.AlreadyRecorded).
		Int("orphaned", report.Orphaned).
		Int("escalated", report.Escalated).
		Msg("detection run finished")

	s.archive(ctx, &report)
	return report, nil
}

func snapshot(batch []*transactions.Transaction) []*transactions.Transaction {
	out := make([]*transactions.Transaction, 0, len(batch))
	for _, t := range batch {
		if t == nil {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	return out
}

func (s *Service) detect(ctx context.Context, batch []*transactions.Transaction, report *RunReport) ([]*findings.Finding, error) {
	results := make([][]*findings.Finding, len(s.Detectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range s.Detectors {
		g.Go(func() error {
			start := time.Now()
			fs, err := d.Detect(gctx, snapshot(batch))
			if err != nil {
				return fmt.Errorf("detector %s: %w", d.Name(), err)
			}
			for _, f := range fs {
				if !f.Severity.Valid() {
					return fmt.Errorf("detector %s: %w %q", d.Name(), findings.ErrUnknownSeverity, f.Severity)
				}
				f.Confidence = risk.Clamp(f.Confidence, 0, 1)
			}
			took := time.Since(start)
			s.Metrics.DetectorRan(d.Name(), len(fs), took)
			s.Log.Debug().Str("detector", d.Name()).Int("findings", len(fs)).Dur("took", took).Msg("detector finished")
			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*findings.Finding
	for i, fs := range results {
		report.PerDetector[s.Detectors[i].Name()] = len(fs)
		all = append(all, fs...)
	}
	return all, nil
}

// persist writes findings grouped by transaction. Groups run in parallel,
// findings within a group in order.
func (s *Service) persist(ctx context.Context, all []*findings.Finding, report *RunReport) error {
	var order []string
	groups := make(map[string][]*findings.Finding)
	for _, f := range all {
		if _, ok := groups[f.TransactionID]; !ok {
			order = append(order, f.TransactionID)
		}
		groups[f.TransactionID] = append(groups[f.TransactionID], f)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(s.PersistWorkers, defaultPersistWorkers))
	for _, txID := range order {
		fs := groups[txID]
		g.Go(func() error {
			res, err := s.persistGroup(gctx, txID, fs)
			mu.Lock()
			report.Recorded += res.recorded
			report.AlreadyRecorded += res.already
			report.Orphaned += res.orphaned
			report.Escalated += res.escalated
			mu.Unlock()
			return err
		})
	}
	return g.Wait()
}

type groupResult struct {
	recorded, already, orphaned, escalated int
}

func (s *Service) persistGroup(ctx context.Context, txID string, fs []*findings.Finding) (groupResult, error) {
	var res groupResult
	if _, err := s.Transactions.Get(ctx, txID); err != nil {
		if errors.Is(err, transactions.ErrNotFound) {
			res.orphaned = len(fs)
			for range fs {
				s.Metrics.FindingStored("orphaned")
			}
			s.Log.Warn().Str("transaction_id", txID).Int("findings", len(fs)).Msg("findings reference unknown transaction, skipped")
			return res, nil
		}
		return res, fmt.Errorf("load transaction %s: %w", txID, err)
	}

	for _, f := range fs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, created, err := s.Findings.Insert(ctx, f)
		if err != nil {
			return res, fmt.Errorf("insert finding for %s: %w", txID, err)
		}
		f.ID = id
		if created {
			res.recorded++
			s.Metrics.FindingStored("created")
		} else {
			res.already++
			s.Metrics.FindingStored("already_recorded")
		}

		raised, err := s.escalate(ctx, txID, risk.Candidate(f))
		if err != nil {
			return res, err
		}
		if raised {
			res.escalated++
		}
	}
	return res, nil
}

// escalate is the single merge policy for transaction risk: status moves
// from clean to flagged, and the level is overwritten only when the
// candidate is strictly higher. The read-modify-write holds the
// transaction's lock.
func (s *Service) escalate(ctx context.Context, txID string, candidate transactions.RiskLevel) (bool, error) {
	unlock, err := s.locks().LockContext(ctx, txID)
	if err != nil {
		return false, err
	}
	defer unlock()

	tx, err := s.Transactions.Get(ctx, txID)
	if err != nil {
		return false, fmt.Errorf("load transaction %s: %w", txID, err)
	}

	level, raised := risk.Escalate(tx.RiskLevel, candidate)
	status := tx.Status
	if status == "" || status == transactions.StatusClean {
		status = transactions.StatusFlagged
	}
	if !raised && status == tx.Status {
		return false, nil
	}
	if err := s.Transactions.UpdateRisk(ctx, txID, status, level); err != nil {
		return false, fmt.Errorf("update transaction %s: %w", txID, err)
	}
	if raised {
		s.Metrics.Escalated(string(level))
	}
	return raised, nil
}

func (s *Service) archive(ctx context.Context, report *RunReport) {
	if s.Archive == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		s.Log.Warn().Err(err).Str("run_id", report.RunID).Msg("encode run report")
		return
	}
	key := fmt.Sprintf("runs/%s/%s.json", report.StartedAt.UTC().Format("2006/01/02"), report.RunID)
	url, err := s.Archive.Upload(ctx, key, data, "application/json")
	if err != nil {
		s.Log.Warn().Err(err).Str("run_id", report.RunID).Msg("archive run report")
		return
	}
	report.ArchiveURL = url
}
