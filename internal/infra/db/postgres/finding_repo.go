package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
)

type FindingRepository struct{ db *sql.DB }

func NewFindingRepository(db *sql.DB) *FindingRepository { return &FindingRepository{db: db} }

const findingColumns = `id, transaction_id, detector_type, detector_name, confidence, severity, summary, details,
       semantic_context, semantic_assessment, combined_score, suggested_action, created_at`

func scanFinding(row rowScanner) (*domain.Finding, error) {
	var f domain.Finding
	var details []byte
	var sctx, assess, action sql.NullString
	var score sql.NullFloat64
	if err := row.Scan(&f.ID, &f.TransactionID, &f.DetectorType, &f.DetectorName, &f.Confidence,
		&f.Severity, &f.Summary, &details, &sctx, &assess, &score, &action, &f.CreatedAt); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &f.Details); err != nil {
			return nil, fmt.Errorf("finding %d details: %w", f.ID, err)
		}
	}
	f.SemanticContext = stringPtr(sctx)
	f.SemanticAssessment = stringPtr(assess)
	f.CombinedScore = floatPtr(score)
	f.SuggestedAction = stringPtr(action)
	return &f, nil
}

// Insert records f once per fingerprint. For a repeat the existing id is
// returned with created=false.
func (r *FindingRepository) Insert(ctx context.Context, f *domain.Finding) (domain.ID, bool, error) {
	const q = `
INSERT INTO findings
(fingerprint, transaction_id, detector_type, detector_name, confidence, severity, summary, details)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (fingerprint) DO NOTHING
RETURNING id;`
	details := f.Details
	if details == nil {
		details = map[string]any{}
	}
	body, err := json.Marshal(details)
	if err != nil {
		return 0, false, fmt.Errorf("encode details: %w", err)
	}
	fp := f.Fingerprint()

	var id domain.ID
	err = r.db.QueryRowContext(ctx, q,
		fp, f.TransactionID, f.DetectorType, f.DetectorName, f.Confidence, f.Severity, f.Summary, string(body),
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	// conflict: the row already exists
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM findings WHERE fingerprint=$1`, fp).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, false, nil
}

func (r *FindingRepository) Get(ctx context.Context, id domain.ID) (*domain.Finding, error) {
	const q = `SELECT ` + findingColumns + ` FROM findings WHERE id=$1;`
	f, err := scanFinding(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return f, err
}

func (r *FindingRepository) Unenriched(ctx context.Context) ([]*domain.Finding, error) {
	const q = `SELECT ` + findingColumns + ` FROM findings WHERE semantic_context IS NULL ORDER BY id;`
	return r.query(ctx, q)
}

func (r *FindingRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Finding, error) {
	const q = `SELECT ` + findingColumns + ` FROM findings WHERE transaction_id=$1 ORDER BY id;`
	return r.query(ctx, q, transactionID)
}

func (r *FindingRepository) SaveEnrichment(ctx context.Context, id domain.ID, e domain.Enrichment) error {
	const q = `
UPDATE findings
SET semantic_context=$1, semantic_assessment=$2, combined_score=$3, suggested_action=$4
WHERE id=$5;`
	res, err := r.db.ExecContext(ctx, q, e.SemanticContext, e.SemanticAssessment, e.CombinedScore, e.SuggestedAction, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return nil
}

func (r *FindingRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Finding, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
