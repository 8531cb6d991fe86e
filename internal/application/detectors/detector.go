// Package detectors holds the independent checks run over a transaction
// batch. A detector only reads the batch it is given (plus, for duplicates,
// the stored history) and never mutates a transaction.
package detectors

import (
	"context"

	"github.com/bryanwahyu/anomaly-guard/internal/application"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

// Detector examines a batch and emits zero or more findings. An error means
// the detector could not run at all (for example its history source is
// unreachable); bad individual records are skipped instead.
type Detector interface {
	Name() string
	Detect(ctx context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error)
}

// History gives read access to previously ingested transactions.
type History interface {
	List(ctx context.Context) ([]*transactions.Transaction, error)
}

// Default returns the standard detector set in its fixed registration order.
// The order is part of the contract: findings are reported in this order.
func Default(history History, clock application.Clock, rules *BusinessRuleEngine) []Detector {
	if rules == nil {
		rules = MustBusinessRuleEngine(DefaultRules()...)
	}
	return []Detector{
		NewDuplicateDetector(history),
		NewOutlierDetector(),
		NewMissingFieldDetector(),
		NewFormatValidator(clock),
		NewTemporalAnomalyDetector(),
		rules,
	}
}

func newFinding(t *transactions.Transaction, typ findings.DetectorType, name string, confidence float64, sev findings.Severity, summary string, details map[string]any) *findings.Finding {
	return &findings.Finding{
		TransactionID: t.ID,
		DetectorType:  typ,
		DetectorName:  name,
		Confidence:    confidence,
		Severity:      sev,
		Summary:       summary,
		Details:       details,
	}
}
