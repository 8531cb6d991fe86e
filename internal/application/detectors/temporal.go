package detectors

import (
	"context"
	"time"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const TemporalAnomalyDetectorName = "TemporalAnomalyDetector"

// TemporalAnomalyDetector flags transactions dated on a Saturday or Sunday.
// The weekday is taken from the date as written, in its own offset.
type TemporalAnomalyDetector struct{}

func NewTemporalAnomalyDetector() *TemporalAnomalyDetector { return &TemporalAnomalyDetector{} }

func (d *TemporalAnomalyDetector) Name() string { return TemporalAnomalyDetectorName }

func (d *TemporalAnomalyDetector) Detect(_ context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error) {
	var out []*findings.Finding
	for _, t := range batch {
		if transactions.IsNullValue(t.Date) {
			continue
		}
		dt, err := t.ParsedDate()
		if err != nil {
			continue
		}
		day := dt.Weekday()
		if day != time.Saturday && day != time.Sunday {
			continue
		}
		out = append(out, newFinding(t, findings.TypeStatistical, TemporalAnomalyDetectorName, 0.75, findings.SeverityWarning,
			"Transaction recorded on a weekend: "+day.String(),
			map[string]any{
				"day_of_week": day.String(),
				"is_weekend":  true,
			}))
	}
	return out, nil
}
