package detectors

import (
	"context"
	"fmt"
	"math"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const (
	OutlierDetectorName = "OutlierDetector"

	minOutlierSamples = 3
	zThreshold        = 3.0
)

// OutlierDetector flags amounts more than three standard deviations from the
// batch mean. The deviation is the population one (divisor n).
type OutlierDetector struct{}

func NewOutlierDetector() *OutlierDetector { return &OutlierDetector{} }

func (d *OutlierDetector) Name() string { return OutlierDetectorName }

func (d *OutlierDetector) Detect(_ context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error) {
	type sample struct {
		tx     *transactions.Transaction
		amount float64
	}
	samples := make([]sample, 0, len(batch))
	for _, t := range batch {
		a, err := t.ParsedAmount()
		if err != nil {
			continue
		}
		// amounts past float64 range are malformed for this detector
		f := a.InexactFloat64()
		if !finite(f) {
			continue
		}
		samples = append(samples, sample{tx: t, amount: f})
	}
	if len(samples) < minOutlierSamples {
		return nil, nil
	}

	var sum float64
	for _, s := range samples {
		sum += s.amount
	}
	mean := sum / float64(len(samples))
	var sq float64
	for _, s := range samples {
		sq += (s.amount - mean) * (s.amount - mean)
	}
	std := math.Sqrt(sq / float64(len(samples)))
	if std == 0 || !finite(mean) || !finite(std) {
		return nil, nil
	}

	var out []*findings.Finding
	for _, s := range samples {
		z := (s.amount - mean) / std
		if math.Abs(z) <= zThreshold {
			continue
		}
		out = append(out, newFinding(s.tx, findings.TypeStatistical, OutlierDetectorName, 0.85, findings.SeverityWarning,
			fmt.Sprintf("Unusually large transaction amount: $%s", s.tx.Amount),
			map[string]any{
				"z_score":     z,
				"mean_amount": mean,
				"std_dev":     std,
			}))
	}
	return out, nil
}

func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }
