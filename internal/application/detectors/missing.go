package detectors

import (
	"context"
	"strings"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const MissingFieldDetectorName = "MissingFieldDetector"

var requiredFields = []string{"date", "amount", "vendor"}

// MissingFieldDetector flags transactions with an absent required field.
type MissingFieldDetector struct{}

func NewMissingFieldDetector() *MissingFieldDetector { return &MissingFieldDetector{} }

func (d *MissingFieldDetector) Name() string { return MissingFieldDetectorName }

func (d *MissingFieldDetector) Detect(_ context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error) {
	var out []*findings.Finding
	for _, t := range batch {
		values := map[string]string{"date": t.Date, "amount": t.Amount, "vendor": t.Vendor}
		var missing []string
		for _, field := range requiredFields {
			if transactions.IsNullValue(values[field]) {
				missing = append(missing, field)
			}
		}
		if len(missing) == 0 {
			continue
		}
		out = append(out, newFinding(t, findings.TypeStatistical, MissingFieldDetectorName, 1.0, findings.SeverityError,
			"Missing required fields: "+strings.Join(missing, ", "),
			map[string]any{
				"missing_fields":  missing,
				"required_fields": requiredFields,
			}))
	}
	return out, nil
}
