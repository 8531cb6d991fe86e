package detectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryanwahyu/anomaly-guard/internal/application"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const (
	FormatValidatorName = "FormatValidator"

	earliestYear = 2000
)

// FormatValidator checks that amount is a positive number and that date is a
// real calendar date between year 2000 and now. Absent values are left to
// MissingFieldDetector.
type FormatValidator struct {
	clock application.Clock
}

func NewFormatValidator(clock application.Clock) *FormatValidator {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &FormatValidator{clock: clock}
}

func (d *FormatValidator) Name() string { return FormatValidatorName }

func (d *FormatValidator) Detect(_ context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error) {
	now := d.clock.Now()
	var out []*findings.Finding
	for _, t := range batch {
		var errs []string

		if !transactions.IsNullValue(t.Amount) {
			amount, err := t.ParsedAmount()
			switch {
			case err != nil:
				errs = append(errs, fmt.Sprintf("Invalid amount format: %s", t.Amount))
			case !amount.IsPositive():
				errs = append(errs, fmt.Sprintf("Invalid amount: %s (must be positive)", t.Amount))
			}
		}

		if !transactions.IsNullValue(t.Date) {
			dt, err := t.ParsedDate()
			if err != nil {
				errs = append(errs, fmt.Sprintf("Invalid date format: %s", t.Date))
			} else {
				if dt.After(now) {
					errs = append(errs, fmt.Sprintf("Future transaction date: %s", t.Date))
				}
				if dt.Year() < earliestYear {
					errs = append(errs, fmt.Sprintf("Suspiciously old transaction date: %s", t.Date))
				}
			}
		}

		if len(errs) == 0 {
			continue
		}
		out = append(out, newFinding(t, findings.TypeStatistical, FormatValidatorName, 1.0, findings.SeverityError,
			"Format validation failed: "+strings.Join(errs, "; "),
			map[string]any{"format_errors": errs}))
	}
	return out, nil
}
