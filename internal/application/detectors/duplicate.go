package detectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const DuplicateDetectorName = "DuplicateDetector"

var duplicateCriteria = []string{"amount", "date", "vendor"}

// DuplicateDetector flags transactions sharing amount, date and vendor with
// another transaction in the batch or in the stored history. Exact match only.
type DuplicateDetector struct {
	history History
}

func NewDuplicateDetector(history History) *DuplicateDetector {
	return &DuplicateDetector{history: history}
}

func (d *DuplicateDetector) Name() string { return DuplicateDetectorName }

type duplicateKey struct {
	amount, date, vendor string
}

func keyOf(t *transactions.Transaction) (duplicateKey, bool) {
	if transactions.IsNullValue(t.Amount) || transactions.IsNullValue(t.Date) || transactions.IsNullValue(t.Vendor) {
		return duplicateKey{}, false
	}
	amount := strings.TrimSpace(t.Amount)
	// 100 and 100.00 are the same amount
	if a, err := t.ParsedAmount(); err == nil {
		amount = a.String()
	}
	date := strings.TrimSpace(t.Date)
	// 2026-10-13 and 2026/10/13 are the same day
	if d, err := t.ParsedDate(); err == nil {
		date = d.Format(time.RFC3339Nano)
	}
	return duplicateKey{amount: amount, date: date, vendor: strings.TrimSpace(t.Vendor)}, true
}

func (d *DuplicateDetector) Detect(ctx context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error) {
	groups := make(map[duplicateKey]map[string]struct{})
	add := func(t *transactions.Transaction) {
		k, ok := keyOf(t)
		if !ok {
			return
		}
		if groups[k] == nil {
			groups[k] = make(map[string]struct{})
		}
		groups[k][t.ID] = struct{}{}
	}

	for _, t := range batch {
		add(t)
	}
	if d.history != nil {
		past, err := d.history.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load transaction history: %w", err)
		}
		for _, t := range past {
			add(t)
		}
	}

	var out []*findings.Finding
	seen := make(map[string]bool, len(batch))
	for _, t := range batch {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		k, ok := keyOf(t)
		if !ok {
			continue
		}
		size := len(groups[k])
		if size < 2 {
			continue
		}
		out = append(out, newFinding(t, findings.TypeStatistical, DuplicateDetectorName, 0.95, findings.SeverityError,
			"Potential duplicate transaction detected",
			map[string]any{
				"matches_found": size - 1,
				"criteria":      duplicateCriteria,
			}))
	}
	return out, nil
}
