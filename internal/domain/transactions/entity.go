package transactions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status enum
type Status string

const (
	StatusClean     Status = "clean"
	StatusFlagged   Status = "flagged"
	StatusEscalated Status = "escalated"
	StatusReviewed  Status = "reviewed"
)

// RiskLevel enum, ordered low < medium < high < critical
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank gives the position of the level on the ordered scale. Unknown levels rank below low.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// Above reports whether l is strictly higher than other.
func (l RiskLevel) Above(other RiskLevel) bool { return l.Rank() > other.Rank() }

// Transaction is one monitored financial event. Date and Amount keep the text
// as ingested so format checks can see exactly what arrived.
type Transaction struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	Amount     string          `json:"amount"`
	Vendor     string          `json:"vendor"`
	Category   string          `json:"category"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	Status     Status          `json:"status"`
	RiskLevel  RiskLevel       `json:"risk_level"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// nullTokens are the literal values ingestion uses for "no value".
var nullTokens = map[string]bool{"": true, "nan": true, "none": true, "null": true}

// IsNullValue reports whether v is absent by the ingestion conventions.
func IsNullValue(v string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(v))]
}

// ParsedAmount parses Amount as a decimal.
func (t *Transaction) ParsedAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(t.Amount))
}

// ParsedDate parses Date as a calendar date.
func (t *Transaction) ParsedDate() (time.Time, error) {
	return ParseDate(t.Date)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

// ParseDate accepts the date layouts produced by ingestion.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Snapshot returns the audit snapshot sent to the semantic service: the raw
// payload when present, otherwise the normalized fields.
func (t *Transaction) Snapshot() map[string]any {
	if len(t.RawPayload) > 0 {
		var m map[string]any
		if err := json.Unmarshal(t.RawPayload, &m); err == nil {
			return m
		}
	}
	return map[string]any{
		"transaction_id": t.ID,
		"date":           t.Date,
		"amount":         t.Amount,
		"vendor":         t.Vendor,
		"category":       t.Category,
	}
}
