package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DetectorType enum
type DetectorType string

const (
	TypeStatistical  DetectorType = "statistical"
	TypeBusinessRule DetectorType = "business_rule"
)

// Severity enum
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// ID identifier type
type ID int64

// Finding is one detector's opinion about one transaction. The semantic fields
// stay nil until the enrichment pass fills them.
type Finding struct {
	ID                 ID             `json:"id"`
	TransactionID      string         `json:"transaction_id"`
	DetectorType       DetectorType   `json:"detector_type"`
	DetectorName       string         `json:"detector_name"`
	Confidence         float64        `json:"confidence"`
	Severity           Severity       `json:"severity"`
	Summary            string         `json:"summary"`
	Details            map[string]any `json:"details"`
	SemanticContext    *string        `json:"semantic_context"`
	SemanticAssessment *string        `json:"semantic_assessment"`
	CombinedScore      *float64       `json:"combined_score"`
	SuggestedAction    *string        `json:"suggested_action"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Enriched reports whether the enrichment pass already handled f.
func (f *Finding) Enriched() bool { return f.SemanticContext != nil }

// Fingerprint is the natural key of a finding: the same detector saying the
// same thing about the same transaction is one finding.
func (f *Finding) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(f.TransactionID))
	h.Write([]byte{0})
	h.Write([]byte(f.DetectorName))
	h.Write([]byte{0})
	h.Write([]byte(f.Summary))
	return hex.EncodeToString(h.Sum(nil))
}

// Enrichment is what the scoring step writes back onto a finding.
type Enrichment struct {
	SemanticContext    string
	SemanticAssessment string
	CombinedScore      float64
	SuggestedAction    string
}

// Apply copies e onto f.
func (f *Finding) Apply(e Enrichment) {
	ctx, assess, action, score := e.SemanticContext, e.SemanticAssessment, e.SuggestedAction, e.CombinedScore
	f.SemanticContext = &ctx
	f.SemanticAssessment = &assess
	f.SuggestedAction = &action
	f.CombinedScore = &score
}
