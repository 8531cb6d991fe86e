// Package risk combines detector confidence, severity and the semantic
// modifier into a bounded score and maps scores onto risk levels. Everything
// here is pure; persistence lives in the audit service.
package risk

import (
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const (
	// DefaultWeight is used for severities missing from the weight table.
	DefaultWeight = 0.5

	MinModifier = -0.5
	MaxModifier = 0.5
)

var weights = map[findings.Severity]float64{
	findings.SeverityInfo:     0.1,
	findings.SeverityWarning:  0.4,
	findings.SeverityError:    0.8,
	findings.SeverityCritical: 1.0,
}

// Weight returns the fixed weight for a severity.
func Weight(s findings.Severity) float64 {
	if w, ok := weights[s]; ok {
		return w
	}
	return DefaultWeight
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Score = clamp(weight(severity) * confidence + modifier, 0, 1)
func Score(confidence float64, severity findings.Severity, modifier float64) float64 {
	return Clamp(Weight(severity)*Clamp(confidence, 0, 1)+modifier, 0, 1)
}

// LevelFor maps a score onto a risk level: >=0.9 critical, >=0.7 high, >=0.4 medium.
func LevelFor(score float64) transactions.RiskLevel {
	switch {
	case score >= 0.9:
		return transactions.RiskCritical
	case score >= 0.7:
		return transactions.RiskHigh
	case score >= 0.4:
		return transactions.RiskMedium
	default:
		return transactions.RiskLow
	}
}

// Candidate is the level a freshly detected finding argues for, before any
// semantic context is known.
func Candidate(f *findings.Finding) transactions.RiskLevel {
	return LevelFor(Score(f.Confidence, f.Severity, 0))
}

// Escalate returns the merged level under the escalation-only policy and
// whether it differs from current.
func Escalate(current, candidate transactions.RiskLevel) (transactions.RiskLevel, bool) {
	if candidate.Above(current) {
		return candidate, true
	}
	return current, false
}
