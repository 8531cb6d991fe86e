// Package semantic defines the contract with the external context-analysis
// service. The service itself is a black box.
package semantic

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the service declared itself unavailable or is not configured.
	ErrUnavailable = errors.New("semantic service unavailable")
	// ErrQuotaExceeded means the provider rejected the call on a quota or rate limit (HTTP 429).
	ErrQuotaExceeded = errors.New("semantic service quota exceeded")
	// ErrMalformedResponse means the service answered with something that is not an Assessment.
	ErrMalformedResponse = errors.New("semantic service returned a malformed response")
)

// Outcome classifies an assessment for reporting.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Request carries a transaction snapshot and the finding summary to assess.
type Request struct {
	Transaction    map[string]any `json:"transaction"`
	FindingSummary string         `json:"finding_summary"`
}

// Assessment is the structured risk opinion returned by the service.
type Assessment struct {
	RiskAssessment    string  `json:"risk_assessment"`
	ContextAnalysis   string  `json:"context_analysis"`
	RiskScoreModifier float64 `json:"risk_score_modifier"`
	SuggestedAction   string  `json:"suggested_action"`

	// Degraded marks a fixed fallback payload rather than a real opinion.
	Degraded bool `json:"-"`
	// Fallback names which fallback payload this is when Degraded.
	Fallback Outcome `json:"-"`
}

func (a Assessment) Outcome() Outcome {
	switch {
	case !a.Degraded:
		return OutcomeOK
	case a.Fallback != "":
		return a.Fallback
	default:
		return OutcomeError
	}
}

// Client port (interface for the context-analysis service)
type Client interface {
	Assess(ctx context.Context, req Request) (Assessment, error)
}

// Skipped is returned when no service is configured.
func Skipped() Assessment {
	return Assessment{
		RiskAssessment:    "Semantic analysis skipped (no API key)",
		ContextAnalysis:   "N/A",
		RiskScoreModifier: 0,
		SuggestedAction:   "Configure OpenAI API key",
		Degraded:          true,
		Fallback:          OutcomeSkipped,
	}
}

// Failed is returned when a call to the service did not produce an Assessment.
func Failed(err error) Assessment {
	return Assessment{
		RiskAssessment:    "Error",
		ContextAnalysis:   "Failed to call semantic service: " + err.Error(),
		RiskScoreModifier: 0,
		SuggestedAction:   "Review manually",
		Degraded:          true,
		Fallback:          OutcomeError,
	}
}
