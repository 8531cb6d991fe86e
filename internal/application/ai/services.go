package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/risk"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/semantic"
)

// DefaultTimeout bounds one call to the semantic service.
const DefaultTimeout = 30 * time.Second

// Service is the boundary in front of the semantic client. It never returns
// an error: an absent client yields the "skipped" payload and any failure
// yields the "error" payload, both with a zero modifier.
type Service struct {
	client  semantic.Client
	timeout time.Duration
}

// NewService wraps client. A nil client means the service is not configured.
func NewService(client semantic.Client, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{client: client, timeout: timeout}
}

// Configured reports whether a real client is behind the service.
func (s *Service) Configured() bool { return s != nil && s.client != nil }

func (s *Service) Assess(ctx context.Context, req semantic.Request) (out semantic.Assessment) {
	if !s.Configured() {
		return semantic.Skipped()
	}

	defer func() {
		if r := recover(); r != nil {
			out = semantic.Failed(fmt.Errorf("semantic client panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.client.Assess(ctx, req)
	if err != nil {
		return semantic.Failed(err)
	}
	if math.IsNaN(a.RiskScoreModifier) || math.IsInf(a.RiskScoreModifier, 0) {
		return semantic.Failed(fmt.Errorf("%w: modifier %v", semantic.ErrMalformedResponse, a.RiskScoreModifier))
	}
	a.RiskScoreModifier = risk.Clamp(a.RiskScoreModifier, risk.MinModifier, risk.MaxModifier)
	a.Degraded = false
	a.Fallback = ""
	return a
}
