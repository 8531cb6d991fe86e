package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/semantic"
)

func TestParseAssessment(t *testing.T) {
	a, err := ParseAssessment(`{"risk_assessment":"High","context_analysis":"double billed","risk_score_modifier":0.3,"suggested_action":"Hold"}`)
	require.NoError(t, err)
	assert.Equal(t, "High", a.RiskAssessment)
	assert.Equal(t, 0.3, a.RiskScoreModifier)
	assert.False(t, a.Degraded)

	a, err = ParseAssessment("```json\n{\"risk_score_modifier\":\"-0.2\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, -0.2, a.RiskScoreModifier)

	_, err = ParseAssessment("I think it is fine")
	assert.ErrorIs(t, err, semantic.ErrMalformedResponse)

	_, err = ParseAssessment(`{"risk_score_modifier":"lots"}`)
	assert.ErrorIs(t, err, semantic.ErrMalformedResponse)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, "")
}

func TestClient_Assess(t *testing.T) {
	var got openai.ChatCompletionRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: `{"risk_assessment":"Medium","context_analysis":"weekend dinner","risk_score_modifier":0.1,"suggested_action":"Ask for receipt"}`,
			}}},
		})
	})

	a, err := c.Assess(context.Background(), semantic.Request{
		Transaction:    map[string]any{"vendor": "Bistro", "amount": "350.00"},
		FindingSummary: "High value meal detected: $350.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ask for receipt", a.SuggestedAction)
	assert.Equal(t, 0.1, a.RiskScoreModifier)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, "forensic accountant")
	assert.Contains(t, got.Messages[1].Content, "High value meal detected")
	assert.Contains(t, got.Messages[1].Content, "Bistro")
}

func TestClient_AssessNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Assess(context.Background(), semantic.Request{FindingSummary: "x"})
	assert.ErrorIs(t, err, semantic.ErrMalformedResponse)
}

func TestClient_AssessUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})
	_, err := c.Assess(context.Background(), semantic.Request{FindingSummary: "x"})
	assert.ErrorIs(t, err, semantic.ErrUnavailable)
}

func TestNewSemanticClient(t *testing.T) {
	assert.Nil(t, NewSemanticClient(" ", "", ""))
	c := NewSemanticClient("sk-test", "gpt-4o-mini", "http://localhost:9999/v1")
	require.NotNil(t, c)
	assert.Equal(t, "gpt-4o-mini", c.(*Client).Model)
}

func TestClient_AssessQuotaExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
	})
	_, err := c.Assess(context.Background(), semantic.Request{FindingSummary: "x"})
	assert.ErrorIs(t, err, semantic.ErrQuotaExceeded)
}
