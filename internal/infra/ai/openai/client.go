package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/semantic"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/ai/prompt"
)

const (
	maxTokens    = 1024
	DefaultModel = "gpt-4.1-nano-2025-04-14"
)

// Client implements semantic.Client on the OpenAI chat completion API.
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// NewClientWithConfig allows a custom base URL (proxies, compatible gateways, tests).
func NewClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// NewSemanticClient builds the client from settings. An empty key means no
// client: the result is a nil interface, not a nil *Client.
func NewSemanticClient(apiKey, model, baseURL string) semantic.Client {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewClientWithConfig(cfg, model)
}

func (c *Client) Assess(ctx context.Context, r semantic.Request) (semantic.Assessment, error) {
	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	user, err := prompt.GetUserPrompt(r.Transaction, r.FindingSummary)
	if err != nil {
		return semantic.Assessment{}, err
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.HTTPStatusCode {
			case http.StatusTooManyRequests:
				return semantic.Assessment{}, fmt.Errorf("%w: %v", semantic.ErrQuotaExceeded, err)
			case http.StatusServiceUnavailable:
				return semantic.Assessment{}, fmt.Errorf("%w: %v", semantic.ErrUnavailable, err)
			}
		}
		return semantic.Assessment{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return semantic.Assessment{}, fmt.Errorf("%w: no choices", semantic.ErrMalformedResponse)
	}
	return ParseAssessment(resp.Choices[0].Message.Content)
}

// ParseAssessment decodes the model's JSON answer. The modifier may arrive
// as a number or a numeric string.
func ParseAssessment(content string) (semantic.Assessment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		RiskAssessment    string      `json:"risk_assessment"`
		ContextAnalysis   string      `json:"context_analysis"`
		RiskScoreModifier json.Number `json:"risk_score_modifier"`
		SuggestedAction   string      `json:"suggested_action"`
	}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return semantic.Assessment{}, fmt.Errorf("%w: %v", semantic.ErrMalformedResponse, err)
	}

	var modifier float64
	if raw.RiskScoreModifier != "" {
		v, err := raw.RiskScoreModifier.Float64()
		if err != nil {
			return semantic.Assessment{}, fmt.Errorf("%w: risk_score_modifier %q", semantic.ErrMalformedResponse, raw.RiskScoreModifier)
		}
		modifier = v
	}
	return semantic.Assessment{
		RiskAssessment:    raw.RiskAssessment,
		ContextAnalysis:   raw.ContextAnalysis,
		RiskScoreModifier: modifier,
		SuggestedAction:   raw.SuggestedAction,
	}, nil
}
