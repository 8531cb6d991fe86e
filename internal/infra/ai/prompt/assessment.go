package prompt

import (
	"encoding/json"
	"fmt"
)

// GetSystemPrompt sets the reviewer persona and the strict JSON contract.
func GetSystemPrompt() string {
	return `You are an expert forensic accountant and data auditor. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object with exactly the keys below.
- risk_score_modifier is a number between -0.5 and 0.5; positive values increase risk.
- Keep risk_assessment short; put reasoning in context_analysis.

Schema (example with empty values):
{
  "risk_assessment": "<Low|Medium|High|Critical: short summary>",
  "context_analysis": "<why this might or might not be a problem>",
  "risk_score_modifier": 0.0,
  "suggested_action": "<next step for a human reviewer>"
}`
}

// GetUserPrompt embeds the transaction snapshot and the detector summary.
func GetUserPrompt(transaction map[string]any, findingSummary string) (string, error) {
	data, err := json.MarshalIndent(transaction, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transaction snapshot: %w", err)
	}
	return fmt.Sprintf(`Analyze the following accounting transaction for potential risk or anomaly context.

Transaction Data:
%s

System Detection:
%s

Respond with the JSON object per schema.`, data, findingSummary), nil
}
