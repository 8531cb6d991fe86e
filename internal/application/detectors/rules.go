package detectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

const BusinessRuleEngineName = "BusinessRuleEngine"

// Rule is a declarative policy check. Match returns the evidence to attach
// when the rule fires. Summary is a text/template rendered with the
// transaction as data, e.g. "High value meal detected: ${{.Amount}}".
type Rule struct {
	Name        string
	Description string
	Summary     string
	Match       func(t *transactions.Transaction) (details map[string]any, ok bool)
}

type compiledRule struct {
	Rule
	summary *template.Template
}

// BusinessRuleEngine applies every configured Rule to every transaction.
// Findings are named after the rule that fired.
type BusinessRuleEngine struct {
	rules []compiledRule
}

// NewBusinessRuleEngine validates and compiles rules. An invalid rule is a
// configuration error.
func NewBusinessRuleEngine(rules ...Rule) (*BusinessRuleEngine, error) {
	e := &BusinessRuleEngine{}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Name) == "" {
			return nil, errors.New("business rule: name is required")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("business rule %s: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if r.Match == nil {
			return nil, fmt.Errorf("business rule %s: no predicate", r.Name)
		}
		summary := r.Summary
		if summary == "" {
			summary = r.Name + " triggered: ${{.Amount}}"
		}
		tpl, err := template.New(r.Name).Option("missingkey=error").Parse(summary)
		if err != nil {
			return nil, fmt.Errorf("business rule %s: summary template: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{Rule: r, summary: tpl})
	}
	return e, nil
}

// MustBusinessRuleEngine is NewBusinessRuleEngine for rule sets known at compile time.
func MustBusinessRuleEngine(rules ...Rule) *BusinessRuleEngine {
	e, err := NewBusinessRuleEngine(rules...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *BusinessRuleEngine) Name() string { return BusinessRuleEngineName }

// Rules lists the rule names in evaluation order.
func (e *BusinessRuleEngine) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

func (e *BusinessRuleEngine) Detect(_ context.Context, batch []*transactions.Transaction) ([]*findings.Finding, error) {
	var out []*findings.Finding
	for _, t := range batch {
		for _, r := range e.rules {
			details, ok := r.Match(t)
			if !ok {
				continue
			}
			var sb strings.Builder
			if err := r.summary.Execute(&sb, t); err != nil {
				return nil, fmt.Errorf("business rule %s: render summary: %w", r.Name, err)
			}
			out = append(out, newFinding(t, findings.TypeBusinessRule, r.Name, 1.0, findings.SeverityWarning, sb.String(), details))
		}
	}
	return out, nil
}

// ThresholdRule fires when amount is strictly above threshold and, if any
// categories are given, the category matches one of them case-insensitively.
func ThresholdRule(name, summary string, threshold decimal.Decimal, categories ...string) Rule {
	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return Rule{
		Name:        name,
		Description: fmt.Sprintf("amount > %s in %v", threshold, categories),
		Summary:     summary,
		Match: func(t *transactions.Transaction) (map[string]any, bool) {
			if len(allowed) > 0 && !allowed[strings.ToLower(strings.TrimSpace(t.Category))] {
				return nil, false
			}
			amount, err := t.ParsedAmount()
			if err != nil || !amount.GreaterThan(threshold) {
				return nil, false
			}
			return map[string]any{
				"threshold": threshold.InexactFloat64(),
				"actual":    amount.InexactFloat64(),
				"category":  t.Category,
			}, true
		},
	}
}

// DefaultRules is the built-in policy set.
func DefaultRules() []Rule {
	return []Rule{
		ThresholdRule("HighValueMealRule", "High value meal detected: ${{.Amount}}",
			decimal.NewFromInt(200), "meals", "entertainment"),
	}
}
