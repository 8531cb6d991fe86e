package detectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/anomaly-guard/internal/application"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

// --- Helpers ---

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type historyFunc func(ctx context.Context) ([]*transactions.Transaction, error)

func (f historyFunc) List(ctx context.Context) ([]*transactions.Transaction, error) { return f(ctx) }

func tx(id, date, amount, vendor, category string) *transactions.Transaction {
	return &transactions.Transaction{ID: id, Date: date, Amount: amount, Vendor: vendor, Category: category}
}

func byTransaction(fs []*findings.Finding) map[string]*findings.Finding {
	out := make(map[string]*findings.Finding, len(fs))
	for _, f := range fs {
		out[f.TransactionID] = f
	}
	return out
}

// --- DuplicateDetector ---

func TestDuplicateDetector_FlagsEveryGroupMember(t *testing.T) {
	batch := []*transactions.Transaction{
		tx("a", "2026-10-13", "50.00", "Acme", "office"),
		tx("b", "2026-10-13", "50.00", "Acme", "office"),
		tx("c", "2026-10-13", "50.00", "Acme", "office"),
		tx("d", "2026-10-13", "75.00", "Acme", "office"),
	}

	fs, err := NewDuplicateDetector(nil).Detect(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, fs, 3)

	got := byTransaction(fs)
	for _, id := range []string{"a", "b", "c"} {
		f, ok := got[id]
		require.True(t, ok, "missing finding for %s", id)
		assert.Equal(t, DuplicateDetectorName, f.DetectorName)
		assert.Equal(t, findings.TypeStatistical, f.DetectorType)
		assert.Equal(t, findings.SeverityError, f.Severity)
		assert.Equal(t, 0.95, f.Confidence)
		assert.Equal(t, "Potential duplicate transaction detected", f.Summary)
		assert.Equal(t, 2, f.Details["matches_found"])
	}
	assert.NotContains(t, got, "d")
}

func TestDuplicateDetector_MatchesHistoryAndNormalizesAmount(t *testing.T) {
	history := historyFunc(func(context.Context) ([]*transactions.Transaction, error) {
		return []*transactions.Transaction{
			tx("old", "2026-10-01", "100", "Acme", "office"),
			// the batch transaction itself is already stored; it must not count twice
			tx("new", "2026-10-01", "100.00", "Acme", "office"),
		}, nil
	})

	fs, err := NewDuplicateDetector(history).Detect(context.Background(), []*transactions.Transaction{
		tx("new", "2026-10-01", "100.00", "Acme", "office"),
	})
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "new", fs[0].TransactionID)
	assert.Equal(t, 1, fs[0].Details["matches_found"])
}

func TestDuplicateDetector_NormalizesDateAndVendor(t *testing.T) {
	fs, err := NewDuplicateDetector(nil).Detect(context.Background(), []*transactions.Transaction{
		tx("a", "2026-10-13", "50.00", "Acme", "office"),
		tx("b", "2026/10/13", "50", " Acme ", "office"),
		tx("c", "2026-10-14", "50.00", "Acme", "office"),
		tx("d", "2026-10-13", "50.00", "acme", "office"),
	})
	require.NoError(t, err)
	require.Len(t, fs, 2)

	got := byTransaction(fs)
	assert.Contains(t, got, "a")
	assert.Contains(t, got, "b")
}

func TestDuplicateDetector_IgnoresIncompleteRecords(t *testing.T) {
	fs, err := NewDuplicateDetector(nil).Detect(context.Background(), []*transactions.Transaction{
		tx("a", "2026-10-13", "", "Acme", ""),
		tx("b", "2026-10-13", "", "Acme", ""),
	})
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestDuplicateDetector_HistoryFailure(t *testing.T) {
	boom := errors.New("db down")
	history := historyFunc(func(context.Context) ([]*transactions.Transaction, error) { return nil, boom })

	_, err := NewDuplicateDetector(history).Detect(context.Background(), []*transactions.Transaction{tx("a", "2026-10-13", "1", "Acme", "")})
	assert.ErrorIs(t, err, boom)
}

// --- OutlierDetector ---

func TestOutlierDetector_FlagsSingleExtremeAmount(t *testing.T) {
	amounts := []string{"95", "96", "97", "98", "99", "101", "102", "103", "104", "105", "100000"}
	var batch []*transactions.Transaction
	for i, a := range amounts {
		batch = append(batch, tx(fmt.Sprintf("t%d", i), "2026-10-13", a, "Acme", "office"))
	}

	fs, err := NewOutlierDetector().Detect(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, fs, 1)

	f := fs[0]
	assert.Equal(t, "t10", f.TransactionID)
	assert.Equal(t, "Unusually large transaction amount: $100000", f.Summary)
	assert.Equal(t, 0.85, f.Confidence)
	assert.Equal(t, findings.SeverityWarning, f.Severity)

	mean := f.Details["mean_amount"].(float64)
	std := f.Details["std_dev"].(float64)
	z := f.Details["z_score"].(float64)
	wantMean, wantStd := populationStats(t, amounts)
	assert.InDelta(t, (1000.0+100000.0)/11.0, mean, 1e-6)
	assert.InDelta(t, wantMean, mean, 1e-6)
	assert.InDelta(t, wantStd, std, 1e-6)
	assert.Greater(t, z, 3.0)
	assert.InDelta(t, (100000.0-mean)/std, z, 1e-9)
}

func TestOutlierDetector_NeedsThreeSamplesAndSpread(t *testing.T) {
	d := NewOutlierDetector()

	fs, err := d.Detect(context.Background(), []*transactions.Transaction{
		tx("a", "", "1", "", ""),
		tx("b", "", "1000000", "", ""),
	})
	require.NoError(t, err)
	assert.Empty(t, fs)

	fs, err = d.Detect(context.Background(), []*transactions.Transaction{
		tx("a", "", "10", "", ""),
		tx("b", "", "10", "", ""),
		tx("c", "", "10", "", ""),
		tx("d", "", "oops", "", ""),
	})
	require.NoError(t, err)
	assert.Empty(t, fs)
}

func TestOutlierDetector_SkipsAmountsOutsideFloatRange(t *testing.T) {
	amounts := []string{"95", "96", "97", "98", "99", "101", "102", "103", "104", "105", "1e400"}
	var batch []*transactions.Transaction
	for i, a := range amounts {
		batch = append(batch, tx(fmt.Sprintf("t%d", i), "2026-10-13", a, "Acme", "office"))
	}

	fs, err := NewOutlierDetector().Detect(context.Background(), batch)
	require.NoError(t, err)
	assert.Empty(t, fs)

	// the oversized record is ignored, the rest of the batch is still scanned
	batch = append(batch, tx("big", "2026-10-13", "100000", "Acme", "office"))
	fs, err = NewOutlierDetector().Detect(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "big", fs[0].TransactionID)
	_, err = json.Marshal(fs[0].Details)
	assert.NoError(t, err)
}

func populationStats(t *testing.T, amounts []string) (mean, std float64) {
	t.Helper()
	vals := make([]float64, len(amounts))
	for i, a := range amounts {
		d, err := decimal.NewFromString(a)
		require.NoError(t, err)
		vals[i] = d.InexactFloat64()
		mean += vals[i]
	}
	mean /= float64(len(vals))
	for _, v := range vals {
		std += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(std / float64(len(vals)))
}

// --- MissingFieldDetector ---

func TestMissingFieldDetector(t *testing.T) {
	fs, err := NewMissingFieldDetector().Detect(context.Background(), []*transactions.Transaction{
		tx("a", "2026-10-13", "NaN", "Acme", ""),
		tx("b", "null", " ", "None", ""),
		tx("c", "2026-10-13", "10", "Acme", ""),
	})
	require.NoError(t, err)
	require.Len(t, fs, 2)

	got := byTransaction(fs)
	assert.Equal(t, []string{"amount"}, got["a"].Details["missing_fields"])
	assert.Equal(t, "Missing required fields: amount", got["a"].Summary)
	assert.Equal(t, []string{"date", "amount", "vendor"}, got["b"].Details["missing_fields"])
	assert.Equal(t, 1.0, got["a"].Confidence)
	assert.Equal(t, findings.SeverityError, got["a"].Severity)
}

// --- FormatValidator ---

func TestFormatValidator(t *testing.T) {
	d := NewFormatValidator(application.FixedClock(testNow))

	tests := []struct {
		name   string
		tx     *transactions.Transaction
		errors []string
	}{
		{"negative amount and impossible date", tx("a", "2026-13-45", "-150.00", "Acme", ""),
			[]string{"Invalid amount: -150.00 (must be positive)", "Invalid date format: 2026-13-45"}},
		{"non numeric amount", tx("b", "2026-10-13", "12abc", "Acme", ""),
			[]string{"Invalid amount format: 12abc"}},
		{"zero amount", tx("c", "2026-10-13", "0", "Acme", ""),
			[]string{"Invalid amount: 0 (must be positive)"}},
		{"future date", tx("d", "2027-01-01", "10", "Acme", ""),
			[]string{"Future transaction date: 2027-01-01"}},
		{"old date", tx("e", "1999-12-31", "10", "Acme", ""),
			[]string{"Suspiciously old transaction date: 1999-12-31"}},
		{"valid", tx("f", "2026-10-13", "10", "Acme", ""), nil},
		{"absent values are left to the missing field check", tx("g", "nan", "", "Acme", ""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := d.Detect(context.Background(), []*transactions.Transaction{tt.tx})
			require.NoError(t, err)
			if tt.errors == nil {
				assert.Empty(t, fs)
				return
			}
			require.Len(t, fs, 1)
			assert.Equal(t, tt.errors, fs[0].Details["format_errors"])
			assert.Equal(t, findings.SeverityError, fs[0].Severity)
			assert.Contains(t, fs[0].Summary, "Format validation failed: ")
		})
	}
}

// --- TemporalAnomalyDetector ---

func TestTemporalAnomalyDetector(t *testing.T) {
	fs, err := NewTemporalAnomalyDetector().Detect(context.Background(), []*transactions.Transaction{
		tx("sat", "2026-10-10", "1", "Acme", ""),
		tx("sun", "2026-10-11", "1", "Acme", ""),
		tx("mon", "2026-10-12", "1", "Acme", ""),
		tx("bad", "not a date", "1", "Acme", ""),
	})
	require.NoError(t, err)
	require.Len(t, fs, 2)

	got := byTransaction(fs)
	assert.Equal(t, "Saturday", got["sat"].Details["day_of_week"])
	assert.Equal(t, true, got["sat"].Details["is_weekend"])
	assert.Equal(t, "Transaction recorded on a weekend: Sunday", got["sun"].Summary)
	assert.Equal(t, 0.75, got["sun"].Confidence)
}

// --- BusinessRuleEngine ---

func TestBusinessRuleEngine_DefaultRules(t *testing.T) {
	e := MustBusinessRuleEngine(DefaultRules()...)
	assert.Equal(t, []string{"HighValueMealRule"}, e.Rules())

	fs, err := e.Detect(context.Background(), []*transactions.Transaction{
		tx("meal", "2026-10-13", "350.00", "Bistro", "Meals"),
		tx("edge", "2026-10-13", "200", "Bistro", "meals"),
		tx("office", "2026-10-13", "900", "Staples", "office"),
	})
	require.NoError(t, err)
	require.Len(t, fs, 1)

	f := fs[0]
	assert.Equal(t, "meal", f.TransactionID)
	assert.Equal(t, "HighValueMealRule", f.DetectorName)
	assert.Equal(t, findings.TypeBusinessRule, f.DetectorType)
	assert.Equal(t, "High value meal detected: $350.00", f.Summary)
	assert.Equal(t, 200.0, f.Details["threshold"])
	assert.Equal(t, 350.0, f.Details["actual"])
}

func TestNewBusinessRuleEngine_RejectsInvalidRules(t *testing.T) {
	match := func(*transactions.Transaction) (map[string]any, bool) { return nil, true }

	_, err := NewBusinessRuleEngine(Rule{Name: " ", Match: match})
	assert.Error(t, err)

	_, err = NewBusinessRuleEngine(Rule{Name: "r", Match: match}, Rule{Name: "r", Match: match})
	assert.Error(t, err)

	_, err = NewBusinessRuleEngine(Rule{Name: "r"})
	assert.Error(t, err)

	_, err = NewBusinessRuleEngine(Rule{Name: "r", Summary: "{{.Amount", Match: match})
	assert.Error(t, err)

	e, err := NewBusinessRuleEngine(ThresholdRule("BigSpend", "", decimal.NewFromInt(1000)))
	require.NoError(t, err)
	fs, err := e.Detect(context.Background(), []*transactions.Transaction{tx("x", "", "1500", "", "anything")})
	require.NoError(t, err)
	require.Len(t, fs, 1)
	assert.Equal(t, "BigSpend triggered: $1500", fs[0].Summary)
}

// --- Default ---

func TestDefault_RegistrationOrder(t *testing.T) {
	ds := Default(nil, application.FixedClock(testNow), nil)
	var names []string
	for _, d := range ds {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{
		DuplicateDetectorName,
		OutlierDetectorName,
		MissingFieldDetectorName,
		FormatValidatorName,
		TemporalAnomalyDetectorName,
		BusinessRuleEngineName,
	}, names)
}
