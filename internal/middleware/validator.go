package middleware

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
)

// Input validation and sanitization utilities

var (
	ErrEmptyBatch    = errors.New("batch must contain at least one transaction")
	transactionIDPat = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)
)

// ValidateTransactionID checks the id charset and length (max 64).
func ValidateTransactionID(id string) error {
	if id == "" {
		return fmt.Errorf("transaction id cannot be empty")
	}
	if !transactionIDPat.MatchString(id) {
		return fmt.Errorf("invalid transaction id %q (letters, digits and ._:- only, max 64 chars)", id)
	}
	return nil
}

// ParseFindingID parses a positive numeric finding id.
func ParseFindingID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid finding id %q", raw)
	}
	return id, nil
}

// ValidateBatch rejects empty or oversized batches, bad or repeated ids.
// Field contents are not checked here: malformed values are what the
// detectors report on.
func ValidateBatch(batch []*transactions.Transaction, max int) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	if max > 0 && len(batch) > max {
		return fmt.Errorf("batch too large: %d transactions (max %d)", len(batch), max)
	}
	seen := make(map[string]bool, len(batch))
	for i, t := range batch {
		if t == nil {
			return fmt.Errorf("transaction %d is null", i)
		}
		t.ID = SanitizeString(t.ID)
		if err := ValidateTransactionID(t.ID); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if seen[t.ID] {
			return fmt.Errorf("transaction %d: duplicate id %q in batch", i, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
