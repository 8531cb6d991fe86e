package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/anomaly-guard/internal/middleware"
)

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadBatch(t *testing.T) {
	path := writeInput(t, `[
		{"transaction_id": " t1 ", "date": "2026-10-13", "amount": 50.00, "vendor": "Acme"},
		{"id": "t2", "date": "2026-10-13", "amount": "75", "vendor": "Globex"}
	]`)

	batch, err := loadBatch(path, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "t1", batch[0].ID)
	assert.Equal(t, "t2", batch[1].ID)
}

func TestLoadBatch_RejectsInvalidBatches(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
	}{
		{"records without ids", `[{"amount": 1, "vendor": "Acme"}, {"amount": 2, "vendor": "Acme"}]`, 10},
		{"repeated id", `[{"id": "t1", "amount": 1}, {"id": "t1", "amount": 2}]`, 10},
		{"empty", `[]`, 10},
		{"too large", `[{"id": "t1"}, {"id": "t2"}]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadBatch(writeInput(t, tt.body), tt.max)
			require.Error(t, err)
		})
	}

	_, err := loadBatch(writeInput(t, `[]`), 10)
	assert.ErrorIs(t, err, middleware.ErrEmptyBatch)
}

func TestLoadBatch_MissingFile(t *testing.T) {
	_, err := loadBatch(filepath.Join(t.TempDir(), "nope.json"), 10)
	assert.Error(t, err)
}
