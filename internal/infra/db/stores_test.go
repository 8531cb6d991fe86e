package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/anomaly-guard/internal/config"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/memory"
)

func TestOpen_Memory(t *testing.T) {
	var cfg config.Config
	cfg.Database.Driver = config.DriverMemory

	s, err := Open(context.Background(), &cfg, true)
	require.NoError(t, err)
	assert.IsType(t, &memory.TransactionRepository{}, s.Transactions)
	assert.IsType(t, &memory.FindingRepository{}, s.Findings)
	assert.NoError(t, s.Close())
}

func TestOpen_UnknownDriver(t *testing.T) {
	var cfg config.Config
	cfg.Database.Driver = "oracle"
	_, err := Open(context.Background(), &cfg, false)
	assert.Error(t, err)
}
