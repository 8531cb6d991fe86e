// Package db selects the repository implementation for the configured
// driver.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryanwahyu/anomaly-guard/internal/config"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/findings"
	"github.com/bryanwahyu/anomaly-guard/internal/domain/transactions"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/memory"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/migrations"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/mysql"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/postgres"
)

// Stores bundles the repositories. DB is nil for the memory driver.
type Stores struct {
	Transactions transactions.Repository
	Findings     findings.Repository
	DB           *sql.DB
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Open connects to the configured database. With migrate set, pending
// schema migrations are applied first.
func Open(ctx context.Context, cfg *config.Config, migrate bool) (*Stores, error) {
	driver := cfg.Database.Driver
	var (
		conn *sql.DB
		err  error
	)
	switch driver {
	case config.DriverMemory:
		return &Stores{
			Transactions: memory.NewTransactionRepository(),
			Findings:     memory.NewFindingRepository(),
		}, nil
	case config.DriverMySQL:
		conn, err = mysql.Connect(ctx, cfg.MySQLDSN())
	case config.DriverPostgres:
		conn, err = postgres.Connect(ctx, cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", driver, err)
	}

	if migrate {
		if err := migrations.Up(ctx, conn, driver); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s migrate: %w", driver, err)
		}
	}

	if driver == config.DriverPostgres {
		return &Stores{
			Transactions: postgres.NewTransactionRepository(conn),
			Findings:     postgres.NewFindingRepository(conn),
			DB:           conn,
		}, nil
	}
	return &Stores{
		Transactions: mysql.NewTransactionRepository(conn),
		Findings:     mysql.NewFindingRepository(conn),
		DB:           conn,
	}, nil
}
