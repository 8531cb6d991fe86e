// Command migrate runs the embedded database migrations via goose.
//
// Usage:
//
//	migrate up          # Apply all pending migrations
//	migrate down        # Roll back the last migration
//	migrate status      # Show migration status
//	migrate version     # Show current schema version
//	migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/bryanwahyu/anomaly-guard/internal/config"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/migrations"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/mysql"
	"github.com/bryanwahyu/anomaly-guard/internal/infra/db/postgres"
	"github.com/bryanwahyu/anomaly-guard/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	var db *sql.DB
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		db, err = mysql.Connect(ctx, cfg.MySQLDSN())
	case config.DriverPostgres:
		db, err = postgres.Connect(ctx, cfg.PostgresDSN())
	default:
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("migrations need database.driver mysql or postgres")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer func() { _ = db.Close() }()

	command := os.Args[1]
	if err := migrations.Run(ctx, db, cfg.Database.Driver, command, os.Args[2:]...); err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
}
