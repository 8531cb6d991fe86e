// Package migrations embeds the goose schema migrations for both supported
// databases.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql postgres/*.sql
var files embed.FS

// Run executes a goose command ("up", "down", "status", ...) against db.
// driver is "mysql" or "postgres".
func Run(ctx context.Context, db *sql.DB, driver, command string, args ...string) error {
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(files)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db, dir, args...)
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	return Run(ctx, db, driver, "up")
}

func dialectFor(driver string) (dialect, dir string, err error) {
	switch driver {
	case "mysql":
		return "mysql", "mysql", nil
	case "postgres":
		return "postgres", "postgres", nil
	}
	return "", "", fmt.Errorf("migrations: unsupported driver %q", driver)
}
