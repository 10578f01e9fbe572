package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/nimasrn/church-messaging/pkg/logger"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	return withMigrator(cfg, func(db *sql.DB) error {
		if err := goose.Up(db, dir); err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
		if version, err := goose.GetDBVersion(db); err == nil {
			logger.Info("migrations applied", "dir", dir, "version", version)
		}
		return nil
	})
}

// MigrationStatus prints the applied/pending state of every migration.
func MigrationStatus(cfg Config, dir string) error {
	return withMigrator(cfg, func(db *sql.DB) error {
		return goose.Status(db, dir)
	})
}

// goose works on database/sql, so migrations get their own lib/pq handle
// rather than the pgx pool behind gorm.
func withMigrator(cfg Config, fn func(db *sql.DB) error) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	db, err := sql.Open("postgres", dsn(cfg))
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping %s: %w", cfg.Host, err)
	}
	return fn(db)
}
