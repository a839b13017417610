package mysql

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

func setupGoose() error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Migrate applies pending migrations.
func (s *Storage) Migrate() error {
	return MigrateWithDB(s.db)
}

func MigrateWithDB(db *sql.DB) error {
	const op = "storage.mysql.Migrate"

	if err := setupGoose(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func (s *Storage) MigrationVersion() (int64, error) {
	const op = "storage.mysql.MigrationVersion"

	if err := setupGoose(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	v, err := goose.GetDBVersion(s.db)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}
