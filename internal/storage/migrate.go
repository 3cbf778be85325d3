package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Partition tables are only ever created or extended by these files.
//
//go:embed migrations/*.sql
var partitionMigrations embed.FS

// MigratePartitions creates any category partition the database at dbPath is
// missing and returns the resulting schema version. A schema left dirty by an
// interrupted migration is refused rather than built upon.
func MigratePartitions(dbPath string) (uint, error) {
	// own connection: the migrator closes it when done
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return 0, fmt.Errorf("open partition migration database: %w", err)
	}
	defer db.Close()

	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("attach partition migration target: %w", err)
	}
	source, err := iofs.New(partitionMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load embedded partition migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare partition migrations: %w", err)
	}
	defer m.Close()

	if v, dirty, err := m.Version(); err == nil && dirty {
		return v, fmt.Errorf("partition schema is dirty at version %d", v)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply partition migrations: %w", err)
	}

	v, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read partition schema version: %w", err)
	}
	return v, nil
}
