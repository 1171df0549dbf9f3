package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationDirs maps a database driver to its migrations subdirectory.
var migrationDirs = map[string]string{
	"postgres": "postgresql",
	"mysql":    "mysql",
}

// MigrationOptions selects where migrations are read from and which way they run.
type MigrationOptions struct {
	// Dir holds one subdirectory per driver ("postgresql", "mysql").
	Dir string
	// Down reverts every applied migration instead of applying pending ones.
	Down bool
}

// RunMigrations applies (or reverts) the client encryption key schema for dbDriver.
// Nothing to do is not an error.
func RunMigrations(logger *slog.Logger, dbDriver, dbConnectionString string, opts MigrationOptions) error {
	subdir, ok := migrationDirs[dbDriver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", dbDriver)
	}
	if opts.Dir == "" {
		opts.Dir = "migrations"
	}
	sourceURL := "file://" + filepath.ToSlash(filepath.Join(opts.Dir, subdir))

	logger.Info("running database migrations",
		slog.String("driver", dbDriver),
		slog.String("source", sourceURL),
		slog.Bool("down", opts.Down),
	)

	m, err := migrate.New(sourceURL, migrationDatabaseURL(dbDriver, dbConnectionString))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	run := m.Up
	if opts.Down {
		run = m.Down
	}
	if err := run(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("migrations completed, schema is empty")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	default:
		logger.Info("migrations completed", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
	return nil
}

// migrationDatabaseURL turns the application DSN into the URL golang-migrate expects.
// go-sql-driver/mysql DSNs carry no scheme, so one is added.
func migrationDatabaseURL(dbDriver, dsn string) string {
	if dbDriver == "mysql" && !strings.HasPrefix(dsn, "mysql://") {
		return "mysql://" + dsn
	}
	return dsn
}
