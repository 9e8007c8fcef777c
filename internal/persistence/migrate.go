package persistence

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"newslens/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     uint
	Description string
	Applied     bool
}

// MigrationManager handles database migrations
type MigrationManager struct {
	store *PostgresStore
	log   *slog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(store *PostgresStore) *MigrationManager {
	return &MigrationManager{
		store: store,
		log:   logger.With("component", "migrate"),
	}
}

// Migrate runs all pending migrations
func (m *MigrationManager) Migrate(ctx context.Context) error {
	m.log.Info("Starting database migration")

	mig, err := m.instance()
	if err != nil {
		return err
	}
	stop := stopOnCancel(ctx, mig)
	defer stop()

	if err := mig.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.log.Info("No pending migrations")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := mig.Version()
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	m.log.Info("Migration completed successfully", "version", version, "dirty", dirty)
	return nil
}

// Status shows migration status
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	mig, err := m.instance()
	if err != nil {
		return nil, err
	}

	current, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		m.log.Warn("Database is in a dirty migration state", "version", current)
	}

	available, err := availableMigrations()
	if err != nil {
		return nil, err
	}
	for i := range available {
		available[i].Applied = current > 0 && available[i].Version <= current
	}
	return available, nil
}

// Rollback reverts the most recently applied migration
func (m *MigrationManager) Rollback(ctx context.Context) error {
	mig, err := m.instance()
	if err != nil {
		return err
	}
	stop := stopOnCancel(ctx, mig)
	defer stop()

	version, _, err := mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("no migrations to rollback")
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	m.log.Warn("Rolling back migration", "version", version)
	if err := mig.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration %d: %w", version, err)
	}
	m.log.Info("Migration rolled back", "version", version)
	return nil
}

// instance builds a migrator over the store's pool. It is never closed:
// closing the postgres driver would close the shared pool.
func (m *MigrationManager) instance() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(m.store.DB(), &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source: %w", err)
	}

	mig, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	mig.Log = migrateLogger{log: m.log}
	return mig, nil
}

func stopOnCancel(ctx context.Context, mig *migrate.Migrate) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			mig.GracefulStop <- true
		case <-done:
		}
	}()
	return func() { close(done) }
}

// availableMigrations lists the embedded up migrations
// (e.g. "000001_init.up.sql" -> 1, "init").
func availableMigrations() ([]MigrationStatus, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []MigrationStatus
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(name, ".up.sql"), "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, MigrationStatus{
			Version:     uint(version),
			Description: strings.ReplaceAll(parts[1], "_", " "),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type migrateLogger struct {
	log *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }
