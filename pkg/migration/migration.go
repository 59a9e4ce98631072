package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// ErrDirtySchema means a previous run failed halfway and needs manual repair.
var ErrDirtySchema = errors.New("database schema is dirty")

const migrationsTable = "schema_migrations"

// Config points the migrator at embedded SQL files.
type Config struct {
	MigrationsPath string
	MigrationsFS   fs.FS
	LockTimeout    time.Duration
}

// Migrator applies the embedded schema over a pgx pool.
type Migrator struct {
	cfg    Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewMigrator(cfg Config, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30 * time.Second
	}
	return &Migrator{cfg: cfg, pool: pool, logger: logger.Named("Migrator")}
}

// Up brings the schema to the latest version. It refuses to touch a dirty
// schema and stops between migrations once ctx is cancelled.
func (m *Migrator) Up(ctx context.Context) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(mg)

	from, dirty, err := currentVersion(mg)
	if err != nil {
		return err
	}
	if dirty {
		m.logger.Error("Refusing to migrate a dirty schema", zap.Uint("version", from))
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mg.GracefulStop <- true
		case <-done:
		}
	}()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations from version %d: %w", from, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migrations interrupted: %w", err)
	}

	to, _, err := currentVersion(mg)
	if err != nil {
		return err
	}
	if to == from {
		m.logger.Info("Schema is up to date", zap.Uint("version", to))
	} else {
		m.logger.Info("Schema migrated", zap.Uint("from", from), zap.Uint("to", to))
	}
	return nil
}

// Version reports the applied version; 0 means nothing has been applied.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer m.close(mg)
	return currentVersion(mg)
}

func currentVersion(mg *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(stdlib.OpenDBFromPool(m.pool), &postgres.Config{
		MigrationsTable:       migrationsTable,
		MigrationsTableQuoted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	source, err := iofs.New(m.cfg.MigrationsFS, m.cfg.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("embedded migration source %q: %w", m.cfg.MigrationsPath, err)
	}
	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	mg.LockTimeout = m.cfg.LockTimeout
	return mg, nil
}

func (m *Migrator) close(mg *migrate.Migrate) {
	if srcErr, dbErr := mg.Close(); srcErr != nil || dbErr != nil {
		m.logger.Warn("Failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
	}
}
