// Package postgres implements the repository contract on PostgreSQL.
// Entities map 1:1 to rows, relationships are engine-enforced foreign keys,
// and multi-item writes run inside native transactions. Schema changes are
// delivered as embedded, ordered migrations applied exactly once.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/infrastructure/config"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the process-wide connection pool and produces the bound
// repository set.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens the connection pool, pings the server, and applies pending
// migrations. A dirty or out-of-order migration state aborts startup.
func New(cfg config.PostgresConfig, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError(fmt.Sprintf("open database: %v", err))
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, pkgerrors.NewUnavailableError("postgresql", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgres store ready",
		zap.Int("maxOpenConns", cfg.MaxOpenConns),
	)
	return &Store{db: db, logger: logger}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return pkgerrors.NewConfigurationError(fmt.Sprintf("create migration source: %v", err))
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return pkgerrors.NewUnavailableError("postgresql", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return pkgerrors.NewConfigurationError(fmt.Sprintf("create migrator: %v", err))
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return pkgerrors.NewConfigurationError(fmt.Sprintf("apply migrations: %v", err))
	}
	return nil
}

// NewStoreWithDB wires the repository set around an existing pool, skipping
// migrations. Tests use this to substitute a mock driver.
func NewStoreWithDB(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Repositories returns the repository set bound to the pool. The transaction
// runner rebinds the same repositories to a *sql.Tx for the duration of fn.
func (s *Store) Repositories() *ports.Repositories {
	return s.bind(s.db)
}

func (s *Store) bind(exec executor) *ports.Repositories {
	return &ports.Repositories{
		Teams:          &teamRepository{exec: exec, logger: s.logger},
		Stacks:         &stackRepository{exec: exec, logger: s.logger},
		CloudProviders: &cloudProviderRepository{exec: exec, logger: s.logger},
		APIKeys:        &apiKeyRepository{exec: exec, logger: s.logger},
		Transactions:   s,
	}
}

// RunInTransaction begins a database transaction, rebinds the repositories
// to it, calls fn, and commits on success or rolls back on any error.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *ports.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError("begin transaction", err)
	}

	repos := s.bind(tx)
	repos.Transactions = nestedRunner{repos: repos}

	if err := fn(ctx, repos); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateError("commit transaction", err)
	}
	return nil
}

// nestedRunner reuses an open transaction instead of nesting a new one.
type nestedRunner struct {
	repos *ports.Repositories
}

func (r nestedRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *ports.Repositories) error) error {
	return fn(ctx, r.repos)
}
