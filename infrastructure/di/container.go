// Package di assembles the process dependencies. The storage backend is
// chosen exactly once here, from validated configuration; everything above
// this package sees only the repository contract.
package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/infrastructure/config"
	"github.com/angryss/idp/infrastructure/persistence"
	"github.com/angryss/idp/infrastructure/persistence/dynamodb"
	"github.com/angryss/idp/infrastructure/persistence/postgres"
	pkgerrors "github.com/angryss/idp/pkg/errors"
	"github.com/angryss/idp/pkg/observability"
)

// Container holds the assembled dependency graph.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Repositories *ports.Repositories

	closers []func() error
}

// ProvideLogger creates the process logger for the configured environment.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// NewContainer validates the configuration, connects the selected backend,
// and wires the instrumented repository set. The provider choice is final
// for the process lifetime; switching backends means a restart.
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(string(cfg.DatabaseProvider)),
	}

	var (
		repos *ports.Repositories
		probe func(ctx context.Context) error
		err   error
	)

	switch cfg.DatabaseProvider {
	case config.ProviderPostgreSQL:
		repos, probe, err = c.providePostgres(cfg, logger)
	case config.ProviderDynamoDB:
		repos, probe, err = c.provideDynamoDB(ctx, cfg, logger)
	default:
		err = pkgerrors.NewConfigurationError(
			fmt.Sprintf("unknown database provider %q", cfg.DatabaseProvider))
	}
	if err != nil {
		return nil, err
	}

	repos.Health = persistence.NewMonitor(
		string(cfg.DatabaseProvider), cfg.ProbeTimeout, probe, logger)
	c.Repositories = persistence.InstrumentRepositories(repos, c.Metrics)

	logger.Info("persistence provider selected",
		zap.String("provider", string(cfg.DatabaseProvider)),
	)
	return c, nil
}

func (c *Container) providePostgres(cfg *config.Config, logger *zap.Logger) (*ports.Repositories, func(ctx context.Context) error, error) {
	store, err := postgres.New(cfg.Postgres, logger)
	if err != nil {
		return nil, nil, err
	}
	c.closers = append(c.closers, store.Close)

	repos := store.Repositories()
	probe := func(ctx context.Context) error {
		_, err := repos.Teams.Count(ctx)
		return err
	}
	return repos, probe, nil
}

func (c *Container) provideDynamoDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ports.Repositories, func(ctx context.Context) error, error) {
	store, err := dynamodb.NewStore(ctx, cfg.DynamoDB, logger)
	if err != nil {
		return nil, nil, err
	}
	c.closers = append(c.closers, store.Close)

	// Production tables come from infrastructure tooling; local and test
	// environments self-provision.
	if !cfg.IsProduction() {
		if err := dynamodb.EnsureTables(ctx, store.Client(), cfg.DynamoDB.TablePrefix, logger); err != nil {
			return nil, nil, err
		}
	}

	repos := store.Repositories()
	probe := func(ctx context.Context) error {
		_, err := repos.Teams.Count(ctx)
		return err
	}
	return repos, probe, nil
}

// Shutdown releases backend resources in reverse acquisition order.
func (c *Container) Shutdown() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
