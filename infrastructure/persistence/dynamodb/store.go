// Package dynamodb implements the repository contract on DynamoDB. Each
// entity kind lives in its own table keyed by the canonical identifier
// string, lookups beyond the key go through global secondary indexes, and
// multi-item writes are batched into a single conditional transaction.
// Relationship rules the relational backend gets from foreign keys are
// enforced here with explicit existence checks at write time.
package dynamodb

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/infrastructure/config"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// Store owns the shared client and produces the bound repository set.
type Store struct {
	client           DynamoAPI
	maxTransactItems int
	logger           *zap.Logger

	teams     *teamRepository
	stacks    *stackRepository
	providers *cloudProviderRepository
	keys      *apiKeyRepository
}

// NewStore builds the client from the environment and wires the repository
// set. Table provisioning is separate; call EnsureTables for local setups.
func NewStore(ctx context.Context, cfg config.DynamoDBConfig, logger *zap.Logger) (*Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStoreWithClient(client, cfg, logger), nil
}

// NewStoreWithClient wires the repository set around an existing client.
// Tests use this to substitute a fake.
func NewStoreWithClient(client DynamoAPI, cfg config.DynamoDBConfig, logger *zap.Logger) *Store {
	teams := newTeamRepository(client, cfg.TablePrefix, logger)
	stacks := newStackRepository(client, cfg.TablePrefix, logger)
	providers := newCloudProviderRepository(client, cfg.TablePrefix, logger)
	keys := newAPIKeyRepository(client, cfg.TablePrefix, logger)

	// Relationship enforcement the engine cannot do for us.
	teams.stacks = stacks
	teams.keys = keys
	teams.maxTransact = cfg.MaxTransactItems
	providers.stacks = stacks

	stacks.checkRefs = func(ctx context.Context, s *entities.Stack) error {
		ok, err := teams.Exists(ctx, s.TeamID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.NewValidationError("referenced team does not exist")
		}
		if s.CloudProviderID != uuid.Nil {
			ok, err := providers.Exists(ctx, s.CloudProviderID)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.NewValidationError("referenced cloud provider does not exist")
			}
		}
		return nil
	}

	keys.checkRefs = func(ctx context.Context, k *entities.APIKey) error {
		if k.TeamID == uuid.Nil {
			return nil
		}
		ok, err := teams.Exists(ctx, k.TeamID)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.NewValidationError("referenced team does not exist")
		}
		return nil
	}

	logger.Info("dynamodb store ready",
		zap.String("tablePrefix", cfg.TablePrefix),
		zap.Int("maxTransactItems", cfg.MaxTransactItems),
	)
	return &Store{
		client:           client,
		maxTransactItems: cfg.MaxTransactItems,
		logger:           logger,
		teams:            teams,
		stacks:           stacks,
		providers:        providers,
		keys:             keys,
	}
}

// Client exposes the underlying client for table provisioning.
func (s *Store) Client() DynamoAPI {
	return s.client
}

// Repositories returns the repository set bound to the shared client.
func (s *Store) Repositories() *ports.Repositories {
	return &ports.Repositories{
		Teams:          s.teams,
		Stacks:         s.stacks,
		CloudProviders: s.providers,
		APIKeys:        s.keys,
		Transactions:   s,
	}
}

// Close releases nothing today; the underlying HTTP client is shared. It
// exists so both backends satisfy the same shutdown path.
func (s *Store) Close() error {
	return nil
}
