// Package ports declares the persistence contract the rest of the
// application depends on. Business code only ever sees these interfaces and
// the error taxonomy in pkg/errors; nothing here references a backend type,
// so the concrete store can be swapped at startup without touching callers.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angryss/idp/domain/core/entities"
)

// Repository is the CRUD contract every entity repository satisfies.
//
// Save is an idempotent upsert: an entity with a zero Version is created
// (generating an identifier when none is set), an entity with a non-zero
// Version replaces the stored record entirely provided the stored version
// still matches. A stale version yields a CONFLICT error; the caller
// re-reads and retries.
//
// FindByID returns (nil, nil) when nothing is stored under the identifier.
// Delete is a no-op when the entity is already absent. List results are
// never nil.
type Repository[T any] interface {
	Save(ctx context.Context, entity *T) (*T, error)
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	FindAll(ctx context.Context) ([]*T, error)
	Delete(ctx context.Context, entity *T) error
	Count(ctx context.Context) (int64, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TeamRepository adds team-specific queries.
type TeamRepository interface {
	Repository[entities.Team]

	// FindByName looks up a team by its unique name; (nil, nil) when absent.
	FindByName(ctx context.Context, name string) (*entities.Team, error)

	// FindByActive lists teams with the given active flag.
	FindByActive(ctx context.Context, active bool) ([]*entities.Team, error)
}

// StackRepository adds stack-specific queries.
type StackRepository interface {
	Repository[entities.Stack]

	// FindByCloudName looks up a stack by its unique cloud name; (nil, nil)
	// when absent.
	FindByCloudName(ctx context.Context, cloudName string) (*entities.Stack, error)

	// FindByTeamID lists the stacks owned by a team.
	FindByTeamID(ctx context.Context, teamID uuid.UUID) ([]*entities.Stack, error)

	// FindByCloudProviderID lists the stacks deployed to a provider.
	FindByCloudProviderID(ctx context.Context, providerID uuid.UUID) ([]*entities.Stack, error)

	// FindByStackType lists stacks of one type.
	FindByStackType(ctx context.Context, stackType entities.StackType) ([]*entities.Stack, error)
}

// CloudProviderRepository adds provider-specific queries.
type CloudProviderRepository interface {
	Repository[entities.CloudProvider]

	// FindByName looks up a provider by its unique name; (nil, nil) when
	// absent.
	FindByName(ctx context.Context, name string) (*entities.CloudProvider, error)

	// FindByEnabled lists providers with the given enabled flag.
	FindByEnabled(ctx context.Context, enabled bool) ([]*entities.CloudProvider, error)

	// FindByKind lists providers of one cloud kind.
	FindByKind(ctx context.Context, kind entities.ProviderKind) ([]*entities.CloudProvider, error)
}

// APIKeyRepository adds credential-specific queries.
type APIKeyRepository interface {
	Repository[entities.APIKey]

	// FindByKeyHash looks up a key by its unique hash; (nil, nil) when
	// absent. This sits on the authentication path and must not scan.
	FindByKeyHash(ctx context.Context, keyHash string) (*entities.APIKey, error)

	// FindByTeamID lists the keys issued to a team.
	FindByTeamID(ctx context.Context, teamID uuid.UUID) ([]*entities.APIKey, error)

	// FindByType lists keys of one scope.
	FindByType(ctx context.Context, keyType entities.APIKeyType) ([]*entities.APIKey, error)

	// FindExpiredBefore lists keys whose expiry has passed. Maintenance-only;
	// backends may satisfy this with a scan.
	FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]*entities.APIKey, error)
}

// TransactionRunner executes fn so that every write issued through the
// repositories it passes in is applied atomically: all of them, or none.
// The number of writes per transaction is bounded; exceeding the bound is a
// VALIDATION error. Reads inside fn see the pre-transaction state on the
// key-value backend and the transaction's own writes on the relational one —
// callers that need read-your-writes inside fn must not rely on it.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

// HealthState is the coarse result of a backend probe.
type HealthState string

const (
	HealthAvailable   HealthState = "available"
	HealthDegraded    HealthState = "degraded"
	HealthUnavailable HealthState = "unavailable"
)

// HealthStatus is what the readiness probe reports.
type HealthStatus struct {
	State    HealthState
	Provider string
	Detail   string
	Checked  time.Time
}

// HealthChecker probes the active backend with one cheap, representative
// call. It never sits on a request-serving path.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Repositories is the full bound implementation set produced once at startup
// by the provider factory and passed down by explicit injection.
type Repositories struct {
	Teams          TeamRepository
	Stacks         StackRepository
	CloudProviders CloudProviderRepository
	APIKeys        APIKeyRepository

	Transactions TransactionRunner
	Health       HealthChecker
}
