package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// memRepo is an in-memory stand-in honoring the repository contract: Save
// upserts with version checking, FindByID returns (nil, nil) on absence,
// Delete is idempotent.
type memRepo[T any] struct {
	name   string
	items  map[uuid.UUID]*T
	metaOf func(*T) *entities.Meta
	check  func(*T) error
}

func newMemRepo[T any](name string, metaOf func(*T) *entities.Meta, check func(*T) error) *memRepo[T] {
	return &memRepo[T]{
		name:   name,
		items:  map[uuid.UUID]*T{},
		metaOf: metaOf,
		check:  check,
	}
}

func (r *memRepo[T]) Save(_ context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, pkgerrors.NewValidationError(r.name + " cannot be nil")
	}
	saved := *entity
	if err := r.check(&saved); err != nil {
		return nil, err
	}
	m := r.metaOf(&saved)
	if m.Version == 0 {
		m.StampForCreate(time.Now())
		if _, taken := r.items[m.ID]; taken {
			return nil, pkgerrors.NewConflictError(r.name + " with this identifier already exists")
		}
	} else {
		stored, ok := r.items[m.ID]
		if !ok {
			return nil, pkgerrors.NewNotFoundError(r.name)
		}
		if r.metaOf(stored).Version != m.Version {
			return nil, pkgerrors.NewConflictError("concurrent update detected on " + r.name)
		}
		m.StampForUpdate(time.Now())
	}
	r.items[m.ID] = &saved
	out := saved
	return &out, nil
}

func (r *memRepo[T]) FindByID(_ context.Context, id uuid.UUID) (*T, error) {
	stored, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

func (r *memRepo[T]) FindAll(_ context.Context) ([]*T, error) {
	return r.filter(func(*T) bool { return true }), nil
}

func (r *memRepo[T]) Delete(_ context.Context, entity *T) error {
	if entity == nil {
		return nil
	}
	delete(r.items, r.metaOf(entity).ID)
	return nil
}

func (r *memRepo[T]) Count(_ context.Context) (int64, error) {
	return int64(len(r.items)), nil
}

func (r *memRepo[T]) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.items[id]
	return ok, nil
}

func (r *memRepo[T]) filter(keep func(*T) bool) []*T {
	out := make([]*T, 0)
	for _, stored := range r.items {
		if keep(stored) {
			copied := *stored
			out = append(out, &copied)
		}
	}
	return out
}

func (r *memRepo[T]) first(keep func(*T) bool) *T {
	matches := r.filter(keep)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

type memTeams struct{ *memRepo[entities.Team] }

func (r memTeams) FindByName(_ context.Context, name string) (*entities.Team, error) {
	return r.first(func(t *entities.Team) bool { return t.Name == name }), nil
}

func (r memTeams) FindByActive(_ context.Context, active bool) ([]*entities.Team, error) {
	return r.filter(func(t *entities.Team) bool { return t.Active == active }), nil
}

type memStacks struct{ *memRepo[entities.Stack] }

func (r memStacks) FindByCloudName(_ context.Context, cloudName string) (*entities.Stack, error) {
	return r.first(func(s *entities.Stack) bool { return s.CloudName == cloudName }), nil
}

func (r memStacks) FindByTeamID(_ context.Context, teamID uuid.UUID) ([]*entities.Stack, error) {
	return r.filter(func(s *entities.Stack) bool { return s.TeamID == teamID }), nil
}

func (r memStacks) FindByCloudProviderID(_ context.Context, providerID uuid.UUID) ([]*entities.Stack, error) {
	return r.filter(func(s *entities.Stack) bool { return s.CloudProviderID == providerID }), nil
}

func (r memStacks) FindByStackType(_ context.Context, stackType entities.StackType) ([]*entities.Stack, error) {
	return r.filter(func(s *entities.Stack) bool { return s.StackType == stackType }), nil
}

type memProviders struct{ *memRepo[entities.CloudProvider] }

func (r memProviders) FindByName(_ context.Context, name string) (*entities.CloudProvider, error) {
	return r.first(func(p *entities.CloudProvider) bool { return p.Name == name }), nil
}

func (r memProviders) FindByEnabled(_ context.Context, enabled bool) ([]*entities.CloudProvider, error) {
	return r.filter(func(p *entities.CloudProvider) bool { return p.Enabled == enabled }), nil
}

func (r memProviders) FindByKind(_ context.Context, kind entities.ProviderKind) ([]*entities.CloudProvider, error) {
	return r.filter(func(p *entities.CloudProvider) bool { return p.Kind == kind }), nil
}

type memKeys struct{ *memRepo[entities.APIKey] }

func (r memKeys) FindByKeyHash(_ context.Context, keyHash string) (*entities.APIKey, error) {
	return r.first(func(k *entities.APIKey) bool { return k.KeyHash == keyHash }), nil
}

func (r memKeys) FindByTeamID(_ context.Context, teamID uuid.UUID) ([]*entities.APIKey, error) {
	return r.filter(func(k *entities.APIKey) bool { return k.TeamID == teamID }), nil
}

func (r memKeys) FindByType(_ context.Context, keyType entities.APIKeyType) ([]*entities.APIKey, error) {
	return r.filter(func(k *entities.APIKey) bool { return k.Type == keyType }), nil
}

func (r memKeys) FindExpiredBefore(_ context.Context, cutoff time.Time) ([]*entities.APIKey, error) {
	return r.filter(func(k *entities.APIKey) bool {
		return k.ExpiresAt != nil && k.ExpiresAt.Before(cutoff)
	}), nil
}

// memRunner applies writes directly; atomicity is the backends' concern.
type memRunner struct{ repos *ports.Repositories }

func (r memRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *ports.Repositories) error) error {
	return fn(ctx, r.repos)
}

func newMemRepos() *ports.Repositories {
	repos := &ports.Repositories{
		Teams: memTeams{newMemRepo("team",
			func(t *entities.Team) *entities.Meta { return &t.Meta },
			func(t *entities.Team) error { return t.Validate() })},
		Stacks: memStacks{newMemRepo("stack",
			func(s *entities.Stack) *entities.Meta { return &s.Meta },
			func(s *entities.Stack) error { return s.Validate() })},
		CloudProviders: memProviders{newMemRepo("cloud provider",
			func(p *entities.CloudProvider) *entities.Meta { return &p.Meta },
			func(p *entities.CloudProvider) error { return p.Validate() })},
		APIKeys: memKeys{newMemRepo("api key",
			func(k *entities.APIKey) *entities.Meta { return &k.Meta },
			func(k *entities.APIKey) error { return k.Validate() })},
	}
	repos.Transactions = memRunner{repos: repos}
	return repos
}
