package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
	"github.com/angryss/idp/pkg/observability"
)

// InstrumentRepositories wraps every repository with latency and outcome
// metrics. Wrapping happens once at startup, after the backend is chosen.
func InstrumentRepositories(repos *ports.Repositories, metrics *observability.Metrics) *ports.Repositories {
	instrumented := &ports.Repositories{
		Teams:          &instrumentedTeams{inner: repos.Teams, rec: recorder{entity: "team", metrics: metrics}},
		Stacks:         &instrumentedStacks{inner: repos.Stacks, rec: recorder{entity: "stack", metrics: metrics}},
		CloudProviders: &instrumentedProviders{inner: repos.CloudProviders, rec: recorder{entity: "cloud_provider", metrics: metrics}},
		APIKeys:        &instrumentedKeys{inner: repos.APIKeys, rec: recorder{entity: "api_key", metrics: metrics}},
		Health:         repos.Health,
	}
	instrumented.Transactions = &instrumentedRunner{
		inner:   repos.Transactions,
		metrics: metrics,
	}
	return instrumented
}

type recorder struct {
	entity  string
	metrics *observability.Metrics
}

func (r recorder) observe(op string, start time.Time, err error) {
	r.metrics.ObserveRepoOp(r.entity, op, outcome(err), time.Since(start))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return strings.ToLower(string(appErr.Type))
	}
	return "internal"
}

type instrumentedTeams struct {
	inner ports.TeamRepository
	rec   recorder
}

func (r *instrumentedTeams) Save(ctx context.Context, t *entities.Team) (saved *entities.Team, err error) {
	start := time.Now()
	defer func() { r.rec.observe("save", start, err) }()
	return r.inner.Save(ctx, t)
}

func (r *instrumentedTeams) FindByID(ctx context.Context, id uuid.UUID) (team *entities.Team, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_id", start, err) }()
	return r.inner.FindByID(ctx, id)
}

func (r *instrumentedTeams) FindAll(ctx context.Context) (teams []*entities.Team, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_all", start, err) }()
	return r.inner.FindAll(ctx)
}

func (r *instrumentedTeams) Delete(ctx context.Context, t *entities.Team) (err error) {
	start := time.Now()
	defer func() { r.rec.observe("delete", start, err) }()
	return r.inner.Delete(ctx, t)
}

func (r *instrumentedTeams) Count(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { r.rec.observe("count", start, err) }()
	return r.inner.Count(ctx)
}

func (r *instrumentedTeams) Exists(ctx context.Context, id uuid.UUID) (ok bool, err error) {
	start := time.Now()
	defer func() { r.rec.observe("exists", start, err) }()
	return r.inner.Exists(ctx, id)
}

func (r *instrumentedTeams) FindByName(ctx context.Context, name string) (team *entities.Team, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_name", start, err) }()
	return r.inner.FindByName(ctx, name)
}

func (r *instrumentedTeams) FindByActive(ctx context.Context, active bool) (teams []*entities.Team, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_active", start, err) }()
	return r.inner.FindByActive(ctx, active)
}

type instrumentedStacks struct {
	inner ports.StackRepository
	rec   recorder
}

func (r *instrumentedStacks) Save(ctx context.Context, s *entities.Stack) (saved *entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("save", start, err) }()
	return r.inner.Save(ctx, s)
}

func (r *instrumentedStacks) FindByID(ctx context.Context, id uuid.UUID) (stack *entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_id", start, err) }()
	return r.inner.FindByID(ctx, id)
}

func (r *instrumentedStacks) FindAll(ctx context.Context) (stacks []*entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_all", start, err) }()
	return r.inner.FindAll(ctx)
}

func (r *instrumentedStacks) Delete(ctx context.Context, s *entities.Stack) (err error) {
	start := time.Now()
	defer func() { r.rec.observe("delete", start, err) }()
	return r.inner.Delete(ctx, s)
}

func (r *instrumentedStacks) Count(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { r.rec.observe("count", start, err) }()
	return r.inner.Count(ctx)
}

func (r *instrumentedStacks) Exists(ctx context.Context, id uuid.UUID) (ok bool, err error) {
	start := time.Now()
	defer func() { r.rec.observe("exists", start, err) }()
	return r.inner.Exists(ctx, id)
}

func (r *instrumentedStacks) FindByCloudName(ctx context.Context, cloudName string) (stack *entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_cloud_name", start, err) }()
	return r.inner.FindByCloudName(ctx, cloudName)
}

func (r *instrumentedStacks) FindByTeamID(ctx context.Context, teamID uuid.UUID) (stacks []*entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_team_id", start, err) }()
	return r.inner.FindByTeamID(ctx, teamID)
}

func (r *instrumentedStacks) FindByCloudProviderID(ctx context.Context, providerID uuid.UUID) (stacks []*entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_cloud_provider_id", start, err) }()
	return r.inner.FindByCloudProviderID(ctx, providerID)
}

func (r *instrumentedStacks) FindByStackType(ctx context.Context, stackType entities.StackType) (stacks []*entities.Stack, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_stack_type", start, err) }()
	return r.inner.FindByStackType(ctx, stackType)
}

type instrumentedProviders struct {
	inner ports.CloudProviderRepository
	rec   recorder
}

func (r *instrumentedProviders) Save(ctx context.Context, p *entities.CloudProvider) (saved *entities.CloudProvider, err error) {
	start := time.Now()
	defer func() { r.rec.observe("save", start, err) }()
	return r.inner.Save(ctx, p)
}

func (r *instrumentedProviders) FindByID(ctx context.Context, id uuid.UUID) (provider *entities.CloudProvider, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_id", start, err) }()
	return r.inner.FindByID(ctx, id)
}

func (r *instrumentedProviders) FindAll(ctx context.Context) (providers []*entities.CloudProvider, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_all", start, err) }()
	return r.inner.FindAll(ctx)
}

func (r *instrumentedProviders) Delete(ctx context.Context, p *entities.CloudProvider) (err error) {
	start := time.Now()
	defer func() { r.rec.observe("delete", start, err) }()
	return r.inner.Delete(ctx, p)
}

func (r *instrumentedProviders) Count(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { r.rec.observe("count", start, err) }()
	return r.inner.Count(ctx)
}

func (r *instrumentedProviders) Exists(ctx context.Context, id uuid.UUID) (ok bool, err error) {
	start := time.Now()
	defer func() { r.rec.observe("exists", start, err) }()
	return r.inner.Exists(ctx, id)
}

func (r *instrumentedProviders) FindByName(ctx context.Context, name string) (provider *entities.CloudProvider, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_name", start, err) }()
	return r.inner.FindByName(ctx, name)
}

func (r *instrumentedProviders) FindByEnabled(ctx context.Context, enabled bool) (providers []*entities.CloudProvider, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_enabled", start, err) }()
	return r.inner.FindByEnabled(ctx, enabled)
}

func (r *instrumentedProviders) FindByKind(ctx context.Context, kind entities.ProviderKind) (providers []*entities.CloudProvider, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_kind", start, err) }()
	return r.inner.FindByKind(ctx, kind)
}

type instrumentedKeys struct {
	inner ports.APIKeyRepository
	rec   recorder
}

func (r *instrumentedKeys) Save(ctx context.Context, k *entities.APIKey) (saved *entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("save", start, err) }()
	return r.inner.Save(ctx, k)
}

func (r *instrumentedKeys) FindByID(ctx context.Context, id uuid.UUID) (key *entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_id", start, err) }()
	return r.inner.FindByID(ctx, id)
}

func (r *instrumentedKeys) FindAll(ctx context.Context) (keys []*entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_all", start, err) }()
	return r.inner.FindAll(ctx)
}

func (r *instrumentedKeys) Delete(ctx context.Context, k *entities.APIKey) (err error) {
	start := time.Now()
	defer func() { r.rec.observe("delete", start, err) }()
	return r.inner.Delete(ctx, k)
}

func (r *instrumentedKeys) Count(ctx context.Context) (n int64, err error) {
	start := time.Now()
	defer func() { r.rec.observe("count", start, err) }()
	return r.inner.Count(ctx)
}

func (r *instrumentedKeys) Exists(ctx context.Context, id uuid.UUID) (ok bool, err error) {
	start := time.Now()
	defer func() { r.rec.observe("exists", start, err) }()
	return r.inner.Exists(ctx, id)
}

func (r *instrumentedKeys) FindByKeyHash(ctx context.Context, keyHash string) (key *entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_key_hash", start, err) }()
	return r.inner.FindByKeyHash(ctx, keyHash)
}

func (r *instrumentedKeys) FindByTeamID(ctx context.Context, teamID uuid.UUID) (keys []*entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_team_id", start, err) }()
	return r.inner.FindByTeamID(ctx, teamID)
}

func (r *instrumentedKeys) FindByType(ctx context.Context, keyType entities.APIKeyType) (keys []*entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_by_type", start, err) }()
	return r.inner.FindByType(ctx, keyType)
}

func (r *instrumentedKeys) FindExpiredBefore(ctx context.Context, cutoff time.Time) (keys []*entities.APIKey, err error) {
	start := time.Now()
	defer func() { r.rec.observe("find_expired_before", start, err) }()
	return r.inner.FindExpiredBefore(ctx, cutoff)
}

// instrumentedRunner times the whole transactional scope. The repositories
// handed to fn are the backend's transaction-bound set and are not
// re-instrumented; the scope is measured as one unit.
type instrumentedRunner struct {
	inner   ports.TransactionRunner
	metrics *observability.Metrics
}

func (r *instrumentedRunner) RunInTransaction(ctx context.Context, fn func(ctx context.Context, repos *ports.Repositories) error) (err error) {
	defer func(start time.Time) {
		r.metrics.ObserveRepoOp("transaction", "run", outcome(err), time.Since(start))
	}(time.Now())
	return r.inner.RunInTransaction(ctx, fn)
}
