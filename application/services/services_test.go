package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

func seedTeam(t *testing.T, svc *TeamService, name string) *entities.Team {
	t.Helper()
	team, err := svc.Create(context.Background(), &entities.Team{Name: name, Active: true})
	require.NoError(t, err)
	return team
}

func TestTeamServiceCreate(t *testing.T) {
	repos := newMemRepos()
	svc := NewTeamService(repos, zap.NewNop())

	team := seedTeam(t, svc, "platform")
	assert.NotEqual(t, uuid.Nil, team.ID)
	assert.Equal(t, int64(1), team.Version)

	_, err := svc.Create(context.Background(), &entities.Team{Name: "platform", Active: true})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Contains(t, err.Error(), "name is already taken")

	_, err = svc.Create(context.Background(), nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestTeamServiceUpdate(t *testing.T) {
	repos := newMemRepos()
	svc := NewTeamService(repos, zap.NewNop())
	team := seedTeam(t, svc, "platform")

	t.Run("replaces the stored record", func(t *testing.T) {
		team.Description = "owns shared infra"
		updated, err := svc.Update(context.Background(), team)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "owns shared infra", updated.Description)
	})

	t.Run("requires identity and version", func(t *testing.T) {
		_, err := svc.Update(context.Background(), &entities.Team{Name: "x"})
		assert.True(t, pkgerrors.IsValidation(err))

		unread := &entities.Team{Name: "x"}
		unread.ID = team.ID
		_, err = svc.Update(context.Background(), unread)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale := *team // still at version 1
		stale.Description = "written from a stale read"
		_, err := svc.Update(context.Background(), &stale)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestTeamServiceGet(t *testing.T) {
	repos := newMemRepos()
	svc := NewTeamService(repos, zap.NewNop())
	team := seedTeam(t, svc, "platform")

	got, err := svc.Get(context.Background(), team.ID)
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsNotFound(err))

	got, err = svc.GetByName(context.Background(), "platform")
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.ID)

	_, err = svc.GetByName(context.Background(), "ghost")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestTeamServiceDeactivate(t *testing.T) {
	repos := newMemRepos()
	teamSvc := NewTeamService(repos, zap.NewNop())
	keySvc := NewAPIKeyService(repos, zap.NewNop())
	team := seedTeam(t, teamSvc, "platform")

	live, err := keySvc.Issue(context.Background(), &entities.APIKey{
		Name: "ci", KeyHash: "hash-1", Type: entities.APIKeyTypeTeam, TeamID: team.ID, Enabled: true,
	})
	require.NoError(t, err)
	dead, err := keySvc.Issue(context.Background(), &entities.APIKey{
		Name: "retired", KeyHash: "hash-2", Type: entities.APIKeyTypeTeam, TeamID: team.ID, Enabled: false,
	})
	require.NoError(t, err)

	updated, err := teamSvc.Deactivate(context.Background(), team.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	for _, id := range []uuid.UUID{live.ID, dead.ID} {
		key, err := keySvc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, key.Enabled)
	}

	// Already inactive: a second call is a no-op, not an error.
	again, err := teamSvc.Deactivate(context.Background(), team.ID)
	require.NoError(t, err)
	assert.False(t, again.Active)
}

func TestStackServiceCreate(t *testing.T) {
	repos := newMemRepos()
	teamSvc := NewTeamService(repos, zap.NewNop())
	svc := NewStackService(repos, zap.NewNop())
	team := seedTeam(t, teamSvc, "platform")

	stack, err := svc.Create(context.Background(), &entities.Stack{
		Name: "Orders API", CloudName: "orders-api", RoutePath: "/orders/",
		StackType: entities.StackTypeService, CreatedBy: "alice", TeamID: team.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stack.Version)

	_, err = svc.Create(context.Background(), &entities.Stack{
		Name: "Orders Copy", CloudName: "orders-api", RoutePath: "/orders2/",
		StackType: entities.StackTypeService, CreatedBy: "bob", TeamID: team.ID,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Contains(t, err.Error(), "cloud name is already taken")
}

func TestStackServiceTransferToTeam(t *testing.T) {
	repos := newMemRepos()
	teamSvc := NewTeamService(repos, zap.NewNop())
	svc := NewStackService(repos, zap.NewNop())

	from := seedTeam(t, teamSvc, "payments")
	to := seedTeam(t, teamSvc, "platform")

	for name, route := range map[string]string{
		"pay-api":    "/payments/",
		"pay-worker": "/payworker/",
	} {
		_, err := svc.Create(context.Background(), &entities.Stack{
			Name: name, CloudName: name, RoutePath: route,
			StackType: entities.StackTypeService, CreatedBy: "alice", TeamID: from.ID,
		})
		require.NoError(t, err)
	}

	moved, err := svc.TransferToTeam(context.Background(), from.ID, to.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	remaining, err := svc.ListByTeam(context.Background(), from.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	gained, err := svc.ListByTeam(context.Background(), to.ID)
	require.NoError(t, err)
	assert.Len(t, gained, 2)

	t.Run("rejects same-team transfer", func(t *testing.T) {
		_, err := svc.TransferToTeam(context.Background(), from.ID, from.ID)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("requires an existing target", func(t *testing.T) {
		_, err := svc.TransferToTeam(context.Background(), to.ID, uuid.New())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("empty source moves nothing", func(t *testing.T) {
		moved, err := svc.TransferToTeam(context.Background(), from.ID, to.ID)
		require.NoError(t, err)
		assert.Zero(t, moved)
	})
}

func TestCloudProviderServiceSetEnabled(t *testing.T) {
	repos := newMemRepos()
	svc := NewCloudProviderService(repos, zap.NewNop())

	provider, err := svc.Register(context.Background(), &entities.CloudProvider{
		Name: "aws-prod", DisplayName: "AWS Production", Kind: entities.ProviderKindAWS, Enabled: true,
	})
	require.NoError(t, err)

	disabled, err := svc.SetEnabled(context.Background(), provider.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Equal(t, int64(2), disabled.Version)

	// Same flag again: no write, version unchanged.
	same, err := svc.SetEnabled(context.Background(), provider.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), same.Version)
}

func TestCloudProviderServiceDeleteRestricted(t *testing.T) {
	repos := newMemRepos()
	teamSvc := NewTeamService(repos, zap.NewNop())
	providerSvc := NewCloudProviderService(repos, zap.NewNop())
	stackSvc := NewStackService(repos, zap.NewNop())

	team := seedTeam(t, teamSvc, "platform")
	provider, err := providerSvc.Register(context.Background(), &entities.CloudProvider{
		Name: "aws-prod", Kind: entities.ProviderKindAWS, Enabled: true,
	})
	require.NoError(t, err)

	stack, err := stackSvc.Create(context.Background(), &entities.Stack{
		Name: "Orders API", CloudName: "orders-api", RoutePath: "/orders/",
		StackType: entities.StackTypeService, CreatedBy: "alice",
		TeamID: team.ID, CloudProviderID: provider.ID,
	})
	require.NoError(t, err)

	err = providerSvc.Delete(context.Background(), provider.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Equal(t, 1, pkgerrors.GetAppError(err).Details["stack_count"])

	require.NoError(t, stackSvc.Delete(context.Background(), stack.ID))
	assert.NoError(t, providerSvc.Delete(context.Background(), provider.ID))
}

func TestAPIKeyServiceAuthenticate(t *testing.T) {
	repos := newMemRepos()
	svc := NewAPIKeyService(repos, zap.NewNop())

	_, err := svc.Authenticate(context.Background(), "unknown-hash")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = svc.Issue(context.Background(), &entities.APIKey{
		Name: "live", KeyHash: "live-hash", Type: entities.APIKeyTypeAdmin, Enabled: true,
	})
	require.NoError(t, err)
	key, err := svc.Authenticate(context.Background(), "live-hash")
	require.NoError(t, err)
	assert.Equal(t, "live", key.Name)

	_, err = svc.Issue(context.Background(), &entities.APIKey{
		Name: "disabled", KeyHash: "disabled-hash", Type: entities.APIKeyTypeAdmin, Enabled: false,
	})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "disabled-hash")
	assert.True(t, pkgerrors.IsNotFound(err), "disabled keys look absent")

	past := time.Now().Add(-time.Hour)
	_, err = svc.Issue(context.Background(), &entities.APIKey{
		Name: "expired", KeyHash: "expired-hash", Type: entities.APIKeyTypeAdmin,
		Enabled: true, ExpiresAt: &past,
	})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "expired-hash")
	assert.True(t, pkgerrors.IsNotFound(err), "expired keys look absent")
}

func TestAPIKeyServiceIssueDuplicateHash(t *testing.T) {
	repos := newMemRepos()
	svc := NewAPIKeyService(repos, zap.NewNop())

	_, err := svc.Issue(context.Background(), &entities.APIKey{
		Name: "ci", KeyHash: "same", Type: entities.APIKeyTypeAdmin, Enabled: true,
	})
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), &entities.APIKey{
		Name: "ci again", KeyHash: "same", Type: entities.APIKeyTypeAdmin, Enabled: true,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestAPIKeyServiceRotate(t *testing.T) {
	repos := newMemRepos()
	svc := NewAPIKeyService(repos, zap.NewNop())

	old, err := svc.Issue(context.Background(), &entities.APIKey{
		Name: "ci", KeyHash: "old-hash", Type: entities.APIKeyTypeAdmin, Enabled: true,
	})
	require.NoError(t, err)

	issued, err := svc.Rotate(context.Background(), old.ID, &entities.APIKey{
		Name: "ci", KeyHash: "new-hash", Type: entities.APIKeyTypeAdmin, Enabled: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, issued.ID)

	_, err = svc.Authenticate(context.Background(), "old-hash")
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = svc.Authenticate(context.Background(), "new-hash")
	assert.NoError(t, err)

	_, err = svc.Rotate(context.Background(), uuid.New(), &entities.APIKey{
		Name: "x", KeyHash: "h", Type: entities.APIKeyTypeAdmin,
	})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAPIKeyServicePruneExpired(t *testing.T) {
	repos := newMemRepos()
	svc := NewAPIKeyService(repos, zap.NewNop())
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	for _, key := range []*entities.APIKey{
		{Name: "stale", KeyHash: "h1", Type: entities.APIKeyTypeAdmin, ExpiresAt: &past},
		{Name: "fresh", KeyHash: "h2", Type: entities.APIKeyTypeAdmin, ExpiresAt: &future},
		{Name: "forever", KeyHash: "h3", Type: entities.APIKeyTypeAdmin},
	} {
		_, err := svc.Issue(context.Background(), key)
		require.NoError(t, err)
	}

	removed, err := svc.PruneExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestAPIKeyServiceTouchUsage(t *testing.T) {
	repos := newMemRepos()
	svc := NewAPIKeyService(repos, zap.NewNop())

	key, err := svc.Issue(context.Background(), &entities.APIKey{
		Name: "ci", KeyHash: "h", Type: entities.APIKeyTypeAdmin, Enabled: true,
	})
	require.NoError(t, err)

	used := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc.TouchUsage(context.Background(), key, used)

	got, err := svc.Get(context.Background(), key.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(used))
}
