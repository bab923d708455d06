package dynamodb

import (
	"context"
	"testing"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/angryss/idp/domain/core/entities"
	"github.com/angryss/idp/infrastructure/config"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

func newFakeStore(t *testing.T, fake *fakeDynamo) *Store {
	t.Helper()
	return NewStoreWithClient(fake, config.DynamoDBConfig{
		TablePrefix:      "idp_",
		MaxTransactItems: 25,
	}, zap.NewNop())
}

func mustTeamItem(t *testing.T, team *entities.Team) map[string]types.AttributeValue {
	t.Helper()
	item, err := teamCodec{}.toItem(team)
	require.NoError(t, err)
	return item
}

func TestSaveCreateUsesAbsenceCondition(t *testing.T) {
	var captured *awsdynamodb.PutItemInput
	fake := &fakeDynamo{
		putItem: func(in *awsdynamodb.PutItemInput) (*awsdynamodb.PutItemOutput, error) {
			captured = in
			return &awsdynamodb.PutItemOutput{}, nil
		},
	}
	store := newFakeStore(t, fake)

	id := uuid.New()
	team := &entities.Team{Name: "platform", Active: true}
	team.ID = id

	saved, err := store.Repositories().Teams.Save(context.Background(), team)
	require.NoError(t, err)
	assert.Equal(t, id, saved.ID)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, int64(0), team.Version, "caller copy stays unstamped")

	require.NotNil(t, captured)
	assert.Equal(t, "idp_teams", *captured.TableName)
	require.NotNil(t, captured.ConditionExpression)
	assert.Contains(t, *captured.ConditionExpression, "attribute_not_exists")
	assert.Contains(t, names(captured.ExpressionAttributeNames), "id")
}

func TestSaveUpdateGuardsExpectedVersion(t *testing.T) {
	var captured *awsdynamodb.PutItemInput
	fake := &fakeDynamo{
		putItem: func(in *awsdynamodb.PutItemInput) (*awsdynamodb.PutItemOutput, error) {
			captured = in
			return &awsdynamodb.PutItemOutput{}, nil
		},
	}
	store := newFakeStore(t, fake)

	team := storedTeamAt(3)
	saved, err := store.Repositories().Teams.Save(context.Background(), team)
	require.NoError(t, err)
	assert.Equal(t, int64(4), saved.Version)

	require.NotNil(t, captured.ConditionExpression)
	assert.Contains(t, names(captured.ExpressionAttributeNames), "version")
	found := false
	for _, av := range captured.ExpressionAttributeValues {
		if n, ok := av.(*types.AttributeValueMemberN); ok && n.Value == "3" {
			found = true
		}
	}
	assert.True(t, found, "condition must carry the version the caller read")
}

func TestSaveCreateConflict(t *testing.T) {
	fake := &fakeDynamo{
		putItem: func(*awsdynamodb.PutItemInput) (*awsdynamodb.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		},
	}
	store := newFakeStore(t, fake)

	team := &entities.Team{Name: "platform", Active: true}
	_, err := store.Repositories().Teams.Save(context.Background(), team)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Contains(t, err.Error(), "already exists")
}

func TestSaveUpdateRaceClassification(t *testing.T) {
	t.Run("record still present means conflict", func(t *testing.T) {
		fake := &fakeDynamo{
			putItem: func(*awsdynamodb.PutItemInput) (*awsdynamodb.PutItemOutput, error) {
				return nil, &types.ConditionalCheckFailedException{}
			},
			getItem: func(in *awsdynamodb.GetItemInput) (*awsdynamodb.GetItemOutput, error) {
				return &awsdynamodb.GetItemOutput{
					Item: map[string]types.AttributeValue{"id": in.Key["id"]},
				}, nil
			},
		}
		store := newFakeStore(t, fake)
		_, err := store.Repositories().Teams.Save(context.Background(), storedTeamAt(2))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("record gone means not found", func(t *testing.T) {
		fake := &fakeDynamo{
			putItem: func(*awsdynamodb.PutItemInput) (*awsdynamodb.PutItemOutput, error) {
				return nil, &types.ConditionalCheckFailedException{}
			},
		}
		store := newFakeStore(t, fake)
		_, err := store.Repositories().Teams.Save(context.Background(), storedTeamAt(2))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestSaveChecksReferences(t *testing.T) {
	// No team item exists in the fake, so the stack's reference is dangling.
	fake := &fakeDynamo{}
	store := newFakeStore(t, fake)

	stack := &entities.Stack{
		Name:      "Orders API",
		CloudName: "orders-api",
		RoutePath: "/orders/",
		StackType: entities.StackTypeService,
		CreatedBy: "alice",
		TeamID:    uuid.New(),
	}
	_, err := store.Repositories().Stacks.Save(context.Background(), stack)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "referenced team does not exist")
	assert.Zero(t, fake.putCalls, "nothing may be written on a dangling reference")
}

func TestFindByID(t *testing.T) {
	stored := storedTeamAt(1)

	t.Run("found", func(t *testing.T) {
		fake := &fakeDynamo{
			getItem: func(in *awsdynamodb.GetItemInput) (*awsdynamodb.GetItemOutput, error) {
				assert.Equal(t, "idp_teams", *in.TableName)
				return &awsdynamodb.GetItemOutput{Item: mustTeamItem(t, stored)}, nil
			},
		}
		store := newFakeStore(t, fake)
		got, err := store.Repositories().Teams.FindByID(context.Background(), stored.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, stored.ID, got.ID)
		assert.Equal(t, stored.Name, got.Name)
		assert.True(t, got.Active)
	})

	t.Run("absent is nil, not an error", func(t *testing.T) {
		store := newFakeStore(t, &fakeDynamo{})
		got, err := store.Repositories().Teams.FindByID(context.Background(), uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("nil uuid short-circuits", func(t *testing.T) {
		store := newFakeStore(t, &fakeDynamo{})
		got, err := store.Repositories().Teams.FindByID(context.Background(), uuid.Nil)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestFindAllPaginates(t *testing.T) {
	pageKey := map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "cursor"},
	}
	first := storedTeamAt(1)
	second := storedTeamAt(1)
	var scans []*awsdynamodb.ScanInput

	fake := &fakeDynamo{
		scan: func(in *awsdynamodb.ScanInput) (*awsdynamodb.ScanOutput, error) {
			scans = append(scans, in)
			if len(scans) == 1 {
				return &awsdynamodb.ScanOutput{
					Items: []map[string]types.AttributeValue{
						mustTeamItem(t, first),
						// Corrupt row; listing skips it instead of failing.
						{"id": &types.AttributeValueMemberS{Value: "not-a-uuid"}},
					},
					LastEvaluatedKey: pageKey,
				}, nil
			}
			assert.Equal(t, pageKey, in.ExclusiveStartKey)
			return &awsdynamodb.ScanOutput{
				Items: []map[string]types.AttributeValue{mustTeamItem(t, second)},
			}, nil
		},
	}
	store := newFakeStore(t, fake)

	got, err := store.Repositories().Teams.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, scans, 2)
	assert.Nil(t, scans[0].ExclusiveStartKey)
}

func TestCountSelectsCountMode(t *testing.T) {
	fake := &fakeDynamo{
		scan: func(in *awsdynamodb.ScanInput) (*awsdynamodb.ScanOutput, error) {
			assert.Equal(t, types.SelectCount, in.Select)
			return &awsdynamodb.ScanOutput{Count: 9}, nil
		},
	}
	store := newFakeStore(t, fake)
	n, err := store.Repositories().Teams.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
}

func TestFindByNameQueriesIndex(t *testing.T) {
	stored := storedTeamAt(1)
	fake := &fakeDynamo{
		query: func(in *awsdynamodb.QueryInput) (*awsdynamodb.QueryOutput, error) {
			assert.Equal(t, teamNameIndex, *in.IndexName)
			return &awsdynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{mustTeamItem(t, stored)},
			}, nil
		},
	}
	store := newFakeStore(t, fake)

	got, err := store.Repositories().Teams.FindByName(context.Background(), stored.Name)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stored.ID, got.ID)

	got, err = store.Repositories().Teams.FindByName(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCloudProviderDeleteRestrictedByStacks(t *testing.T) {
	providerID := uuid.New()
	referencing := &entities.Stack{
		Name:      "Orders API",
		CloudName: "orders-api",
		RoutePath: "/orders/",
		StackType: entities.StackTypeService,
		CreatedBy: "alice",
		TeamID:    uuid.New(),
	}
	referencing.ID = uuid.New()
	referencing.CloudProviderID = providerID
	referencing.Version = 1

	fake := &fakeDynamo{
		query: func(in *awsdynamodb.QueryInput) (*awsdynamodb.QueryOutput, error) {
			if *in.TableName == "idp_stacks" {
				item, err := stackCodec{}.toItem(referencing)
				require.NoError(t, err)
				return &awsdynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil
			}
			return &awsdynamodb.QueryOutput{}, nil
		},
	}
	store := newFakeStore(t, fake)

	provider := &entities.CloudProvider{Name: "aws-prod", Kind: entities.ProviderKindAWS}
	provider.ID = providerID
	provider.Version = 1

	err := store.Repositories().CloudProviders.Delete(context.Background(), provider)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, 1, appErr.Details["stack_count"])
	assert.Zero(t, fake.deleteCalls, "no item was removed")
}

func TestCloudProviderDeleteUnreferenced(t *testing.T) {
	// The stack index query comes back empty, so the delete goes through.
	fake := &fakeDynamo{}
	store := newFakeStore(t, fake)

	provider := &entities.CloudProvider{Name: "aws-prod", Kind: entities.ProviderKindAWS}
	provider.ID = uuid.New()
	provider.Version = 1

	require.NoError(t, store.Repositories().CloudProviders.Delete(context.Background(), provider))
	assert.Equal(t, 1, fake.deleteCalls)
}

func TestDeleteShortCircuits(t *testing.T) {
	fake := &fakeDynamo{}
	store := newFakeStore(t, fake)

	require.NoError(t, store.Repositories().Stacks.Delete(context.Background(), nil))
	require.NoError(t, store.Repositories().Stacks.Delete(context.Background(), &entities.Stack{}))
	assert.Zero(t, fake.deleteCalls)
}

func TestTranslateErrorClassification(t *testing.T) {
	assert.True(t, pkgerrors.IsUnavailable(
		translateError("scan", &types.ProvisionedThroughputExceededException{})))
	assert.True(t, pkgerrors.IsUnavailable(
		translateError("scan", context.DeadlineExceeded)))
	assert.True(t, pkgerrors.IsConfiguration(
		translateError("scan", &types.ResourceNotFoundException{})))

	err := translateError("scan team", assertiveError{})
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.ErrorTypeInternal, appErr.Type)
}

type assertiveError struct{}

func (assertiveError) Error() string { return "unclassified failure" }

// storedTeamAt builds a team that looks like it was read from the store at
// the given version.
func storedTeamAt(version int64) *entities.Team {
	team := &entities.Team{Name: "platform", Active: true}
	team.ID = uuid.New()
	team.Version = version
	return team
}

// names flattens an expression's attribute-name substitutions for assertions.
func names(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
