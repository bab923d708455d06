package dynamodb

import (
	"context"
	"testing"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func activeTable(name string) *awsdynamodb.DescribeTableOutput {
	return &awsdynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}
}

func TestEnsureTablesCreatesMissing(t *testing.T) {
	created := map[string]*awsdynamodb.CreateTableInput{}
	exists := map[string]bool{"idp_teams": true}

	fake := &fakeDynamo{
		describeTable: func(in *awsdynamodb.DescribeTableInput) (*awsdynamodb.DescribeTableOutput, error) {
			if exists[*in.TableName] {
				return activeTable(*in.TableName), nil
			}
			return nil, &types.ResourceNotFoundException{}
		},
		createTable: func(in *awsdynamodb.CreateTableInput) (*awsdynamodb.CreateTableOutput, error) {
			created[*in.TableName] = in
			exists[*in.TableName] = true
			return &awsdynamodb.CreateTableOutput{}, nil
		},
	}

	err := EnsureTables(context.Background(), fake, "idp_", zap.NewNop())
	require.NoError(t, err)

	// Only the pre-existing table was skipped.
	assert.NotContains(t, created, "idp_teams")
	assert.Contains(t, created, "idp_stacks")
	assert.Contains(t, created, "idp_cloud_providers")
	assert.Contains(t, created, "idp_api_keys")
}

func TestEnsureTablesToleratesCreateRace(t *testing.T) {
	first := true
	fake := &fakeDynamo{
		describeTable: func(in *awsdynamodb.DescribeTableInput) (*awsdynamodb.DescribeTableOutput, error) {
			if first && *in.TableName == "idp_teams" {
				first = false
				return nil, &types.ResourceNotFoundException{}
			}
			return activeTable(*in.TableName), nil
		},
		createTable: func(in *awsdynamodb.CreateTableInput) (*awsdynamodb.CreateTableOutput, error) {
			return nil, &types.ResourceInUseException{}
		},
	}

	err := EnsureTables(context.Background(), fake, "idp_", zap.NewNop())
	assert.NoError(t, err)
}

func TestBuildCreateTable(t *testing.T) {
	var spec tableSpec
	for _, s := range tableSpecs("idp_") {
		if s.name == "idp_teams" {
			spec = s
		}
	}
	require.NotEmpty(t, spec.name)

	in := buildCreateTable(spec)
	assert.Equal(t, types.BillingModePayPerRequest, in.BillingMode)
	require.Len(t, in.KeySchema, 1)
	assert.Equal(t, "id", *in.KeySchema[0].AttributeName)
	require.Len(t, in.GlobalSecondaryIndexes, 2)

	// Index key attributes must all be declared, all as strings.
	declared := map[string]bool{}
	for _, def := range in.AttributeDefinitions {
		assert.Equal(t, types.ScalarAttributeTypeS, def.AttributeType)
		declared[*def.AttributeName] = true
	}
	for _, want := range []string{"id", "name", "active", "created_at"} {
		assert.True(t, declared[want], want)
	}

	for _, gsi := range in.GlobalSecondaryIndexes {
		assert.Equal(t, types.ProjectionTypeAll, gsi.Projection.ProjectionType)
		if *gsi.IndexName == teamActiveIndex {
			require.Len(t, gsi.KeySchema, 2)
			assert.Equal(t, types.KeyTypeRange, gsi.KeySchema[1].KeyType)
		}
	}
}
