package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// tableSpec declares one container and its secondary indexes. Every key
// attribute is a string: identifiers and timestamps use their canonical
// text forms and flags are stored as "true"/"false".
type tableSpec struct {
	name    string
	indexes []indexSpec
}

type indexSpec struct {
	name     string
	hashKey  string
	rangeKey string // empty for hash-only indexes
}

func tableSpecs(prefix string) []tableSpec {
	return []tableSpec{
		{
			name: prefix + teamsTable,
			indexes: []indexSpec{
				{name: teamNameIndex, hashKey: "name"},
				{name: teamActiveIndex, hashKey: "active", rangeKey: "created_at"},
			},
		},
		{
			name: prefix + cloudProvidersTable,
			indexes: []indexSpec{
				{name: cloudProviderNameIndex, hashKey: "name"},
				{name: cloudProviderEnabledIndex, hashKey: "enabled", rangeKey: "created_at"},
				{name: cloudProviderKindIndex, hashKey: "kind"},
			},
		},
		{
			name: prefix + stacksTable,
			indexes: []indexSpec{
				{name: stackCloudNameIndex, hashKey: "cloud_name"},
				{name: stackTeamIndex, hashKey: "team_id", rangeKey: "created_at"},
				{name: stackCloudProviderIndex, hashKey: "cloud_provider_id"},
				{name: stackTypeIndex, hashKey: "stack_type"},
			},
		},
		{
			name: prefix + apiKeysTable,
			indexes: []indexSpec{
				{name: apiKeyHashIndex, hashKey: "key_hash"},
				{name: apiKeyTeamIndex, hashKey: "team_id"},
				{name: apiKeyTypeIndex, hashKey: "type"},
			},
		},
	}
}

// EnsureTables creates any missing container and waits until all of them are
// active. Containers created concurrently by another instance are treated as
// success. Intended for local development and tests; production containers
// are provisioned by infrastructure tooling.
func EnsureTables(ctx context.Context, client DynamoAPI, tablePrefix string, logger *zap.Logger) error {
	for _, spec := range tableSpecs(tablePrefix) {
		if err := ensureTable(ctx, client, spec, logger); err != nil {
			return err
		}
	}
	for _, spec := range tableSpecs(tablePrefix) {
		if err := waitForActive(ctx, client, spec.name); err != nil {
			return err
		}
	}
	return nil
}

func ensureTable(ctx context.Context, client DynamoAPI, spec tableSpec, logger *zap.Logger) error {
	_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{
		TableName: aws.String(spec.name),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return translateError("describe table "+spec.name, err)
	}

	_, err = client.CreateTable(ctx, buildCreateTable(spec))
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			// Another instance won the race; the table exists.
			return nil
		}
		return translateError("create table "+spec.name, err)
	}
	logger.Info("table created", zap.String("table", spec.name))
	return nil
}

func buildCreateTable(spec tableSpec) *awsdynamodb.CreateTableInput {
	attrs := map[string]struct{}{"id": {}}
	gsis := make([]types.GlobalSecondaryIndex, 0, len(spec.indexes))
	for _, idx := range spec.indexes {
		attrs[idx.hashKey] = struct{}{}
		schema := []types.KeySchemaElement{
			{AttributeName: aws.String(idx.hashKey), KeyType: types.KeyTypeHash},
		}
		if idx.rangeKey != "" {
			attrs[idx.rangeKey] = struct{}{}
			schema = append(schema, types.KeySchemaElement{
				AttributeName: aws.String(idx.rangeKey),
				KeyType:       types.KeyTypeRange,
			})
		}
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(idx.name),
			KeySchema: schema,
			Projection: &types.Projection{
				ProjectionType: types.ProjectionTypeAll,
			},
		})
	}

	defs := make([]types.AttributeDefinition, 0, len(attrs))
	for name := range attrs {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}

	input := &awsdynamodb.CreateTableInput{
		TableName:   aws.String(spec.name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: defs,
	}
	if len(gsis) > 0 {
		input.GlobalSecondaryIndexes = gsis
	}
	return input
}

func waitForActive(ctx context.Context, client DynamoAPI, table string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		out, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{
			TableName: aws.String(table),
		})
		if err != nil {
			return translateError("describe table "+table, err)
		}
		if out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		if time.Now().After(deadline) {
			return pkgerrors.NewUnavailableError("dynamodb",
				errors.New("table "+table+" did not become active"))
		}
		select {
		case <-ctx.Done():
			return pkgerrors.NewUnavailableError("dynamodb", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}
