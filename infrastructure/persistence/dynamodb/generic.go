package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// entityCodec defines entity-specific behavior for the generic repository.
type entityCodec[T any] interface {
	// entityName is the singular name used in errors and logs.
	entityName() string
	// meta returns the entity's system-managed fields.
	meta(*T) *entities.Meta
	// validate checks caller-supplied fields before a write.
	validate(*T) error
	// toItem converts an entity to its attribute-map form.
	toItem(*T) (map[string]types.AttributeValue, error)
	// fromItem converts an attribute map back to the entity.
	fromItem(map[string]types.AttributeValue) (*T, error)
}

// genericRepository provides the CRUD operations shared by every entity
// type. Writes are conditional puts: creation requires the partition key to
// be absent, updates require the stored version to match the version the
// caller read.
type genericRepository[T any] struct {
	client DynamoAPI
	table  string
	codec  entityCodec[T]
	logger *zap.Logger

	// checkRefs verifies relationship attributes resolve to existing
	// entities before a write; nil when the entity has none.
	checkRefs func(ctx context.Context, entity *T) error
}

// prepareSave stamps the entity copy and builds the conditional Put shared
// by Save and the transaction coordinator.
func (r *genericRepository[T]) prepareSave(ctx context.Context, entity *T) (*T, *types.Put, bool, error) {
	saved := *entity
	if err := r.codec.validate(&saved); err != nil {
		return nil, nil, false, err
	}
	if r.checkRefs != nil {
		if err := r.checkRefs(ctx, &saved); err != nil {
			return nil, nil, false, err
		}
	}

	m := r.codec.meta(&saved)
	creating := m.Version == 0
	now := time.Now()

	var cond expression.ConditionBuilder
	if creating {
		m.StampForCreate(now)
		cond = expression.AttributeNotExists(expression.Name("id"))
	} else {
		expected := m.Version
		m.StampForUpdate(now)
		cond = expression.Name("version").Equal(expression.Value(expected))
	}

	item, err := r.codec.toItem(&saved)
	if err != nil {
		return nil, nil, false, pkgerrors.NewInternalError("marshal " + r.codec.entityName()).WithCause(err)
	}

	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, nil, false, pkgerrors.NewInternalError("build condition expression").WithCause(err)
	}

	put := &types.Put{
		TableName:                 aws.String(r.table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	return &saved, put, creating, nil
}

func (r *genericRepository[T]) Save(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, pkgerrors.NewValidationError(r.codec.entityName() + " cannot be nil")
	}

	saved, put, creating, err := r.prepareSave(ctx, entity)
	if err != nil {
		return nil, err
	}

	_, err = r.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName:                 put.TableName,
		Item:                      put.Item,
		ConditionExpression:       put.ConditionExpression,
		ExpressionAttributeNames:  put.ExpressionAttributeNames,
		ExpressionAttributeValues: put.ExpressionAttributeValues,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, r.classifyConditionFailure(ctx, saved, creating, err)
		}
		return nil, translateError("save "+r.codec.entityName(), err)
	}

	m := r.codec.meta(saved)
	r.logger.Debug("entity saved",
		zap.String("entity", r.codec.entityName()),
		zap.String("id", formatID(m.ID)),
		zap.Int64("version", m.Version),
	)
	return saved, nil
}

// classifyConditionFailure turns a conditional-write rejection into the
// taxonomy error the caller can act on. On create it means the identifier
// is already taken; on update it is a lost race unless the record vanished.
func (r *genericRepository[T]) classifyConditionFailure(ctx context.Context, entity *T, creating bool, cause error) error {
	name := r.codec.entityName()
	if creating {
		return pkgerrors.NewConflictError(name + " with this identifier already exists").WithCause(cause)
	}
	m := r.codec.meta(entity)
	exists, err := r.Exists(ctx, m.ID)
	if err != nil {
		return pkgerrors.NewConflictError("concurrent update detected on " + name).WithCause(cause)
	}
	if !exists {
		return pkgerrors.NewNotFoundError(name).WithCause(cause)
	}
	return pkgerrors.NewConflictError("concurrent update detected on " + name).WithCause(cause)
}

func (r *genericRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	if id == uuid.Nil {
		return nil, nil
	}

	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, translateError("get "+r.codec.entityName(), err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return r.codec.fromItem(out.Item)
}

// FindAll walks the whole table. This is a full-container scan; it is fine
// for admin listings but must not sit on a latency-sensitive path.
func (r *genericRepository[T]) FindAll(ctx context.Context) ([]*T, error) {
	results := make([]*T, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &awsdynamodb.ScanInput{
			TableName:         aws.String(r.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, translateError("scan "+r.codec.entityName(), err)
		}
		for _, item := range out.Items {
			entity, err := r.codec.fromItem(item)
			if err != nil {
				r.logger.Warn("skipping unparseable item",
					zap.String("entity", r.codec.entityName()),
					zap.Error(err),
				)
				continue
			}
			results = append(results, entity)
		}
		if out.LastEvaluatedKey == nil {
			return results, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *genericRepository[T]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return nil
	}
	m := r.codec.meta(entity)
	if m.ID == uuid.Nil {
		return nil
	}

	_, err := r.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       idKey(m.ID),
	})
	if err != nil {
		return translateError("delete "+r.codec.entityName(), err)
	}
	return nil
}

// Count scans the table in COUNT mode. Same scan caveat as FindAll.
func (r *genericRepository[T]) Count(ctx context.Context) (int64, error) {
	var total int64
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &awsdynamodb.ScanInput{
			TableName:         aws.String(r.table),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, translateError("count "+r.codec.entityName(), err)
		}
		total += int64(out.Count)
		if out.LastEvaluatedKey == nil {
			return total, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *genericRepository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName:            aws.String(r.table),
		Key:                  idKey(id),
		ProjectionExpression: aws.String("id"),
	})
	if err != nil {
		return false, translateError("exists "+r.codec.entityName(), err)
	}
	return out.Item != nil, nil
}

// queryIndex runs a key-condition query against a secondary index and
// parses every page.
func (r *genericRepository[T]) queryIndex(ctx context.Context, indexName string, keyCond expression.KeyConditionBuilder) ([]*T, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("build key condition").WithCause(err)
	}

	results := make([]*T, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			IndexName:                 aws.String(indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, translateError("query "+r.codec.entityName(), err)
		}
		for _, item := range out.Items {
			entity, err := r.codec.fromItem(item)
			if err != nil {
				r.logger.Warn("skipping unparseable item",
					zap.String("entity", r.codec.entityName()),
					zap.String("index", indexName),
					zap.Error(err),
				)
				continue
			}
			results = append(results, entity)
		}
		if out.LastEvaluatedKey == nil {
			return results, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// queryIndexOne is queryIndex for unique lookups; (nil, nil) when absent.
func (r *genericRepository[T]) queryIndexOne(ctx context.Context, indexName string, keyCond expression.KeyConditionBuilder) (*T, error) {
	results, err := r.queryIndex(ctx, indexName, keyCond)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// scanFilter is the fallback for filters with no declared index. Full scan;
// maintenance paths only.
func (r *genericRepository[T]) scanFilter(ctx context.Context, filter expression.ConditionBuilder) ([]*T, error) {
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("build filter expression").WithCause(err)
	}

	results := make([]*T, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &awsdynamodb.ScanInput{
			TableName:                 aws.String(r.table),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, translateError("scan "+r.codec.entityName(), err)
		}
		for _, item := range out.Items {
			entity, err := r.codec.fromItem(item)
			if err != nil {
				r.logger.Warn("skipping unparseable item",
					zap.String("entity", r.codec.entityName()),
					zap.Error(err),
				)
				continue
			}
			results = append(results, entity)
		}
		if out.LastEvaluatedKey == nil {
			return results, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// idKey builds the primary key for an entity identifier.
func idKey(id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: formatID(id)},
	}
}

// deleteByIDItem builds a transactional delete for the coordinator.
func deleteByIDItem(table string, id uuid.UUID) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(table),
			Key:       idKey(id),
		},
	}
}
