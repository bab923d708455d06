package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

const (
	apiKeysTable     = "api_keys"
	apiKeyHashIndex  = "key_hash-index"
	apiKeyTeamIndex  = "team_id-index"
	apiKeyTypeIndex  = "type-index"
)

type apiKeyItem struct {
	ID         string `dynamodbav:"id"`
	Name       string `dynamodbav:"name"`
	KeyHash    string `dynamodbav:"key_hash"`
	KeyPrefix  string `dynamodbav:"key_prefix,omitempty"`
	Type       string `dynamodbav:"type"`
	TeamID     string `dynamodbav:"team_id,omitempty"`
	Enabled    string `dynamodbav:"enabled"`
	ExpiresAt  string `dynamodbav:"expires_at,omitempty"`
	LastUsedAt string `dynamodbav:"last_used_at,omitempty"`
	CreatedAt  string `dynamodbav:"created_at"`
	UpdatedAt  string `dynamodbav:"updated_at"`
	Version    int64  `dynamodbav:"version"`
}

type apiKeyCodec struct{}

func (apiKeyCodec) entityName() string { return "api key" }
func (apiKeyCodec) meta(k *entities.APIKey) *entities.Meta { return &k.Meta }
func (apiKeyCodec) validate(k *entities.APIKey) error { return k.Validate() }

func (apiKeyCodec) toItem(k *entities.APIKey) (map[string]types.AttributeValue, error) {
	rec := apiKeyItem{
		ID:        formatID(k.ID),
		Name:      k.Name,
		KeyHash:   k.KeyHash,
		KeyPrefix: k.KeyPrefix,
		Type:      string(k.Type),
		Enabled:   formatBool(k.Enabled),
		CreatedAt: formatTime(k.CreatedAt),
		UpdatedAt: formatTime(k.UpdatedAt),
		Version:   k.Version,
	}
	if k.TeamID != uuid.Nil {
		rec.TeamID = formatID(k.TeamID)
	}
	if k.ExpiresAt != nil {
		rec.ExpiresAt = formatTime(*k.ExpiresAt)
	}
	if k.LastUsedAt != nil {
		rec.LastUsedAt = formatTime(*k.LastUsedAt)
	}
	return attributevalue.MarshalMap(rec)
}

func (apiKeyCodec) fromItem(item map[string]types.AttributeValue) (*entities.APIKey, error) {
	var rec apiKeyItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.NewInternalError("unmarshal api key item").WithCause(err)
	}
	id, err := parseID(rec.ID)
	if err != nil {
		return nil, err
	}
	var teamID uuid.UUID
	if rec.TeamID != "" {
		teamID, err = parseID(rec.TeamID)
		if err != nil {
			return nil, err
		}
	}
	createdAt, err := parseTime(rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var expiresAt, lastUsedAt *time.Time
	if rec.ExpiresAt != "" {
		t, err := parseTime(rec.ExpiresAt)
		if err != nil {
			return nil, err
		}
		expiresAt = &t
	}
	if rec.LastUsedAt != "" {
		t, err := parseTime(rec.LastUsedAt)
		if err != nil {
			return nil, err
		}
		lastUsedAt = &t
	}
	return &entities.APIKey{
		Meta: entities.Meta{
			ID:        id,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			Version:   rec.Version,
		},
		Name:       rec.Name,
		KeyHash:    rec.KeyHash,
		KeyPrefix:  rec.KeyPrefix,
		Type:       entities.APIKeyType(rec.Type),
		TeamID:     teamID,
		Enabled:    parseBool(rec.Enabled),
		ExpiresAt:  expiresAt,
		LastUsedAt: lastUsedAt,
	}, nil
}

type apiKeyRepository struct {
	*genericRepository[entities.APIKey]
}

func newAPIKeyRepository(client DynamoAPI, tablePrefix string, logger *zap.Logger) *apiKeyRepository {
	return &apiKeyRepository{
		genericRepository: &genericRepository[entities.APIKey]{
			client: client,
			table:  tablePrefix + apiKeysTable,
			codec:  apiKeyCodec{},
			logger: logger,
		},
	}
}

var _ ports.APIKeyRepository = (*apiKeyRepository)(nil)

func (r *apiKeyRepository) FindByKeyHash(ctx context.Context, keyHash string) (*entities.APIKey, error) {
	if keyHash == "" {
		return nil, nil
	}
	return r.queryIndexOne(ctx, apiKeyHashIndex,
		expression.Key("key_hash").Equal(expression.Value(keyHash)))
}

func (r *apiKeyRepository) FindByTeamID(ctx context.Context, teamID uuid.UUID) ([]*entities.APIKey, error) {
	if teamID == uuid.Nil {
		return []*entities.APIKey{}, nil
	}
	return r.queryIndex(ctx, apiKeyTeamIndex,
		expression.Key("team_id").Equal(expression.Value(formatID(teamID))))
}

func (r *apiKeyRepository) FindByType(ctx context.Context, keyType entities.APIKeyType) ([]*entities.APIKey, error) {
	return r.queryIndex(ctx, apiKeyTypeIndex,
		expression.Key("type").Equal(expression.Value(string(keyType))))
}

// FindExpiredBefore scans for keys whose expiry timestamp sorts before the
// cutoff. The fixed-width timestamp encoding makes string comparison agree
// with chronological order. Maintenance path only.
func (r *apiKeyRepository) FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]*entities.APIKey, error) {
	return r.scanFilter(ctx,
		expression.Name("expires_at").LessThan(expression.Value(formatTime(cutoff))))
}
