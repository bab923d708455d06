package dynamodb

import (
	"context"

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
	cloudProvidersTable        = "cloud_providers"
	cloudProviderNameIndex     = "name-index"
	cloudProviderEnabledIndex  = "enabled-created_at-index"
	cloudProviderKindIndex     = "kind-index"
)

type cloudProviderItem struct {
	ID          string `dynamodbav:"id"`
	Name        string `dynamodbav:"name"`
	DisplayName string `dynamodbav:"display_name,omitempty"`
	Kind        string `dynamodbav:"kind"`
	Enabled     string `dynamodbav:"enabled"`
	CreatedAt   string `dynamodbav:"created_at"`
	UpdatedAt   string `dynamodbav:"updated_at"`
	Version     int64  `dynamodbav:"version"`
}

type cloudProviderCodec struct{}

func (cloudProviderCodec) entityName() string { return "cloud provider" }
func (cloudProviderCodec) meta(c *entities.CloudProvider) *entities.Meta {
	return &c.Meta
}
func (cloudProviderCodec) validate(c *entities.CloudProvider) error { return c.Validate() }

func (cloudProviderCodec) toItem(c *entities.CloudProvider) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(cloudProviderItem{
		ID:          formatID(c.ID),
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Kind:        string(c.Kind),
		Enabled:     formatBool(c.Enabled),
		CreatedAt:   formatTime(c.CreatedAt),
		UpdatedAt:   formatTime(c.UpdatedAt),
		Version:     c.Version,
	})
	if err != nil {
		return nil, err
	}
	cfg, err := configToAttribute(c.Configuration)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		item[configurationAttr] = cfg
	}
	return item, nil
}

func (cloudProviderCodec) fromItem(item map[string]types.AttributeValue) (*entities.CloudProvider, error) {
	var rec cloudProviderItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.NewInternalError("unmarshal cloud provider item").WithCause(err)
	}
	id, err := parseID(rec.ID)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cfg, err := attributeToConfig(item[configurationAttr])
	if err != nil {
		return nil, err
	}
	return &entities.CloudProvider{
		Meta: entities.Meta{
			ID:        id,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			Version:   rec.Version,
		},
		Name:          rec.Name,
		DisplayName:   rec.DisplayName,
		Kind:          entities.ProviderKind(rec.Kind),
		Enabled:       parseBool(rec.Enabled),
		Configuration: cfg,
	}, nil
}

type cloudProviderRepository struct {
	*genericRepository[entities.CloudProvider]

	// stacks is wired by the store after construction so Delete can refuse
	// to orphan stacks that still reference the provider.
	stacks *stackRepository
}

func newCloudProviderRepository(client DynamoAPI, tablePrefix string, logger *zap.Logger) *cloudProviderRepository {
	return &cloudProviderRepository{
		genericRepository: &genericRepository[entities.CloudProvider]{
			client: client,
			table:  tablePrefix + cloudProvidersTable,
			codec:  cloudProviderCodec{},
			logger: logger,
		},
	}
}

var _ ports.CloudProviderRepository = (*cloudProviderRepository)(nil)

// Delete refuses to remove a provider that stacks still reference, mirroring
// the relational backend's RESTRICT rule.
func (r *cloudProviderRepository) Delete(ctx context.Context, provider *entities.CloudProvider) error {
	if provider == nil || provider.ID == uuid.Nil {
		return nil
	}
	refs, err := r.stacks.FindByCloudProviderID(ctx, provider.ID)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return pkgerrors.NewConflictError("cloud provider is still referenced by stacks and cannot be deleted").
			WithDetails(map[string]any{"stack_count": len(refs)})
	}
	return r.genericRepository.Delete(ctx, provider)
}

func (r *cloudProviderRepository) FindByName(ctx context.Context, name string) (*entities.CloudProvider, error) {
	if name == "" {
		return nil, nil
	}
	return r.queryIndexOne(ctx, cloudProviderNameIndex,
		expression.Key("name").Equal(expression.Value(name)))
}

func (r *cloudProviderRepository) FindByEnabled(ctx context.Context, enabled bool) ([]*entities.CloudProvider, error) {
	return r.queryIndex(ctx, cloudProviderEnabledIndex,
		expression.Key("enabled").Equal(expression.Value(formatBool(enabled))))
}

func (r *cloudProviderRepository) FindByKind(ctx context.Context, kind entities.ProviderKind) ([]*entities.CloudProvider, error) {
	return r.queryIndex(ctx, cloudProviderKindIndex,
		expression.Key("kind").Equal(expression.Value(string(kind))))
}
