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
	stacksTable             = "stacks"
	stackCloudNameIndex     = "cloud_name-index"
	stackTeamIndex          = "team_id-index"
	stackCloudProviderIndex = "cloud_provider_id-index"
	stackTypeIndex          = "stack_type-index"

	configurationAttr = "configuration"
)

type stackItem struct {
	ID                  string `dynamodbav:"id"`
	Name                string `dynamodbav:"name"`
	Description         string `dynamodbav:"description,omitempty"`
	CloudName           string `dynamodbav:"cloud_name"`
	RoutePath           string `dynamodbav:"route_path"`
	RepositoryURL       string `dynamodbav:"repository_url,omitempty"`
	StackType           string `dynamodbav:"stack_type"`
	ProgrammingLanguage string `dynamodbav:"programming_language,omitempty"`
	Public              bool   `dynamodbav:"public"`
	CreatedBy           string `dynamodbav:"created_by,omitempty"`
	TeamID              string `dynamodbav:"team_id"`
	CloudProviderID     string `dynamodbav:"cloud_provider_id,omitempty"`
	CreatedAt           string `dynamodbav:"created_at"`
	UpdatedAt           string `dynamodbav:"updated_at"`
	Version             int64  `dynamodbav:"version"`
}

type stackCodec struct{}

func (stackCodec) entityName() string { return "stack" }
func (stackCodec) meta(s *entities.Stack) *entities.Meta { return &s.Meta }
func (stackCodec) validate(s *entities.Stack) error { return s.Validate() }

func (stackCodec) toItem(s *entities.Stack) (map[string]types.AttributeValue, error) {
	rec := stackItem{
		ID:                  formatID(s.ID),
		Name:                s.Name,
		Description:         s.Description,
		CloudName:           s.CloudName,
		RoutePath:           s.RoutePath,
		RepositoryURL:       s.RepositoryURL,
		StackType:           string(s.StackType),
		ProgrammingLanguage: string(s.ProgrammingLanguage),
		Public:              s.Public,
		CreatedBy:           s.CreatedBy,
		TeamID:              formatID(s.TeamID),
		CreatedAt:           formatTime(s.CreatedAt),
		UpdatedAt:           formatTime(s.UpdatedAt),
		Version:             s.Version,
	}
	if s.CloudProviderID != uuid.Nil {
		rec.CloudProviderID = formatID(s.CloudProviderID)
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, err
	}
	cfg, err := configToAttribute(s.Configuration)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		item[configurationAttr] = cfg
	}
	return item, nil
}

func (stackCodec) fromItem(item map[string]types.AttributeValue) (*entities.Stack, error) {
	var rec stackItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.NewInternalError("unmarshal stack item").WithCause(err)
	}
	id, err := parseID(rec.ID)
	if err != nil {
		return nil, err
	}
	teamID, err := parseID(rec.TeamID)
	if err != nil {
		return nil, err
	}
	var providerID uuid.UUID
	if rec.CloudProviderID != "" {
		providerID, err = parseID(rec.CloudProviderID)
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
	cfg, err := attributeToConfig(item[configurationAttr])
	if err != nil {
		return nil, err
	}
	return &entities.Stack{
		Meta: entities.Meta{
			ID:        id,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			Version:   rec.Version,
		},
		Name:                rec.Name,
		Description:         rec.Description,
		CloudName:           rec.CloudName,
		RoutePath:           rec.RoutePath,
		RepositoryURL:       rec.RepositoryURL,
		StackType:           entities.StackType(rec.StackType),
		ProgrammingLanguage: entities.ProgrammingLanguage(rec.ProgrammingLanguage),
		Public:              rec.Public,
		CreatedBy:           rec.CreatedBy,
		TeamID:              teamID,
		CloudProviderID:     providerID,
		Configuration:       cfg,
	}, nil
}

type stackRepository struct {
	*genericRepository[entities.Stack]
}

func newStackRepository(client DynamoAPI, tablePrefix string, logger *zap.Logger) *stackRepository {
	return &stackRepository{
		genericRepository: &genericRepository[entities.Stack]{
			client: client,
			table:  tablePrefix + stacksTable,
			codec:  stackCodec{},
			logger: logger,
		},
	}
}

var _ ports.StackRepository = (*stackRepository)(nil)

func (r *stackRepository) FindByCloudName(ctx context.Context, cloudName string) (*entities.Stack, error) {
	if cloudName == "" {
		return nil, nil
	}
	return r.queryIndexOne(ctx, stackCloudNameIndex,
		expression.Key("cloud_name").Equal(expression.Value(cloudName)))
}

func (r *stackRepository) FindByTeamID(ctx context.Context, teamID uuid.UUID) ([]*entities.Stack, error) {
	if teamID == uuid.Nil {
		return []*entities.Stack{}, nil
	}
	return r.queryIndex(ctx, stackTeamIndex,
		expression.Key("team_id").Equal(expression.Value(formatID(teamID))))
}

func (r *stackRepository) FindByCloudProviderID(ctx context.Context, providerID uuid.UUID) ([]*entities.Stack, error) {
	if providerID == uuid.Nil {
		return []*entities.Stack{}, nil
	}
	return r.queryIndex(ctx, stackCloudProviderIndex,
		expression.Key("cloud_provider_id").Equal(expression.Value(formatID(providerID))))
}

func (r *stackRepository) FindByStackType(ctx context.Context, stackType entities.StackType) ([]*entities.Stack, error) {
	return r.queryIndex(ctx, stackTypeIndex,
		expression.Key("stack_type").Equal(expression.Value(string(stackType))))
}
