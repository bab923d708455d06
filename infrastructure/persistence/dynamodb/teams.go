package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

const (
	teamsTable      = "teams"
	teamNameIndex   = "name-index"
	teamActiveIndex = "active-created_at-index"
)

type teamItem struct {
	ID           string `dynamodbav:"id"`
	Name         string `dynamodbav:"name"`
	Description  string `dynamodbav:"description,omitempty"`
	ContactEmail string `dynamodbav:"contact_email,omitempty"`
	Active       string `dynamodbav:"active"`
	CreatedAt    string `dynamodbav:"created_at"`
	UpdatedAt    string `dynamodbav:"updated_at"`
	Version      int64  `dynamodbav:"version"`
}

type teamCodec struct{}

func (teamCodec) entityName() string { return "team" }
func (teamCodec) meta(t *entities.Team) *entities.Meta { return &t.Meta }
func (teamCodec) validate(t *entities.Team) error { return t.Validate() }

func (teamCodec) toItem(t *entities.Team) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(teamItem{
		ID:           formatID(t.ID),
		Name:         t.Name,
		Description:  t.Description,
		ContactEmail: t.ContactEmail,
		Active:       formatBool(t.Active),
		CreatedAt:    formatTime(t.CreatedAt),
		UpdatedAt:    formatTime(t.UpdatedAt),
		Version:      t.Version,
	})
}

func (teamCodec) fromItem(item map[string]types.AttributeValue) (*entities.Team, error) {
	var rec teamItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, pkgerrors.NewInternalError("unmarshal team item").WithCause(err)
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
	return &entities.Team{
		Meta: entities.Meta{
			ID:        id,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			Version:   rec.Version,
		},
		Name:         rec.Name,
		Description:  rec.Description,
		ContactEmail: rec.ContactEmail,
		Active:       parseBool(rec.Active),
	}, nil
}

type teamRepository struct {
	*genericRepository[entities.Team]

	// referencing repositories, wired by the store after construction so
	// Delete can enforce the relationship policy.
	stacks      *stackRepository
	keys        *apiKeyRepository
	maxTransact int
}

func newTeamRepository(client DynamoAPI, tablePrefix string, logger *zap.Logger) *teamRepository {
	return &teamRepository{
		genericRepository: &genericRepository[entities.Team]{
			client: client,
			table:  tablePrefix + teamsTable,
			codec:  teamCodec{},
			logger: logger,
		},
	}
}

var _ ports.TeamRepository = (*teamRepository)(nil)

func (r *teamRepository) FindByName(ctx context.Context, name string) (*entities.Team, error) {
	if name == "" {
		return nil, nil
	}
	return r.queryIndexOne(ctx, teamNameIndex,
		expression.Key("name").Equal(expression.Value(name)))
}

func (r *teamRepository) FindByActive(ctx context.Context, active bool) ([]*entities.Team, error) {
	return r.queryIndex(ctx, teamActiveIndex,
		expression.Key("active").Equal(expression.Value(formatBool(active))))
}

// Delete removes a team and cascades to its API keys. Teams still owning
// stacks cannot be deleted; the stacks must be reassigned or removed first.
// This mirrors the relational backend's RESTRICT and CASCADE rules.
func (r *teamRepository) Delete(ctx context.Context, team *entities.Team) error {
	if team == nil || team.ID == uuid.Nil {
		return nil
	}

	owned, err := r.stacks.FindByTeamID(ctx, team.ID)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		return pkgerrors.NewConflictError("team still owns stacks and cannot be deleted").
			WithDetails(map[string]any{"stack_count": len(owned)})
	}

	keys, err := r.keys.FindByTeamID(ctx, team.ID)
	if err != nil {
		return err
	}

	items := make([]types.TransactWriteItem, 0, len(keys)+1)
	items = append(items, deleteByIDItem(r.table, team.ID))
	for _, key := range keys {
		items = append(items, deleteByIDItem(r.keys.table, key.ID))
	}

	// One atomic transaction when the cascade fits the per-transaction
	// bound; beyond it the keys are removed individually before the team,
	// which a retry can resume after a partial failure.
	if len(items) <= r.maxTransact {
		_, err := r.client.TransactWriteItems(ctx, &awsdynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		if err != nil {
			return translateError("delete team", err)
		}
	} else {
		for _, key := range keys {
			if err := r.keys.Delete(ctx, key); err != nil {
				return err
			}
		}
		if err := r.genericRepository.Delete(ctx, team); err != nil {
			return err
		}
	}

	r.logger.Debug("team deleted",
		zap.String("id", formatID(team.ID)),
		zap.Int("cascaded_keys", len(keys)),
	)
	return nil
}
