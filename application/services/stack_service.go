package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// StackService manages stack lifecycle and ownership.
type StackService struct {
	repos  *ports.Repositories
	logger *zap.Logger
}

func NewStackService(repos *ports.Repositories, logger *zap.Logger) *StackService {
	return &StackService{repos: repos, logger: logger}
}

// Create persists a new stack after checking the cloud name is free. The
// store's uniqueness constraint settles concurrent creates.
func (s *StackService) Create(ctx context.Context, stack *entities.Stack) (*entities.Stack, error) {
	if stack == nil {
		return nil, pkgerrors.NewValidationError("stack cannot be nil")
	}
	existing, err := s.repos.Stacks.FindByCloudName(ctx, stack.CloudName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.NewConflictError("cloud name is already taken")
	}
	return s.repos.Stacks.Save(ctx, stack)
}

func (s *StackService) Update(ctx context.Context, stack *entities.Stack) (*entities.Stack, error) {
	if stack == nil || stack.ID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("stack identifier is required")
	}
	if stack.Version == 0 {
		return nil, pkgerrors.NewValidationError("update requires a previously read stack")
	}
	return s.repos.Stacks.Save(ctx, stack)
}

func (s *StackService) Get(ctx context.Context, id uuid.UUID) (*entities.Stack, error) {
	stack, err := s.repos.Stacks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stack == nil {
		return nil, pkgerrors.NewNotFoundError("stack")
	}
	return stack, nil
}

func (s *StackService) GetByCloudName(ctx context.Context, cloudName string) (*entities.Stack, error) {
	stack, err := s.repos.Stacks.FindByCloudName(ctx, cloudName)
	if err != nil {
		return nil, err
	}
	if stack == nil {
		return nil, pkgerrors.NewNotFoundError("stack")
	}
	return stack, nil
}

func (s *StackService) List(ctx context.Context) ([]*entities.Stack, error) {
	return s.repos.Stacks.FindAll(ctx)
}

func (s *StackService) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*entities.Stack, error) {
	return s.repos.Stacks.FindByTeamID(ctx, teamID)
}

func (s *StackService) ListByCloudProvider(ctx context.Context, providerID uuid.UUID) ([]*entities.Stack, error) {
	return s.repos.Stacks.FindByCloudProviderID(ctx, providerID)
}

func (s *StackService) ListByType(ctx context.Context, stackType entities.StackType) ([]*entities.Stack, error) {
	return s.repos.Stacks.FindByStackType(ctx, stackType)
}

func (s *StackService) Delete(ctx context.Context, id uuid.UUID) error {
	stack, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.repos.Stacks.Delete(ctx, stack)
}

// TransferToTeam reassigns every stack the source team owns to the target
// team in one atomic write set.
func (s *StackService) TransferToTeam(ctx context.Context, fromTeamID, toTeamID uuid.UUID) (int, error) {
	if fromTeamID == toTeamID {
		return 0, pkgerrors.NewValidationError("source and target team are the same")
	}
	target, err := s.repos.Teams.FindByID(ctx, toTeamID)
	if err != nil {
		return 0, err
	}
	if target == nil {
		return 0, pkgerrors.NewNotFoundError("target team")
	}

	stacks, err := s.repos.Stacks.FindByTeamID(ctx, fromTeamID)
	if err != nil {
		return 0, err
	}
	if len(stacks) == 0 {
		return 0, nil
	}

	err = s.repos.Transactions.RunInTransaction(ctx, func(ctx context.Context, repos *ports.Repositories) error {
		for _, stack := range stacks {
			stack.TeamID = toTeamID
			if _, err := repos.Stacks.Save(ctx, stack); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("stacks transferred",
		zap.String("from_team", fromTeamID.String()),
		zap.String("to_team", toTeamID.String()),
		zap.Int("count", len(stacks)),
	)
	return len(stacks), nil
}
