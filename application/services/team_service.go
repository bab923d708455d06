// Package services holds the thin application layer between the HTTP
// handlers and the repository contract. Services own cross-entity rules
// such as uniqueness pre-checks and multi-write transactions; single-entity
// validation lives on the entities themselves.
package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// TeamService manages team lifecycle.
type TeamService struct {
	repos  *ports.Repositories
	logger *zap.Logger
}

func NewTeamService(repos *ports.Repositories, logger *zap.Logger) *TeamService {
	return &TeamService{repos: repos, logger: logger}
}

// Create persists a new team. The name must not be taken; the uniqueness
// constraint in the store is the final arbiter under races.
func (s *TeamService) Create(ctx context.Context, team *entities.Team) (*entities.Team, error) {
	if team == nil {
		return nil, pkgerrors.NewValidationError("team cannot be nil")
	}
	existing, err := s.repos.Teams.FindByName(ctx, team.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.NewConflictError("team name is already taken")
	}
	return s.repos.Teams.Save(ctx, team)
}

// Update replaces the stored team with the caller's copy. The caller must
// have read the team first; a stale version surfaces as a conflict.
func (s *TeamService) Update(ctx context.Context, team *entities.Team) (*entities.Team, error) {
	if team == nil || team.ID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("team identifier is required")
	}
	if team.Version == 0 {
		return nil, pkgerrors.NewValidationError("update requires a previously read team")
	}
	return s.repos.Teams.Save(ctx, team)
}

func (s *TeamService) Get(ctx context.Context, id uuid.UUID) (*entities.Team, error) {
	team, err := s.repos.Teams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, pkgerrors.NewNotFoundError("team")
	}
	return team, nil
}

func (s *TeamService) GetByName(ctx context.Context, name string) (*entities.Team, error) {
	team, err := s.repos.Teams.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, pkgerrors.NewNotFoundError("team")
	}
	return team, nil
}

func (s *TeamService) List(ctx context.Context) ([]*entities.Team, error) {
	return s.repos.Teams.FindAll(ctx)
}

func (s *TeamService) ListByActive(ctx context.Context, active bool) ([]*entities.Team, error) {
	return s.repos.Teams.FindByActive(ctx, active)
}

// Delete removes a team. Teams still owning stacks are rejected; the team's
// API keys go with it.
func (s *TeamService) Delete(ctx context.Context, id uuid.UUID) error {
	team, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.repos.Teams.Delete(ctx, team)
}

// Deactivate marks the team inactive and disables every key it owns, as one
// atomic write set.
func (s *TeamService) Deactivate(ctx context.Context, id uuid.UUID) (*entities.Team, error) {
	team, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !team.Active {
		return team, nil
	}

	var updated *entities.Team
	err = s.repos.Transactions.RunInTransaction(ctx, func(ctx context.Context, repos *ports.Repositories) error {
		team.Active = false
		saved, err := repos.Teams.Save(ctx, team)
		if err != nil {
			return err
		}
		updated = saved

		keys, err := repos.APIKeys.FindByTeamID(ctx, team.ID)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if !key.Enabled {
				continue
			}
			key.Enabled = false
			if _, err := repos.APIKeys.Save(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("team deactivated", zap.String("team_id", id.String()))
	return updated, nil
}
