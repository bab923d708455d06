package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// APIKeyService manages credential lifecycle. Keys are stored hashed; the
// plaintext secret never reaches this layer.
type APIKeyService struct {
	repos  *ports.Repositories
	logger *zap.Logger
}

func NewAPIKeyService(repos *ports.Repositories, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{repos: repos, logger: logger}
}

func (s *APIKeyService) Issue(ctx context.Context, key *entities.APIKey) (*entities.APIKey, error) {
	if key == nil {
		return nil, pkgerrors.NewValidationError("api key cannot be nil")
	}
	existing, err := s.repos.APIKeys.FindByKeyHash(ctx, key.KeyHash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.NewConflictError("api key hash already exists")
	}
	return s.repos.APIKeys.Save(ctx, key)
}

func (s *APIKeyService) Get(ctx context.Context, id uuid.UUID) (*entities.APIKey, error) {
	key, err := s.repos.APIKeys.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, pkgerrors.NewNotFoundError("api key")
	}
	return key, nil
}

func (s *APIKeyService) List(ctx context.Context) ([]*entities.APIKey, error) {
	return s.repos.APIKeys.FindAll(ctx)
}

func (s *APIKeyService) ListByTeam(ctx context.Context, teamID uuid.UUID) ([]*entities.APIKey, error) {
	return s.repos.APIKeys.FindByTeamID(ctx, teamID)
}

func (s *APIKeyService) ListByType(ctx context.Context, keyType entities.APIKeyType) ([]*entities.APIKey, error) {
	return s.repos.APIKeys.FindByType(ctx, keyType)
}

// Revoke deletes a key permanently. Disabling via rotation is preferred;
// revocation is for compromised credentials.
func (s *APIKeyService) Revoke(ctx context.Context, id uuid.UUID) error {
	key, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.repos.APIKeys.Delete(ctx, key)
}

// Authenticate resolves a key hash to a live credential. Disabled and
// expired keys fail with NOT_FOUND so callers cannot probe for their
// existence.
func (s *APIKeyService) Authenticate(ctx context.Context, keyHash string) (*entities.APIKey, error) {
	key, err := s.repos.APIKeys.FindByKeyHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}
	if key == nil || !key.Enabled || key.Expired(time.Now()) {
		return nil, pkgerrors.NewNotFoundError("api key")
	}
	return key, nil
}

// TouchUsage records the last use. Best effort: a version race with another
// request is ignored, the newer timestamp wins.
func (s *APIKeyService) TouchUsage(ctx context.Context, key *entities.APIKey, at time.Time) {
	at = at.UTC()
	key.LastUsedAt = &at
	if _, err := s.repos.APIKeys.Save(ctx, key); err != nil && !pkgerrors.IsConflict(err) {
		s.logger.Warn("recording key usage failed",
			zap.String("key_id", key.ID.String()),
			zap.Error(err),
		)
	}
}

// Rotate disables the old key and issues its replacement atomically, so no
// window exists with both keys live or neither.
func (s *APIKeyService) Rotate(ctx context.Context, oldID uuid.UUID, replacement *entities.APIKey) (*entities.APIKey, error) {
	if replacement == nil {
		return nil, pkgerrors.NewValidationError("replacement key cannot be nil")
	}
	old, err := s.Get(ctx, oldID)
	if err != nil {
		return nil, err
	}

	var issued *entities.APIKey
	err = s.repos.Transactions.RunInTransaction(ctx, func(ctx context.Context, repos *ports.Repositories) error {
		old.Enabled = false
		if _, err := repos.APIKeys.Save(ctx, old); err != nil {
			return err
		}
		saved, err := repos.APIKeys.Save(ctx, replacement)
		if err != nil {
			return err
		}
		issued = saved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("api key rotated",
		zap.String("old_key_id", oldID.String()),
		zap.String("new_key_id", issued.ID.String()),
	)
	return issued, nil
}

// PruneExpired deletes keys whose expiry passed before the cutoff and
// returns how many were removed.
func (s *APIKeyService) PruneExpired(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := s.repos.APIKeys.FindExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range expired {
		if err := s.repos.APIKeys.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("expired api keys pruned", zap.Int("count", removed))
	}
	return removed, nil
}
