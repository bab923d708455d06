package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// CloudProviderService manages the provider catalog.
type CloudProviderService struct {
	repos  *ports.Repositories
	logger *zap.Logger
}

func NewCloudProviderService(repos *ports.Repositories, logger *zap.Logger) *CloudProviderService {
	return &CloudProviderService{repos: repos, logger: logger}
}

func (s *CloudProviderService) Register(ctx context.Context, provider *entities.CloudProvider) (*entities.CloudProvider, error) {
	if provider == nil {
		return nil, pkgerrors.NewValidationError("cloud provider cannot be nil")
	}
	existing, err := s.repos.CloudProviders.FindByName(ctx, provider.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.NewConflictError("cloud provider name is already taken")
	}
	return s.repos.CloudProviders.Save(ctx, provider)
}

func (s *CloudProviderService) Update(ctx context.Context, provider *entities.CloudProvider) (*entities.CloudProvider, error) {
	if provider == nil || provider.ID == uuid.Nil {
		return nil, pkgerrors.NewValidationError("cloud provider identifier is required")
	}
	if provider.Version == 0 {
		return nil, pkgerrors.NewValidationError("update requires a previously read cloud provider")
	}
	return s.repos.CloudProviders.Save(ctx, provider)
}

func (s *CloudProviderService) Get(ctx context.Context, id uuid.UUID) (*entities.CloudProvider, error) {
	provider, err := s.repos.CloudProviders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, pkgerrors.NewNotFoundError("cloud provider")
	}
	return provider, nil
}

func (s *CloudProviderService) List(ctx context.Context) ([]*entities.CloudProvider, error) {
	return s.repos.CloudProviders.FindAll(ctx)
}

func (s *CloudProviderService) ListByEnabled(ctx context.Context, enabled bool) ([]*entities.CloudProvider, error) {
	return s.repos.CloudProviders.FindByEnabled(ctx, enabled)
}

func (s *CloudProviderService) ListByKind(ctx context.Context, kind entities.ProviderKind) ([]*entities.CloudProvider, error) {
	return s.repos.CloudProviders.FindByKind(ctx, kind)
}

// SetEnabled flips the enabled flag. Disabling a provider does not touch
// the stacks already deployed to it.
func (s *CloudProviderService) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*entities.CloudProvider, error) {
	provider, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if provider.Enabled == enabled {
		return provider, nil
	}
	provider.Enabled = enabled
	saved, err := s.repos.CloudProviders.Save(ctx, provider)
	if err != nil {
		return nil, err
	}
	s.logger.Info("cloud provider toggled",
		zap.String("provider_id", id.String()),
		zap.Bool("enabled", enabled),
	)
	return saved, nil
}

// Delete removes a provider from the catalog. Providers still referenced by
// stacks are rejected.
func (s *CloudProviderService) Delete(ctx context.Context, id uuid.UUID) error {
	provider, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deployed, err := s.repos.Stacks.FindByCloudProviderID(ctx, id)
	if err != nil {
		return err
	}
	if len(deployed) > 0 {
		return pkgerrors.NewConflictError("cloud provider still has deployed stacks").
			WithDetails(map[string]any{"stack_count": len(deployed)})
	}
	return s.repos.CloudProviders.Delete(ctx, provider)
}
