package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

const cloudProviderColumns = `id, name, display_name, kind, enabled,
	configuration, created_at, updated_at, version`

type cloudProviderRepository struct {
	exec   executor
	logger *zap.Logger
}

var _ ports.CloudProviderRepository = (*cloudProviderRepository)(nil)

func (r *cloudProviderRepository) Save(ctx context.Context, provider *entities.CloudProvider) (*entities.CloudProvider, error) {
	if provider == nil {
		return nil, pkgerrors.NewValidationError("cloud provider cannot be nil")
	}
	if err := provider.Validate(); err != nil {
		return nil, err
	}

	cfg, err := configBytes(provider.Configuration)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid cloud provider configuration").WithCause(err)
	}

	saved := *provider
	err = runSave(ctx, &saved.Meta, "cloud provider",
		func(ctx context.Context) error {
			_, err := r.exec.ExecContext(ctx, `
				INSERT INTO cloud_providers (id, name, display_name, kind, enabled,
					configuration, created_at, updated_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				saved.ID.String(), saved.Name, nullString(saved.DisplayName),
				string(saved.Kind), saved.Enabled, cfg,
				saved.CreatedAt, saved.UpdatedAt, saved.Version,
			)
			return err
		},
		func(ctx context.Context, expected int64) (sql.Result, error) {
			return r.exec.ExecContext(ctx, `
				UPDATE cloud_providers
				SET name = $2, display_name = $3, kind = $4, enabled = $5,
					configuration = $6, updated_at = $7, version = $8
				WHERE id = $1 AND version = $9`,
				saved.ID.String(), saved.Name, nullString(saved.DisplayName),
				string(saved.Kind), saved.Enabled, cfg,
				saved.UpdatedAt, saved.Version, expected,
			)
		},
		func(ctx context.Context) (bool, error) {
			return queryExists(ctx, r.exec, "cloud_providers", saved.ID.String())
		},
	)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("cloud provider saved",
		zap.String("providerID", saved.ID.String()),
		zap.Int64("version", saved.Version),
	)
	return &saved, nil
}

func (r *cloudProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.CloudProvider, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	row := r.exec.QueryRowContext(ctx,
		`SELECT `+cloudProviderColumns+` FROM cloud_providers WHERE id = $1`, id.String())
	provider, err := scanCloudProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get cloud provider", err)
	}
	return provider, nil
}

func (r *cloudProviderRepository) FindAll(ctx context.Context) ([]*entities.CloudProvider, error) {
	return r.queryProviders(ctx, `SELECT `+cloudProviderColumns+` FROM cloud_providers ORDER BY name`)
}

// Delete removes a provider. Providers still referenced by stacks cannot be
// deleted; the count runs first so the conflict reports how many, with the
// foreign key backing it up under concurrent stack creation.
func (r *cloudProviderRepository) Delete(ctx context.Context, provider *entities.CloudProvider) error {
	if provider == nil || provider.ID == uuid.Nil {
		return nil
	}

	var stackCount int
	err := r.exec.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM stacks WHERE cloud_provider_id = $1`, provider.ID.String()).Scan(&stackCount)
	if err != nil {
		return translateError("delete cloud provider", err)
	}
	if stackCount > 0 {
		return pkgerrors.NewConflictError("cloud provider is still referenced by stacks and cannot be deleted").
			WithDetails(map[string]any{"stack_count": stackCount})
	}

	_, err = r.exec.ExecContext(ctx, `DELETE FROM cloud_providers WHERE id = $1`, provider.ID.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
			return pkgerrors.NewConflictError("cloud provider is still referenced by stacks and cannot be deleted").WithCause(err)
		}
		return translateError("delete cloud provider", err)
	}
	return nil
}

func (r *cloudProviderRepository) Count(ctx context.Context) (int64, error) {
	return queryCount(ctx, r.exec, "cloud_providers")
}

func (r *cloudProviderRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	return queryExists(ctx, r.exec, "cloud_providers", id.String())
}

func (r *cloudProviderRepository) FindByName(ctx context.Context, name string) (*entities.CloudProvider, error) {
	row := r.exec.QueryRowContext(ctx,
		`SELECT `+cloudProviderColumns+` FROM cloud_providers WHERE name = $1`, name)
	provider, err := scanCloudProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get cloud provider by name", err)
	}
	return provider, nil
}

func (r *cloudProviderRepository) FindByEnabled(ctx context.Context, enabled bool) ([]*entities.CloudProvider, error) {
	return r.queryProviders(ctx,
		`SELECT `+cloudProviderColumns+` FROM cloud_providers WHERE enabled = $1 ORDER BY name`, enabled)
}

func (r *cloudProviderRepository) FindByKind(ctx context.Context, kind entities.ProviderKind) ([]*entities.CloudProvider, error) {
	return r.queryProviders(ctx,
		`SELECT `+cloudProviderColumns+` FROM cloud_providers WHERE kind = $1 ORDER BY name`, string(kind))
}

func (r *cloudProviderRepository) queryProviders(ctx context.Context, query string, args ...any) ([]*entities.CloudProvider, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list cloud providers", err)
	}
	defer rows.Close()

	providers := make([]*entities.CloudProvider, 0)
	for rows.Next() {
		provider, err := scanCloudProvider(rows)
		if err != nil {
			return nil, translateError("scan cloud provider", err)
		}
		providers = append(providers, provider)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list cloud providers", err)
	}
	return providers, nil
}

func scanCloudProvider(row rowScanner) (*entities.CloudProvider, error) {
	var (
		provider    entities.CloudProvider
		id          string
		displayName sql.NullString
		kind        string
		cfg         []byte
	)
	err := row.Scan(&id, &provider.Name, &displayName, &kind, &provider.Enabled,
		&cfg, &provider.CreatedAt, &provider.UpdatedAt, &provider.Version)
	if err != nil {
		return nil, err
	}
	if provider.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if provider.Configuration, err = scanConfig(cfg); err != nil {
		return nil, err
	}
	provider.DisplayName = displayName.String
	provider.Kind = entities.ProviderKind(kind)
	return &provider, nil
}
