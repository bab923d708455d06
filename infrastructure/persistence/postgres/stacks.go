package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

const stackColumns = `id, name, description, cloud_name, route_path,
	repository_url, stack_type, programming_language, is_public, created_by,
	team_id, cloud_provider_id, configuration, created_at, updated_at, version`

type stackRepository struct {
	exec   executor
	logger *zap.Logger
}

var _ ports.StackRepository = (*stackRepository)(nil)

func (r *stackRepository) Save(ctx context.Context, stack *entities.Stack) (*entities.Stack, error) {
	if stack == nil {
		return nil, pkgerrors.NewValidationError("stack cannot be nil")
	}
	if err := stack.Validate(); err != nil {
		return nil, err
	}

	cfg, err := configBytes(stack.Configuration)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid stack configuration").WithCause(err)
	}

	saved := *stack
	err = runSave(ctx, &saved.Meta, "stack",
		func(ctx context.Context) error {
			_, err := r.exec.ExecContext(ctx, `
				INSERT INTO stacks (id, name, description, cloud_name, route_path,
					repository_url, stack_type, programming_language, is_public,
					created_by, team_id, cloud_provider_id, configuration,
					created_at, updated_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
				saved.ID.String(), saved.Name, nullString(saved.Description),
				saved.CloudName, saved.RoutePath, nullString(saved.RepositoryURL),
				string(saved.StackType), nullString(string(saved.ProgrammingLanguage)),
				saved.Public, saved.CreatedBy, saved.TeamID.String(),
				nullUUID(saved.CloudProviderID), cfg,
				saved.CreatedAt, saved.UpdatedAt, saved.Version,
			)
			return err
		},
		func(ctx context.Context, expected int64) (sql.Result, error) {
			return r.exec.ExecContext(ctx, `
				UPDATE stacks
				SET name = $2, description = $3, cloud_name = $4, route_path = $5,
					repository_url = $6, stack_type = $7, programming_language = $8,
					is_public = $9, created_by = $10, team_id = $11,
					cloud_provider_id = $12, configuration = $13,
					updated_at = $14, version = $15
				WHERE id = $1 AND version = $16`,
				saved.ID.String(), saved.Name, nullString(saved.Description),
				saved.CloudName, saved.RoutePath, nullString(saved.RepositoryURL),
				string(saved.StackType), nullString(string(saved.ProgrammingLanguage)),
				saved.Public, saved.CreatedBy, saved.TeamID.String(),
				nullUUID(saved.CloudProviderID), cfg,
				saved.UpdatedAt, saved.Version, expected,
			)
		},
		func(ctx context.Context) (bool, error) {
			return queryExists(ctx, r.exec, "stacks", saved.ID.String())
		},
	)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("stack saved",
		zap.String("stackID", saved.ID.String()),
		zap.String("cloudName", saved.CloudName),
		zap.Int64("version", saved.Version),
	)
	return &saved, nil
}

func (r *stackRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Stack, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	row := r.exec.QueryRowContext(ctx, `SELECT `+stackColumns+` FROM stacks WHERE id = $1`, id.String())
	stack, err := scanStack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get stack", err)
	}
	return stack, nil
}

func (r *stackRepository) FindAll(ctx context.Context) ([]*entities.Stack, error) {
	return r.queryStacks(ctx, `SELECT `+stackColumns+` FROM stacks ORDER BY name`)
}

func (r *stackRepository) Delete(ctx context.Context, stack *entities.Stack) error {
	if stack == nil || stack.ID == uuid.Nil {
		return nil
	}
	_, err := r.exec.ExecContext(ctx, `DELETE FROM stacks WHERE id = $1`, stack.ID.String())
	if err != nil {
		return translateError("delete stack", err)
	}
	return nil
}

func (r *stackRepository) Count(ctx context.Context) (int64, error) {
	return queryCount(ctx, r.exec, "stacks")
}

func (r *stackRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	return queryExists(ctx, r.exec, "stacks", id.String())
}

func (r *stackRepository) FindByCloudName(ctx context.Context, cloudName string) (*entities.Stack, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+stackColumns+` FROM stacks WHERE cloud_name = $1`, cloudName)
	stack, err := scanStack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get stack by cloud name", err)
	}
	return stack, nil
}

func (r *stackRepository) FindByTeamID(ctx context.Context, teamID uuid.UUID) ([]*entities.Stack, error) {
	return r.queryStacks(ctx,
		`SELECT `+stackColumns+` FROM stacks WHERE team_id = $1 ORDER BY name`, teamID.String())
}

func (r *stackRepository) FindByCloudProviderID(ctx context.Context, providerID uuid.UUID) ([]*entities.Stack, error) {
	return r.queryStacks(ctx,
		`SELECT `+stackColumns+` FROM stacks WHERE cloud_provider_id = $1 ORDER BY name`, providerID.String())
}

func (r *stackRepository) FindByStackType(ctx context.Context, stackType entities.StackType) ([]*entities.Stack, error) {
	return r.queryStacks(ctx,
		`SELECT `+stackColumns+` FROM stacks WHERE stack_type = $1 ORDER BY name`, string(stackType))
}

func (r *stackRepository) queryStacks(ctx context.Context, query string, args ...any) ([]*entities.Stack, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list stacks", err)
	}
	defer rows.Close()

	stacks := make([]*entities.Stack, 0)
	for rows.Next() {
		stack, err := scanStack(rows)
		if err != nil {
			return nil, translateError("scan stack", err)
		}
		stacks = append(stacks, stack)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list stacks", err)
	}
	return stacks, nil
}

func scanStack(row rowScanner) (*entities.Stack, error) {
	var (
		stack       entities.Stack
		id          string
		description sql.NullString
		repoURL     sql.NullString
		language    sql.NullString
		stackType   string
		teamID      string
		providerID  sql.NullString
		cfg         []byte
	)
	err := row.Scan(&id, &stack.Name, &description, &stack.CloudName, &stack.RoutePath,
		&repoURL, &stackType, &language, &stack.Public, &stack.CreatedBy,
		&teamID, &providerID, &cfg,
		&stack.CreatedAt, &stack.UpdatedAt, &stack.Version)
	if err != nil {
		return nil, err
	}

	if stack.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if stack.TeamID, err = uuid.Parse(teamID); err != nil {
		return nil, err
	}
	if stack.CloudProviderID, err = scanUUID(providerID); err != nil {
		return nil, err
	}
	if stack.Configuration, err = scanConfig(cfg); err != nil {
		return nil, err
	}
	stack.Description = description.String
	stack.RepositoryURL = repoURL.String
	stack.StackType = entities.StackType(stackType)
	stack.ProgrammingLanguage = entities.ProgrammingLanguage(language.String)
	return &stack, nil
}
