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

const teamColumns = `id, name, description, contact_email, active,
	created_at, updated_at, version`

type teamRepository struct {
	exec   executor
	logger *zap.Logger
}

var _ ports.TeamRepository = (*teamRepository)(nil)

func (r *teamRepository) Save(ctx context.Context, team *entities.Team) (*entities.Team, error) {
	if team == nil {
		return nil, pkgerrors.NewValidationError("team cannot be nil")
	}
	if err := team.Validate(); err != nil {
		return nil, err
	}

	saved := *team
	err := runSave(ctx, &saved.Meta, "team",
		func(ctx context.Context) error {
			_, err := r.exec.ExecContext(ctx, `
				INSERT INTO teams (id, name, description, contact_email, active,
					created_at, updated_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				saved.ID.String(), saved.Name, nullString(saved.Description),
				nullString(saved.ContactEmail), saved.Active,
				saved.CreatedAt, saved.UpdatedAt, saved.Version,
			)
			return err
		},
		func(ctx context.Context, expected int64) (sql.Result, error) {
			return r.exec.ExecContext(ctx, `
				UPDATE teams
				SET name = $2, description = $3, contact_email = $4, active = $5,
					updated_at = $6, version = $7
				WHERE id = $1 AND version = $8`,
				saved.ID.String(), saved.Name, nullString(saved.Description),
				nullString(saved.ContactEmail), saved.Active,
				saved.UpdatedAt, saved.Version, expected,
			)
		},
		func(ctx context.Context) (bool, error) {
			return queryExists(ctx, r.exec, "teams", saved.ID.String())
		},
	)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("team saved",
		zap.String("teamID", saved.ID.String()),
		zap.Int64("version", saved.Version),
	)
	return &saved, nil
}

func (r *teamRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Team, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	row := r.exec.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id.String())
	team, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get team", err)
	}
	return team, nil
}

func (r *teamRepository) FindAll(ctx context.Context) ([]*entities.Team, error) {
	return r.queryTeams(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY name`)
}

// Delete removes a team and cascades to its API keys through the schema.
// Teams still owning stacks cannot be deleted; the count runs first so the
// conflict carries how many stacks still point at the team, with the
// foreign key backing it up under concurrent stack creation.
func (r *teamRepository) Delete(ctx context.Context, team *entities.Team) error {
	if team == nil || team.ID == uuid.Nil {
		return nil
	}

	var stackCount int
	err := r.exec.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM stacks WHERE team_id = $1`, team.ID.String()).Scan(&stackCount)
	if err != nil {
		return translateError("delete team", err)
	}
	if stackCount > 0 {
		return pkgerrors.NewConflictError("team still owns stacks and cannot be deleted").
			WithDetails(map[string]any{"stack_count": stackCount})
	}

	_, err = r.exec.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, team.ID.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
			return pkgerrors.NewConflictError("team still owns stacks and cannot be deleted").WithCause(err)
		}
		return translateError("delete team", err)
	}
	return nil
}

func (r *teamRepository) Count(ctx context.Context) (int64, error) {
	return queryCount(ctx, r.exec, "teams")
}

func (r *teamRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	return queryExists(ctx, r.exec, "teams", id.String())
}

func (r *teamRepository) FindByName(ctx context.Context, name string) (*entities.Team, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE name = $1`, name)
	team, err := scanTeam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get team by name", err)
	}
	return team, nil
}

func (r *teamRepository) FindByActive(ctx context.Context, active bool) ([]*entities.Team, error) {
	return r.queryTeams(ctx, `SELECT `+teamColumns+` FROM teams WHERE active = $1 ORDER BY name`, active)
}

func (r *teamRepository) queryTeams(ctx context.Context, query string, args ...any) ([]*entities.Team, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list teams", err)
	}
	defer rows.Close()

	teams := make([]*entities.Team, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, translateError("scan team", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list teams", err)
	}
	return teams, nil
}

func scanTeam(row rowScanner) (*entities.Team, error) {
	var (
		team         entities.Team
		id           string
		description  sql.NullString
		contactEmail sql.NullString
	)
	err := row.Scan(&id, &team.Name, &description, &contactEmail, &team.Active,
		&team.CreatedAt, &team.UpdatedAt, &team.Version)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	team.ID = parsed
	team.Description = description.String
	team.ContactEmail = contactEmail.String
	return &team, nil
}
