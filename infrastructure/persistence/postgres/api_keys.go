package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angryss/idp/application/ports"
	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

const apiKeyColumns = `id, name, key_hash, key_prefix, type, team_id, enabled,
	expires_at, last_used_at, created_at, updated_at, version`

type apiKeyRepository struct {
	exec   executor
	logger *zap.Logger
}

var _ ports.APIKeyRepository = (*apiKeyRepository)(nil)

func (r *apiKeyRepository) Save(ctx context.Context, key *entities.APIKey) (*entities.APIKey, error) {
	if key == nil {
		return nil, pkgerrors.NewValidationError("api key cannot be nil")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	saved := *key
	err := runSave(ctx, &saved.Meta, "api key",
		func(ctx context.Context) error {
			_, err := r.exec.ExecContext(ctx, `
				INSERT INTO api_keys (id, name, key_hash, key_prefix, type, team_id,
					enabled, expires_at, last_used_at, created_at, updated_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				saved.ID.String(), saved.Name, saved.KeyHash, nullString(saved.KeyPrefix),
				string(saved.Type), nullUUID(saved.TeamID), saved.Enabled,
				nullTimePtr(saved.ExpiresAt), nullTimePtr(saved.LastUsedAt),
				saved.CreatedAt, saved.UpdatedAt, saved.Version,
			)
			return err
		},
		func(ctx context.Context, expected int64) (sql.Result, error) {
			return r.exec.ExecContext(ctx, `
				UPDATE api_keys
				SET name = $2, key_hash = $3, key_prefix = $4, type = $5, team_id = $6,
					enabled = $7, expires_at = $8, last_used_at = $9,
					updated_at = $10, version = $11
				WHERE id = $1 AND version = $12`,
				saved.ID.String(), saved.Name, saved.KeyHash, nullString(saved.KeyPrefix),
				string(saved.Type), nullUUID(saved.TeamID), saved.Enabled,
				nullTimePtr(saved.ExpiresAt), nullTimePtr(saved.LastUsedAt),
				saved.UpdatedAt, saved.Version, expected,
			)
		},
		func(ctx context.Context) (bool, error) {
			return queryExists(ctx, r.exec, "api_keys", saved.ID.String())
		},
	)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("api key saved",
		zap.String("apiKeyID", saved.ID.String()),
		zap.String("keyPrefix", saved.KeyPrefix),
		zap.Int64("version", saved.Version),
	)
	return &saved, nil
}

func (r *apiKeyRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.APIKey, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	row := r.exec.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id.String())
	key, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get api key", err)
	}
	return key, nil
}

func (r *apiKeyRepository) FindAll(ctx context.Context) ([]*entities.APIKey, error) {
	return r.queryKeys(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at`)
}

func (r *apiKeyRepository) Delete(ctx context.Context, key *entities.APIKey) error {
	if key == nil || key.ID == uuid.Nil {
		return nil
	}
	_, err := r.exec.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, key.ID.String())
	if err != nil {
		return translateError("delete api key", err)
	}
	return nil
}

func (r *apiKeyRepository) Count(ctx context.Context) (int64, error) {
	return queryCount(ctx, r.exec, "api_keys")
}

func (r *apiKeyRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	return queryExists(ctx, r.exec, "api_keys", id.String())
}

func (r *apiKeyRepository) FindByKeyHash(ctx context.Context, keyHash string) (*entities.APIKey, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
	key, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("get api key by hash", err)
	}
	return key, nil
}

func (r *apiKeyRepository) FindByTeamID(ctx context.Context, teamID uuid.UUID) ([]*entities.APIKey, error) {
	return r.queryKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE team_id = $1 ORDER BY created_at`, teamID.String())
}

func (r *apiKeyRepository) FindByType(ctx context.Context, keyType entities.APIKeyType) ([]*entities.APIKey, error) {
	return r.queryKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE type = $1 ORDER BY created_at`, string(keyType))
}

func (r *apiKeyRepository) FindExpiredBefore(ctx context.Context, cutoff time.Time) ([]*entities.APIKey, error) {
	return r.queryKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < $1 ORDER BY expires_at`,
		cutoff)
}

func (r *apiKeyRepository) queryKeys(ctx context.Context, query string, args ...any) ([]*entities.APIKey, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError("list api keys", err)
	}
	defer rows.Close()

	keys := make([]*entities.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, translateError("scan api key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list api keys", err)
	}
	return keys, nil
}

func scanAPIKey(row rowScanner) (*entities.APIKey, error) {
	var (
		key        entities.APIKey
		id         string
		keyPrefix  sql.NullString
		keyType    string
		teamID     sql.NullString
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
	)
	err := row.Scan(&id, &key.Name, &key.KeyHash, &keyPrefix, &keyType, &teamID,
		&key.Enabled, &expiresAt, &lastUsedAt,
		&key.CreatedAt, &key.UpdatedAt, &key.Version)
	if err != nil {
		return nil, err
	}
	if key.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if key.TeamID, err = scanUUID(teamID); err != nil {
		return nil, err
	}
	key.KeyPrefix = keyPrefix.String
	key.Type = entities.APIKeyType(keyType)
	key.ExpiresAt = timePtr(expiresAt)
	key.LastUsedAt = timePtr(lastUsedAt)
	return &key, nil
}
