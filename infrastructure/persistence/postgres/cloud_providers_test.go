package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

func newProviderRepo(t *testing.T) (*cloudProviderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &cloudProviderRepository{exec: db, logger: zap.NewNop()}, mock
}

func TestCloudProviderDelete(t *testing.T) {
	repo, mock := newProviderRepo(t)
	provider := &entities.CloudProvider{Name: "aws-prod", Kind: entities.ProviderKindAWS}
	provider.ID = uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM stacks WHERE cloud_provider_id = $1")).
		WithArgs(provider.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cloud_providers WHERE id = $1")).
		WithArgs(provider.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), provider))

	assert.NoError(t, repo.Delete(context.Background(), nil))
	assert.NoError(t, repo.Delete(context.Background(), &entities.CloudProvider{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloudProviderDeleteRestrictedByStacks(t *testing.T) {
	provider := &entities.CloudProvider{Name: "aws-prod", Kind: entities.ProviderKindAWS}
	provider.ID = uuid.New()

	t.Run("referencing stacks reported up front", func(t *testing.T) {
		repo, mock := newProviderRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM stacks WHERE cloud_provider_id = $1")).
			WithArgs(provider.ID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		err := repo.Delete(context.Background(), provider)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
		appErr := pkgerrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, 3, appErr.Details["stack_count"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("foreign key backstop under a racing stack create", func(t *testing.T) {
		repo, mock := newProviderRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM stacks WHERE cloud_provider_id = $1")).
			WithArgs(provider.ID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cloud_providers WHERE id = $1")).
			WillReturnError(&pq.Error{Code: codeForeignKeyViolation})

		err := repo.Delete(context.Background(), provider)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
