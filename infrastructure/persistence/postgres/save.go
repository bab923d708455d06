package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/angryss/idp/domain/core/entities"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// runSave implements the shared upsert protocol. A zero Version means create;
// a non-zero Version means replace, guarded by the optimistic version check
// in the UPDATE's WHERE clause. Zero rows affected on update means either the
// record vanished (NOT_FOUND) or a concurrent writer advanced the version
// (CONFLICT); the follow-up existence check tells the two apart.
func runSave(
	ctx context.Context,
	m *entities.Meta,
	resource string,
	insert func(context.Context) error,
	update func(ctx context.Context, expectedVersion int64) (sql.Result, error),
	exists func(context.Context) (bool, error),
) error {
	now := time.Now()

	if m.Version == 0 {
		m.StampForCreate(now)
		if err := insert(ctx); err != nil {
			return translateError("insert "+resource, err)
		}
		return nil
	}

	expected := m.Version
	m.StampForUpdate(now)

	res, err := update(ctx, expected)
	if err != nil {
		return translateError("update "+resource, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return translateError("update "+resource, err)
	}
	if affected == 0 {
		ok, err := exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.NewNotFoundError(resource)
		}
		return pkgerrors.NewConflictError("concurrent update detected on " + resource)
	}
	return nil
}

// queryExists runs an id-existence probe shared by the repositories.
func queryExists(ctx context.Context, exec executor, table string, id string) (bool, error) {
	var n int
	err := exec.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = $1`, id).Scan(&n)
	if err != nil {
		return false, translateError("exists "+table, err)
	}
	return n > 0, nil
}

// queryCount counts all rows of a table.
func queryCount(ctx context.Context, exec executor, table string) (int64, error) {
	var n int64
	err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	if err != nil {
		return 0, translateError("count "+table, err)
	}
	return n, nil
}
