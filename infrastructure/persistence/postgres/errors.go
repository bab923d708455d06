package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// pq error codes this layer distinguishes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
)

// translateError maps a driver failure into the shared taxonomy. Raw pq
// errors never leave this package.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return pkgerrors.NewConflictError(op + ": a record with the same unique value already exists").WithCause(err)
		case codeForeignKeyViolation:
			return pkgerrors.NewValidationError(op + ": referenced entity does not exist or is still referenced").WithCause(err)
		case codeNotNullViolation:
			return pkgerrors.NewValidationError(op + ": required field is missing").WithCause(err)
		}
		// Class 08 is connection failure.
		if len(pqErr.Code) >= 2 && pqErr.Code[:2] == "08" {
			return pkgerrors.NewUnavailableError("postgresql", err)
		}
		return pkgerrors.NewInternalError(op + " failed").WithCause(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewUnavailableError("postgresql", err)
	}

	return pkgerrors.NewInternalError(op + " failed").WithCause(err)
}
