package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/kawal234/HelpDeskMIni/pkg/util"
)

// Resource types recorded in the idempotency ledger.
const (
	ResourceTypeTicket = "ticket"
	ResourceTypeUser   = "user"
)

// mapStoreError translates repository failures into the domain taxonomy.
// Missing rows become NOT_FOUND for the named resource; transient
// connection-level failures become the retryable UNAVAILABLE kind,
// deliberately distinct from CONFLICT; anything else is internal.
func mapStoreError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	if pgconn.SafeToRetry(err) {
		return apperrors.NewUnavailable("storage temporarily unavailable", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 53 (insufficient resources) and 57 (operator
		// intervention) are transient from the caller's view.
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "53" || pgErr.Code[:2] == "57") {
			return apperrors.NewUnavailable("storage temporarily unavailable", err)
		}
	}
	return apperrors.NewInternalError(err)
}
