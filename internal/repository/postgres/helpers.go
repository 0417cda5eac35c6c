package postgres

import (
	"database/sql"

	ierr "github.com/packlane/packlane/internal/errors"
)

// requireRowAffected maps a zero-row update to a not-found error so that
// mutations against missing or foreign-tenant rows fail loudly
func requireRowAffected(result sql.Result, entity, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError(entity + " not found").
			WithHint("The " + entity + " does not exist").
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
