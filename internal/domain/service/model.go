package service

import (
	"github.com/shopspring/decimal"

	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// Service is a sellable unit of work from the tenant's catalog.
// The catalog itself is owned by another part of the back office; the
// ledger only needs id, name and current price for resolving sale items.
type Service struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	types.BaseModel
}

func (s *Service) TableName() string {
	return "services"
}

func (s *Service) Validate() error {
	if s.Name == "" {
		return ierr.NewError("service name is required").
			WithHint("Please provide a name for the service").
			Mark(ierr.ErrValidation)
	}
	if s.Price.IsNegative() {
		return ierr.NewError("service price cannot be negative").
			WithHint("Service price must be zero or positive").
			WithReportableDetails(map[string]any{
				"price": s.Price,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
