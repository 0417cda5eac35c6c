package dto

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/domain/service"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
	"github.com/packlane/packlane/internal/validator"
)

type CreateServiceRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description,omitempty" validate:"max=1024"`
	Price       decimal.Decimal `json:"price"`
}

func (r *CreateServiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Price.IsNegative() {
		return ierr.NewError("price must not be negative").
			WithHint("Service price must be zero or positive").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *CreateServiceRequest) ToService(ctx context.Context, now time.Time) *service.Service {
	return &service.Service{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SERVICE),
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		BaseModel:   types.NewBaseModel(ctx, now),
	}
}

type UpdateServiceRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=1024"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

func (r *UpdateServiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Price != nil && r.Price.IsNegative() {
		return ierr.NewError("price must not be negative").
			WithHint("Service price must be zero or positive").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type ServiceResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func NewServiceResponse(s *service.Service) *ServiceResponse {
	return &ServiceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type ListServicesResponse = types.ListResponse[*ServiceResponse]
