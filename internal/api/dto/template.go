package dto

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/domain/template"
	"github.com/packlane/packlane/internal/types"
	"github.com/packlane/packlane/internal/validator"
)

type TemplateItemRequest struct {
	ServiceID string           `json:"service_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateTemplateRequest struct {
	Name            string                 `json:"name" validate:"required,max=255"`
	Description     string                 `json:"description,omitempty" validate:"max=1024"`
	Price           decimal.Decimal        `json:"price"`
	ValidityDays    int                    `json:"validity_days" validate:"min=0"`
	ValidityAnchor  types.ValidityAnchor   `json:"validity_anchor,omitempty"`
	AllowPartialUse bool                   `json:"allow_partial_use"`
	Transferable    bool                   `json:"transferable"`
	Items           []*TemplateItemRequest `json:"items" validate:"required,min=1,dive,required"`
}

func (r *CreateTemplateRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	// Full domain validation runs on the built template so the rules live
	// in one place.
	return nil
}

func (r *CreateTemplateRequest) ToTemplate(ctx context.Context, now time.Time) *template.PackageTemplate {
	anchor := r.ValidityAnchor
	if r.ValidityDays > 0 && anchor == "" {
		anchor = types.ValidityAnchorPurchase
	}
	t := &template.PackageTemplate{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEMPLATE),
		Name:            r.Name,
		Description:     r.Description,
		Price:           r.Price,
		ValidityDays:    r.ValidityDays,
		ValidityAnchor:  anchor,
		AllowPartialUse: r.AllowPartialUse,
		Transferable:    r.Transferable,
		Version:         1,
		BaseModel:       types.NewBaseModel(ctx, now),
	}
	t.Items = lo.Map(r.Items, func(item *TemplateItemRequest, _ int) *template.TemplateItem {
		return &template.TemplateItem{
			ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEMPLATE_ITEM),
			TemplateID: t.ID,
			ServiceID:  item.ServiceID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			BaseModel:  types.NewBaseModel(ctx, now),
		}
	})
	return t
}

// UpdateTemplateRequest carries a full replacement definition. Whether the
// update happens in place or produces a new version depends on whether the
// template has been sold.
type UpdateTemplateRequest struct {
	CreateTemplateRequest
}

type TemplateItemResponse struct {
	ID        string           `json:"id"`
	ServiceID string           `json:"service_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type TemplateResponse struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description,omitempty"`
	Price           decimal.Decimal         `json:"price"`
	ValidityDays    int                     `json:"validity_days"`
	ValidityAnchor  types.ValidityAnchor    `json:"validity_anchor,omitempty"`
	AllowPartialUse bool                    `json:"allow_partial_use"`
	Transferable    bool                    `json:"transferable"`
	Version         int                     `json:"version"`
	Status          types.Status            `json:"status"`
	Items           []*TemplateItemResponse `json:"items"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func NewTemplateResponse(t *template.PackageTemplate) *TemplateResponse {
	return &TemplateResponse{
		ID:              t.ID,
		Name:            t.Name,
		Description:     t.Description,
		Price:           t.Price,
		ValidityDays:    t.ValidityDays,
		ValidityAnchor:  t.ValidityAnchor,
		AllowPartialUse: t.AllowPartialUse,
		Transferable:    t.Transferable,
		Version:         t.Version,
		Status:          t.Status,
		Items: lo.Map(t.Items, func(item *template.TemplateItem, _ int) *TemplateItemResponse {
			return &TemplateItemResponse{
				ID:        item.ID,
				ServiceID: item.ServiceID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			}
		}),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type ListTemplatesResponse = types.ListResponse[*TemplateResponse]
