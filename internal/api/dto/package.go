package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
	"github.com/packlane/packlane/internal/validator"
)

// SaleItemRequest defines one credit grant on a custom (template-less) sale
type SaleItemRequest struct {
	ServiceID string           `json:"service_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// SellPackageRequest sells a package to a client, either from a template
// or as a custom bundle. Exactly one of TemplateID or Items must be set.
type SellPackageRequest struct {
	ClientID   string  `json:"client_id" validate:"required"`
	TemplateID *string `json:"template_id,omitempty"`

	// Custom-sale fields, ignored on the template path
	Name           string               `json:"name,omitempty" validate:"max=255"`
	Items          []*SaleItemRequest   `json:"items,omitempty" validate:"omitempty,min=1,dive,required"`
	ValidityDays   int                  `json:"validity_days,omitempty" validate:"min=0"`
	ValidityAnchor types.ValidityAnchor `json:"validity_anchor,omitempty"`
	Transferable   *bool                `json:"transferable,omitempty"`

	// SalePrice overrides the template price or the computed item total
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`

	// Explicit window overrides. ActivationDate pins activation-anchored
	// packages that would otherwise wait for their first usage.
	ActivationDate *time.Time `json:"activation_date,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`

	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	Installments   int                 `json:"installments,omitempty"`
	PaymentMethod  types.PaymentMethod `json:"payment_method,omitempty"`
	InitialPayment *decimal.Decimal    `json:"initial_payment,omitempty"`
	Notes          string              `json:"notes,omitempty" validate:"max=1024"`
}

func (r *SellPackageRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.TemplateID == nil && len(r.Items) == 0 {
		return ierr.NewError("sale needs a template or items").
			WithHint("Provide a template_id or a custom item list").
			Mark(ierr.ErrValidation)
	}
	if r.TemplateID != nil && len(r.Items) > 0 {
		return ierr.NewError("sale cannot mix template and custom items").
			WithHint("Provide either a template_id or a custom item list, not both").
			Mark(ierr.ErrValidation)
	}
	if r.TemplateID == nil && r.Name == "" {
		return ierr.NewError("custom sale needs a package name").
			WithHint("Provide a name for the custom package").
			Mark(ierr.ErrValidation)
	}
	if r.DiscountAmount.IsNegative() {
		return ierr.NewError("discount cannot be negative").
			WithHint("Discount amount must be zero or positive").
			Mark(ierr.ErrValidation)
	}
	if r.SalePrice != nil && r.SalePrice.IsNegative() {
		return ierr.NewError("sale price cannot be negative").
			WithHint("Sale price must be zero or positive").
			Mark(ierr.ErrValidation)
	}
	if r.ActivationDate != nil && r.ExpiresAt != nil && !r.ExpiresAt.After(*r.ActivationDate) {
		return ierr.NewError("expiry must be after activation").
			WithHint("The explicit expiry date must fall after the activation date").
			Mark(ierr.ErrValidation)
	}
	if r.InitialPayment != nil && r.InitialPayment.IsNegative() {
		return ierr.NewError("initial payment cannot be negative").
			WithHint("Initial payment must be zero or positive").
			Mark(ierr.ErrValidation)
	}
	if r.Installments != 0 &&
		(r.Installments < types.MinInstallments || r.Installments > types.MaxInstallments) {
		return ierr.NewError("invalid installment count").
			WithHint("Installments must be between 1 and 24").
			WithReportableDetails(map[string]any{
				"installments": r.Installments,
			}).
			Mark(ierr.ErrValidation)
	}
	for _, item := range r.Items {
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return ierr.NewError("item unit price cannot be negative").
				WithHint("Unit price overrides must be zero or positive").
				WithReportableDetails(map[string]any{
					"service_id": item.ServiceID,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

type PackageItemResponse struct {
	ID                string          `json:"id"`
	ServiceID         string          `json:"service_id"`
	Quantity          int             `json:"quantity"`
	UsedQuantity      int             `json:"used_quantity"`
	CancelledQuantity int             `json:"cancelled_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

func NewPackageItemResponse(i *clientpackage.PackageItem) *PackageItemResponse {
	return &PackageItemResponse{
		ID:                i.ID,
		ServiceID:         i.ServiceID,
		Quantity:          i.Quantity,
		UsedQuantity:      i.UsedQuantity,
		CancelledQuantity: i.CancelledQuantity,
		AvailableQuantity: i.AvailableQuantity(),
		UnitPrice:         i.UnitPrice,
	}
}

type PackageResponse struct {
	ID             string                 `json:"id"`
	ClientID       string                 `json:"client_id"`
	TemplateID     *string                `json:"template_id,omitempty"`
	Name           string                 `json:"name"`
	OriginalPrice  decimal.Decimal        `json:"original_price"`
	SalePrice      decimal.Decimal        `json:"sale_price"`
	DiscountAmount decimal.Decimal        `json:"discount_amount"`
	DueAmount      decimal.Decimal        `json:"due_amount"`
	PaidAmount     decimal.Decimal        `json:"paid_amount"`
	PaymentMethod  types.PaymentMethod    `json:"payment_method,omitempty"`
	Installments   int                    `json:"installments"`
	PackageStatus  types.PackageStatus    `json:"package_status"`
	Transferable   bool                   `json:"transferable"`
	PurchaseDate   time.Time              `json:"purchase_date"`
	ActivationDate *time.Time             `json:"activation_date,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	CancelledAt    *time.Time             `json:"cancelled_at,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	Items          []*PackageItemResponse `json:"items"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`

	// FinanceSynced is set on sales that took an initial payment: false
	// means the income entry is queued for the reconciliation job.
	FinanceSynced *bool `json:"finance_synced,omitempty"`
}

func NewPackageResponse(p *clientpackage.ClientPackage) *PackageResponse {
	return &PackageResponse{
		ID:             p.ID,
		ClientID:       p.ClientID,
		TemplateID:     p.TemplateID,
		Name:           p.Name,
		OriginalPrice:  p.OriginalPrice,
		SalePrice:      p.SalePrice,
		DiscountAmount: p.DiscountAmount,
		DueAmount:      p.DueAmount(),
		PaidAmount:     p.PaidAmount,
		PaymentMethod:  p.PaymentMethod,
		Installments:   p.Installments,
		PackageStatus:  p.PackageStatus,
		Transferable:   p.Transferable,
		PurchaseDate:   p.PurchaseDate,
		ActivationDate: p.ActivationDate,
		ExpiresAt:      p.ExpiresAt,
		CompletedAt:    p.CompletedAt,
		CancelledAt:    p.CancelledAt,
		Notes:          p.Notes,
		Items: lo.Map(p.Items, func(i *clientpackage.PackageItem, _ int) *PackageItemResponse {
			return NewPackageItemResponse(i)
		}),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type ListPackagesResponse = types.ListResponse[*PackageResponse]

type CancelPackageRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1024"`
}

func (r *CancelPackageRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type TransferPackageRequest struct {
	ClientID string `json:"client_id" validate:"required"`
}

func (r *TransferPackageRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ExpireOverdueResponse reports how many packages a sweep run expired
type ExpireOverdueResponse struct {
	Expired int `json:"expired"`
}
