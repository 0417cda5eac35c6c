package dto

import (
	"time"

	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
	"github.com/packlane/packlane/internal/validator"
)

type RecordUsageRequest struct {
	ServiceID     string  `json:"service_id" validate:"required"`
	Quantity      int     `json:"quantity,omitempty"`
	AppointmentID *string `json:"appointment_id,omitempty"`
	ProviderID    *string `json:"provider_id,omitempty"`
}

func (r *RecordUsageRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Quantity < 0 {
		return ierr.NewError("usage quantity cannot be negative").
			WithHint("Usage quantity must be at least 1").
			WithReportableDetails(map[string]any{
				"quantity": r.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// EffectiveQuantity defaults an omitted quantity to a single credit
func (r *RecordUsageRequest) EffectiveQuantity() int {
	if r.Quantity == 0 {
		return 1
	}
	return r.Quantity
}

type CancelUsageRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=1024"`
}

func (r *CancelUsageRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type UsageResponse struct {
	ID            string            `json:"id"`
	ItemID        string            `json:"item_id"`
	PackageID     string            `json:"package_id"`
	ServiceID     string            `json:"service_id"`
	Quantity      int               `json:"quantity"`
	UsedAt        time.Time         `json:"used_at"`
	AppointmentID *string           `json:"appointment_id,omitempty"`
	ProviderID    *string           `json:"provider_id,omitempty"`
	UsageStatus   types.UsageStatus `json:"usage_status"`
	CancelReason  string            `json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`

	// Item and package state after the mutation
	RemainingQuantity int                 `json:"remaining_quantity"`
	PackageStatus     types.PackageStatus `json:"package_status"`
}

func NewUsageResponse(u *clientpackage.UsageRecord, item *clientpackage.PackageItem, pkg *clientpackage.ClientPackage) *UsageResponse {
	resp := &UsageResponse{
		ID:            u.ID,
		ItemID:        u.ItemID,
		PackageID:     u.PackageID,
		ServiceID:     u.ServiceID,
		Quantity:      u.Quantity,
		UsedAt:        u.UsedAt,
		AppointmentID: u.AppointmentID,
		ProviderID:    u.ProviderID,
		UsageStatus:   u.UsageStatus,
		CancelReason:  u.CancelReason,
		CancelledAt:   u.CancelledAt,
	}
	if item != nil {
		resp.RemainingQuantity = item.AvailableQuantity()
	}
	if pkg != nil {
		resp.PackageStatus = pkg.PackageStatus
	}
	return resp
}

type ListUsagesResponse = types.ListResponse[*UsageResponse]
