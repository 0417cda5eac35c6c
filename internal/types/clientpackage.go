package types

import (
	"time"

	ierr "github.com/packlane/packlane/internal/errors"
)

// PackageStatus is the state machine for a sold client package.
// PENDING_PAYMENT → ACTIVE → {COMPLETED, EXPIRED, CANCELLED};
// COMPLETED → ACTIVE (reopened by a cancelled usage);
// any non-terminal state → CANCELLED.
type PackageStatus string

const (
	PackageStatusPendingPayment PackageStatus = "PENDING_PAYMENT"
	PackageStatusActive         PackageStatus = "ACTIVE"
	PackageStatusCompleted      PackageStatus = "COMPLETED"
	PackageStatusExpired        PackageStatus = "EXPIRED"
	PackageStatusCancelled      PackageStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed except
// the COMPLETED → ACTIVE reopen.
func (s PackageStatus) IsTerminal() bool {
	switch s {
	case PackageStatusCompleted, PackageStatusExpired, PackageStatusCancelled:
		return true
	default:
		return false
	}
}

func (s PackageStatus) Validate() error {
	switch s {
	case PackageStatusPendingPayment, PackageStatusActive,
		PackageStatusCompleted, PackageStatusExpired, PackageStatusCancelled:
		return nil
	default:
		return ierr.NewError("invalid package status").
			WithHint("Unknown package status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
}

// UsageStatus is the state of a usage record
type UsageStatus string

const (
	UsageStatusUsed      UsageStatus = "USED"
	UsageStatusCancelled UsageStatus = "CANCELLED"
)

// PaymentMethod is the payment instrument reported by the caller.
// The core does not talk to gateways; the method is recorded verbatim
// and forwarded to the finance ledger sink.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

const (
	// MinInstallments and MaxInstallments bound the installment plan on a sale
	MinInstallments = 1
	MaxInstallments = 24
)

// PackageFilter represents filters for listing client packages
type PackageFilter struct {
	*QueryFilter
	ClientID       *string        `json:"client_id,omitempty" form:"client_id"`
	TemplateID     *string        `json:"template_id,omitempty" form:"template_id"`
	PackageStatus  *PackageStatus `json:"package_status,omitempty" form:"package_status"`
	ExpiresBefore  *time.Time     `json:"expires_before,omitempty" form:"expires_before"`
	PurchasedAfter *time.Time     `json:"purchased_after,omitempty" form:"purchased_after"`
}

func NewDefaultPackageFilter() *PackageFilter {
	return &PackageFilter{QueryFilter: NewDefaultQueryFilter()}
}

// UsageFilter represents filters for listing usage records
type UsageFilter struct {
	*QueryFilter
	PackageID   *string      `json:"package_id,omitempty" form:"package_id"`
	ItemID      *string      `json:"item_id,omitempty" form:"item_id"`
	UsageStatus *UsageStatus `json:"usage_status,omitempty" form:"usage_status"`
	UsedAfter   *time.Time   `json:"used_after,omitempty" form:"used_after"`
	UsedBefore  *time.Time   `json:"used_before,omitempty" form:"used_before"`
}

func NewDefaultUsageFilter() *UsageFilter {
	return &UsageFilter{QueryFilter: NewDefaultQueryFilter()}
}

// StatsPeriod is the reporting window for tenant statistics
type StatsPeriod struct {
	Start time.Time `json:"start" form:"start" binding:"required"`
	End   time.Time `json:"end" form:"end" binding:"required"`
}

func (p StatsPeriod) Validate() error {
	if !p.End.After(p.Start) {
		return ierr.NewError("invalid stats period").
			WithHint("Period end must be after period start").
			WithReportableDetails(map[string]any{
				"start": p.Start,
				"end":   p.End,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
