package clientpackage

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// ClientPackage is the ledger's root aggregate: a sold bundle of prepaid
// service credits with money-value and payment-completion tracking. It is
// created atomically with its items at sale time; afterwards only the
// Payment Tracker (paid amount), Lifecycle Manager (status, dates) and
// Credit Ledger (item counters) mutate it.
type ClientPackage struct {
	ID             string              `db:"id" json:"id"`
	ClientID       string              `db:"client_id" json:"client_id"`
	TemplateID     *string             `db:"template_id" json:"template_id,omitempty"`
	Name           string              `db:"name" json:"name"`
	OriginalPrice  decimal.Decimal     `db:"original_price" json:"original_price"`
	SalePrice      decimal.Decimal     `db:"sale_price" json:"sale_price"`
	DiscountAmount decimal.Decimal     `db:"discount_amount" json:"discount_amount"`
	PaidAmount     decimal.Decimal     `db:"paid_amount" json:"paid_amount"`
	PaymentMethod  types.PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	Installments   int                 `db:"installments" json:"installments"`
	PackageStatus  types.PackageStatus `db:"package_status" json:"package_status"`
	Transferable   bool                `db:"transferable" json:"transferable"`
	PurchaseDate   time.Time           `db:"purchase_date" json:"purchase_date"`
	ActivationDate *time.Time          `db:"activation_date" json:"activation_date,omitempty"`
	ExpiresAt      *time.Time          `db:"expires_at" json:"expires_at,omitempty"`
	CompletedAt    *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	ValidityDays   int                  `db:"validity_days" json:"validity_days"`
	ValidityAnchor types.ValidityAnchor `db:"validity_anchor" json:"validity_anchor,omitempty"`
	Notes          string               `db:"notes" json:"notes,omitempty"`
	Items          []*PackageItem       `db:"-" json:"items,omitempty"`
	types.BaseModel
}

// PackageItem is the per-service credit bucket within a sold package.
// Invariant: 0 ≤ used_quantity + cancelled_quantity ≤ quantity at all times.
// AvailableQuantity is derived, never stored. The version column implements
// the optimistic lock serializing counter mutations.
type PackageItem struct {
	ID                string          `db:"id" json:"id"`
	PackageID         string          `db:"package_id" json:"package_id"`
	ServiceID         string          `db:"service_id" json:"service_id"`
	Quantity          int             `db:"quantity" json:"quantity"`
	UsedQuantity      int             `db:"used_quantity" json:"used_quantity"`
	CancelledQuantity int             `db:"cancelled_quantity" json:"cancelled_quantity"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	Version           int             `db:"version" json:"version"`
	types.BaseModel
}

// UsageRecord is an immutable debit against a package item; the only
// allowed mutation is the USED → CANCELLED transition.
type UsageRecord struct {
	ID            string            `db:"id" json:"id"`
	ItemID        string            `db:"item_id" json:"item_id"`
	PackageID     string            `db:"package_id" json:"package_id"`
	ServiceID     string            `db:"service_id" json:"service_id"`
	Quantity      int               `db:"quantity" json:"quantity"`
	UsedAt        time.Time         `db:"used_at" json:"used_at"`
	AppointmentID *string           `db:"appointment_id" json:"appointment_id,omitempty"`
	ProviderID    *string           `db:"provider_id" json:"provider_id,omitempty"`
	UsageStatus   types.UsageStatus `db:"usage_status" json:"usage_status"`
	CancelReason  string            `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy   string            `db:"cancelled_by" json:"cancelled_by,omitempty"`
	types.BaseModel
}

// PackagePayment is the audit row behind every paid-amount increment
type PackagePayment struct {
	ID            string              `db:"id" json:"id"`
	PackageID     string              `db:"package_id" json:"package_id"`
	Amount        decimal.Decimal     `db:"amount" json:"amount"`
	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	ReceiptNumber string              `db:"receipt_number" json:"receipt_number"`
	PaidAt        time.Time           `db:"paid_at" json:"paid_at"`
	Notes         string              `db:"notes" json:"notes,omitempty"`
	types.BaseModel
}

func (p *ClientPackage) TableName() string {
	return "client_packages"
}

func (i *PackageItem) TableName() string {
	return "package_items"
}

func (u *UsageRecord) TableName() string {
	return "usage_records"
}

func (pp *PackagePayment) TableName() string {
	return "package_payments"
}

// DueAmount is the amount the client owes in total for the package
func (p *ClientPackage) DueAmount() decimal.Decimal {
	return p.SalePrice.Sub(p.DiscountAmount)
}

// IsFullyPaid reports whether payments cover the due amount
func (p *ClientPackage) IsFullyPaid() bool {
	return p.PaidAmount.GreaterThanOrEqual(p.DueAmount())
}

// IsExpiredAt reports whether the package's expiry window has passed
func (p *ClientPackage) IsExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// AvailableQuantity is the derived number of credits still consumable
func (i *PackageItem) AvailableQuantity() int {
	return i.Quantity - i.UsedQuantity - i.CancelledQuantity
}

// IsExhausted reports whether the item's quota is fully consumed or revoked
func (i *PackageItem) IsExhausted() bool {
	return i.UsedQuantity+i.CancelledQuantity >= i.Quantity
}

// Validate checks the item counter invariant
func (i *PackageItem) Validate() error {
	if i.Quantity < 1 {
		return ierr.NewError("item quantity must be at least 1").
			WithHint("Package items must grant at least one credit").
			WithReportableDetails(map[string]any{
				"item_id":  i.ID,
				"quantity": i.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if i.UsedQuantity < 0 || i.CancelledQuantity < 0 ||
		i.UsedQuantity+i.CancelledQuantity > i.Quantity {
		return ierr.NewError("item counters out of range").
			WithHint("Used and cancelled quantities must stay within the granted quantity").
			WithReportableDetails(map[string]any{
				"item_id":            i.ID,
				"quantity":           i.Quantity,
				"used_quantity":      i.UsedQuantity,
				"cancelled_quantity": i.CancelledQuantity,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsCancelled reports whether the usage record has been cancelled
func (u *UsageRecord) IsCancelled() bool {
	return u.UsageStatus == types.UsageStatusCancelled
}

// Value is the monetary value of the usage at the item's unit price
func (u *UsageRecord) Value(unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(u.Quantity)))
}
