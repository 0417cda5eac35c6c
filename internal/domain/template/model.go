package template

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// PackageTemplate is a sellable blueprint: a named bundle of services with
// quantities, a price and a validity rule. Once a template has been sold it
// becomes immutable; edits produce a new version row and archive the old one.
type PackageTemplate struct {
	ID              string               `db:"id" json:"id"`
	Name            string               `db:"name" json:"name"`
	Description     string               `db:"description" json:"description,omitempty"`
	Price           decimal.Decimal      `db:"price" json:"price"`
	ValidityDays    int                  `db:"validity_days" json:"validity_days"`
	ValidityAnchor  types.ValidityAnchor `db:"validity_anchor" json:"validity_anchor"`
	AllowPartialUse bool                 `db:"allow_partial_use" json:"allow_partial_use"`
	Transferable    bool                 `db:"transferable" json:"transferable"`
	Version         int                  `db:"version" json:"version"`
	Items           []*TemplateItem      `db:"-" json:"items"`
	types.BaseModel
}

// TemplateItem grants `Quantity` credits for a service when the template is
// sold. UnitPrice overrides the service's current catalog price when set.
type TemplateItem struct {
	ID         string           `db:"id" json:"id"`
	TemplateID string           `db:"template_id" json:"template_id"`
	ServiceID  string           `db:"service_id" json:"service_id"`
	Quantity   int              `db:"quantity" json:"quantity"`
	UnitPrice  *decimal.Decimal `db:"unit_price" json:"unit_price,omitempty"`
	types.BaseModel
}

func (t *PackageTemplate) TableName() string {
	return "package_templates"
}

func (i *TemplateItem) TableName() string {
	return "package_template_items"
}

func (t *PackageTemplate) Validate() error {
	if t.Name == "" {
		return ierr.NewError("template name is required").
			WithHint("Please provide a name for the package template").
			Mark(ierr.ErrValidation)
	}
	if len(t.Items) == 0 {
		return ierr.NewError("template has no items").
			WithHint("A package template must grant credits for at least one service").
			Mark(ierr.ErrValidation)
	}
	if t.Price.IsNegative() {
		return ierr.NewError("template price cannot be negative").
			WithHint("Template price must be zero or positive").
			WithReportableDetails(map[string]any{
				"price": t.Price,
			}).
			Mark(ierr.ErrValidation)
	}
	if t.ValidityDays < 0 {
		return ierr.NewError("validity days cannot be negative").
			WithHint("Validity days must be zero (no expiry) or positive").
			WithReportableDetails(map[string]any{
				"validity_days": t.ValidityDays,
			}).
			Mark(ierr.ErrValidation)
	}
	if t.ValidityDays > 0 {
		if err := t.ValidityAnchor.Validate(); err != nil {
			return err
		}
	}
	for _, item := range t.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (i *TemplateItem) Validate() error {
	if i.ServiceID == "" {
		return ierr.NewError("template item service is required").
			WithHint("Every template item must reference a service").
			Mark(ierr.ErrValidation)
	}
	if i.Quantity < 1 {
		return ierr.NewError("template item quantity must be at least 1").
			WithHint("Template item quantities must be positive").
			WithReportableDetails(map[string]any{
				"service_id": i.ServiceID,
				"quantity":   i.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if i.UnitPrice != nil && i.UnitPrice.IsNegative() {
		return ierr.NewError("template item unit price cannot be negative").
			WithHint("Unit price overrides must be zero or positive").
			WithReportableDetails(map[string]any{
				"service_id": i.ServiceID,
				"unit_price": i.UnitPrice,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// HasExpiry reports whether sold packages carry an expiry window
func (t *PackageTemplate) HasExpiry() bool {
	return t.ValidityDays > 0
}

// NewVersion returns a copy of the template with a fresh id, bumped version
// and copies of all items. The receiver is left untouched.
func (t *PackageTemplate) NewVersion(ctx context.Context, now time.Time) *PackageTemplate {
	next := *t
	next.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEMPLATE)
	next.Version = t.Version + 1
	next.BaseModel = types.NewBaseModel(ctx, now)
	next.Items = make([]*TemplateItem, 0, len(t.Items))
	for _, item := range t.Items {
		copied := *item
		copied.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEMPLATE_ITEM)
		copied.TemplateID = next.ID
		copied.BaseModel = types.NewBaseModel(ctx, now)
		next.Items = append(next.Items, &copied)
	}
	return &next
}
