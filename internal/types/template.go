package types

import ierr "github.com/packlane/packlane/internal/errors"

// ValidityAnchor controls when a package's expiry window starts counting
type ValidityAnchor string

const (
	// ValidityAnchorPurchase starts the validity window at purchase time
	ValidityAnchorPurchase ValidityAnchor = "PURCHASE"
	// ValidityAnchorActivation defers the window until the first usage
	ValidityAnchorActivation ValidityAnchor = "ACTIVATION"
)

func (a ValidityAnchor) Validate() error {
	switch a {
	case ValidityAnchorPurchase, ValidityAnchorActivation:
		return nil
	default:
		return ierr.NewError("invalid validity anchor").
			WithHint("Validity anchor must be PURCHASE or ACTIVATION").
			WithReportableDetails(map[string]any{
				"anchor": a,
			}).
			Mark(ierr.ErrValidation)
	}
}

// TemplateFilter represents filters for listing package templates
type TemplateFilter struct {
	*QueryFilter
	ServiceID *string `json:"service_id,omitempty" form:"service_id"`
}

func NewDefaultTemplateFilter() *TemplateFilter {
	return &TemplateFilter{QueryFilter: NewDefaultQueryFilter()}
}
