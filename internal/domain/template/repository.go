package template

import (
	"context"

	"github.com/packlane/packlane/internal/types"
)

// Repository defines the interface for package template persistence
type Repository interface {
	// Create persists a template together with its items
	Create(ctx context.Context, t *PackageTemplate) error

	// Get returns a template with its items loaded
	Get(ctx context.Context, id string) (*PackageTemplate, error)

	List(ctx context.Context, filter *types.TemplateFilter) ([]*PackageTemplate, error)
	Count(ctx context.Context, filter *types.TemplateFilter) (int, error)

	// Update mutates a template row and replaces its items.
	// Callers are responsible for the immutability-once-sold rule.
	Update(ctx context.Context, t *PackageTemplate) error

	// Archive marks a template archived so it can no longer be sold
	Archive(ctx context.Context, id string) error

	// Delete soft-deletes an unsold template
	Delete(ctx context.Context, id string) error

	// CountSoldPackages returns the number of client packages referencing
	// the template, deciding whether it is still mutable
	CountSoldPackages(ctx context.Context, templateID string) (int, error)
}
