package testutil

import (
	"context"
	"sync"

	"github.com/packlane/packlane/internal/domain/template"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// InMemoryTemplateStore implements template.Repository for tests. It needs
// a view of sold packages for CountSoldPackages; the package store is
// attached after construction.
type InMemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*template.PackageTemplate
	packages  *InMemoryPackageStore
}

var _ template.Repository = (*InMemoryTemplateStore)(nil)

func NewInMemoryTemplateStore(packages *InMemoryPackageStore) *InMemoryTemplateStore {
	return &InMemoryTemplateStore{
		templates: make(map[string]*template.PackageTemplate),
		packages:  packages,
	}
}

func copyTemplate(t *template.PackageTemplate) *template.PackageTemplate {
	copied := *t
	copied.Items = make([]*template.TemplateItem, 0, len(t.Items))
	for _, item := range t.Items {
		itemCopy := *item
		copied.Items = append(copied.Items, &itemCopy)
	}
	return &copied
}

func (s *InMemoryTemplateStore) Create(ctx context.Context, t *template.PackageTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return ierr.NewError("template already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.templates[t.ID] = copyTemplate(t)
	return nil
}

func (s *InMemoryTemplateStore) Get(ctx context.Context, id string) (*template.PackageTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok || t.TenantID != types.GetTenantID(ctx) || t.Status == types.StatusDeleted {
		return nil, ierr.NewError("package template not found").
			WithHint("The referenced package template does not exist").
			WithReportableDetails(map[string]any{
				"template_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyTemplate(t), nil
}

func (s *InMemoryTemplateStore) List(ctx context.Context, filter *types.TemplateFilter) ([]*template.PackageTemplate, error) {
	if filter == nil {
		filter = types.NewDefaultTemplateFilter()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*template.PackageTemplate, 0)
	for _, t := range s.templates {
		if t.TenantID != types.GetTenantID(ctx) || t.Status != filter.GetStatus() {
			continue
		}
		if filter.ServiceID != nil {
			found := false
			for _, item := range t.Items {
				if item.ServiceID == *filter.ServiceID {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		result = append(result, copyTemplate(t))
	}
	return result, nil
}

func (s *InMemoryTemplateStore) Count(ctx context.Context, filter *types.TemplateFilter) (int, error) {
	templates, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(templates), nil
}

func (s *InMemoryTemplateStore) Update(ctx context.Context, t *template.PackageTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.templates[t.ID]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status != types.StatusPublished {
		return ierr.NewError("package template not found").
			Mark(ierr.ErrNotFound)
	}
	s.templates[t.ID] = copyTemplate(t)
	return nil
}

func (s *InMemoryTemplateStore) Archive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.templates[id]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status != types.StatusPublished {
		return ierr.NewError("package template not found").
			Mark(ierr.ErrNotFound)
	}
	stored.Status = types.StatusArchived
	return nil
}

func (s *InMemoryTemplateStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.templates[id]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status == types.StatusDeleted {
		return ierr.NewError("package template not found").
			Mark(ierr.ErrNotFound)
	}
	stored.Status = types.StatusDeleted
	return nil
}

func (s *InMemoryTemplateStore) CountSoldPackages(ctx context.Context, templateID string) (int, error) {
	if s.packages == nil {
		return 0, nil
	}
	s.packages.mu.RLock()
	defer s.packages.mu.RUnlock()

	count := 0
	for _, pkg := range s.packages.packages {
		if pkg.TenantID != types.GetTenantID(ctx) || pkg.Status != types.StatusPublished {
			continue
		}
		if pkg.TemplateID != nil && *pkg.TemplateID == templateID {
			count++
		}
	}
	return count, nil
}

