package service

import (
	"context"

	"github.com/samber/lo"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/cache"
	"github.com/packlane/packlane/internal/domain/template"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// TemplateService manages the sellable package catalog. A template that
// has been sold is immutable: updates produce a new version and archive
// the old one so existing packages keep pointing at the definition they
// were sold under.
type TemplateService interface {
	CreateTemplate(ctx context.Context, req *dto.CreateTemplateRequest) (*dto.TemplateResponse, error)
	GetTemplate(ctx context.Context, id string) (*dto.TemplateResponse, error)
	ListTemplates(ctx context.Context, filter *types.TemplateFilter) (*dto.ListTemplatesResponse, error)
	UpdateTemplate(ctx context.Context, id string, req *dto.UpdateTemplateRequest) (*dto.TemplateResponse, error)
	ArchiveTemplate(ctx context.Context, id string) error
	DeleteTemplate(ctx context.Context, id string) error
}

type templateService struct {
	ServiceParams
}

func NewTemplateService(params ServiceParams) TemplateService {
	return &templateService{ServiceParams: params}
}

func (s *templateService) CreateTemplate(ctx context.Context, req *dto.CreateTemplateRequest) (*dto.TemplateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := req.ToTemplate(ctx, s.Clock.Now())
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolveServices(ctx, t.Items); err != nil {
		return nil, err
	}
	if err := s.TemplateRepo.Create(ctx, t); err != nil {
		return nil, err
	}
	return dto.NewTemplateResponse(t), nil
}

// resolveServices verifies every referenced service exists in the catalog
func (s *templateService) resolveServices(ctx context.Context, items []*template.TemplateItem) error {
	for _, item := range items {
		if _, err := s.ServiceRepo.Get(ctx, item.ServiceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *templateService) GetTemplate(ctx context.Context, id string) (*dto.TemplateResponse, error) {
	key := cache.GenerateKey(cache.PrefixTemplate, types.GetTenantID(ctx), id)
	if cached, found := s.Cache.Get(ctx, key); found {
		if t, ok := cached.(*template.PackageTemplate); ok {
			return dto.NewTemplateResponse(t), nil
		}
	}

	t, err := s.TemplateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, key, t, catalogCacheExpiry)
	return dto.NewTemplateResponse(t), nil
}

func (s *templateService) ListTemplates(ctx context.Context, filter *types.TemplateFilter) (*dto.ListTemplatesResponse, error) {
	if filter == nil {
		filter = types.NewDefaultTemplateFilter()
	}

	templates, err := s.TemplateRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.TemplateRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(templates, func(t *template.PackageTemplate, _ int) *dto.TemplateResponse {
		return dto.NewTemplateResponse(t)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *templateService) UpdateTemplate(ctx context.Context, id string, req *dto.UpdateTemplateRequest) (*dto.TemplateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.TemplateRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := req.ToTemplate(ctx, s.Clock.Now())
	updated.ID = current.ID
	updated.Version = current.Version
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolveServices(ctx, updated.Items); err != nil {
		return nil, err
	}

	sold, err := s.TemplateRepo.CountSoldPackages(ctx, id)
	if err != nil {
		return nil, err
	}

	var result *template.PackageTemplate
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if sold == 0 {
			// Unsold templates are edited in place
			for _, item := range updated.Items {
				item.TemplateID = current.ID
			}
			if err := s.TemplateRepo.Update(ctx, updated); err != nil {
				return err
			}
			result = updated
			return nil
		}

		// Sold templates stay frozen; the edit becomes a new version
		next := updated.NewVersion(ctx, s.Clock.Now())
		if err := s.TemplateRepo.Create(ctx, next); err != nil {
			return err
		}
		if err := s.TemplateRepo.Archive(ctx, current.ID); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixTemplate, types.GetTenantID(ctx), id))
	return dto.NewTemplateResponse(result), nil
}

func (s *templateService) ArchiveTemplate(ctx context.Context, id string) error {
	if _, err := s.TemplateRepo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.TemplateRepo.Archive(ctx, id); err != nil {
		return err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixTemplate, types.GetTenantID(ctx), id))
	return nil
}

func (s *templateService) DeleteTemplate(ctx context.Context, id string) error {
	sold, err := s.TemplateRepo.CountSoldPackages(ctx, id)
	if err != nil {
		return err
	}
	if sold > 0 {
		return ierr.NewError("template has sold packages").
			WithHint("Templates with sold packages can only be archived").
			WithReportableDetails(map[string]any{
				"template_id":   id,
				"sold_packages": sold,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.TemplateRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixTemplate, types.GetTenantID(ctx), id))
	return nil
}
