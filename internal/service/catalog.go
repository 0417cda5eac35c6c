package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/cache"
	"github.com/packlane/packlane/internal/domain/service"
	"github.com/packlane/packlane/internal/types"
)

const catalogCacheExpiry = 5 * time.Minute

// CatalogService is the minimal service-catalog CRUD the ledger needs for
// resolving sale items and reporting names.
type CatalogService interface {
	CreateService(ctx context.Context, req *dto.CreateServiceRequest) (*dto.ServiceResponse, error)
	GetService(ctx context.Context, id string) (*dto.ServiceResponse, error)
	ListServices(ctx context.Context, filter *types.QueryFilter) (*dto.ListServicesResponse, error)
	UpdateService(ctx context.Context, id string, req *dto.UpdateServiceRequest) (*dto.ServiceResponse, error)
	DeleteService(ctx context.Context, id string) error
}

type catalogService struct {
	ServiceParams
}

func NewCatalogService(params ServiceParams) CatalogService {
	return &catalogService{ServiceParams: params}
}

func (s *catalogService) CreateService(ctx context.Context, req *dto.CreateServiceRequest) (*dto.ServiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc := req.ToService(ctx, s.Clock.Now())
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	if err := s.ServiceRepo.Create(ctx, svc); err != nil {
		return nil, err
	}
	return dto.NewServiceResponse(svc), nil
}

func (s *catalogService) GetService(ctx context.Context, id string) (*dto.ServiceResponse, error) {
	key := cache.GenerateKey(cache.PrefixService, types.GetTenantID(ctx), id)
	if cached, found := s.Cache.Get(ctx, key); found {
		if svc, ok := cached.(*service.Service); ok {
			return dto.NewServiceResponse(svc), nil
		}
	}

	svc, err := s.ServiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, key, svc, catalogCacheExpiry)
	return dto.NewServiceResponse(svc), nil
}

func (s *catalogService) ListServices(ctx context.Context, filter *types.QueryFilter) (*dto.ListServicesResponse, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	services, err := s.ServiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(services, func(svc *service.Service, _ int) *dto.ServiceResponse {
		return dto.NewServiceResponse(svc)
	})
	resp := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *catalogService) UpdateService(ctx context.Context, id string, req *dto.UpdateServiceRequest) (*dto.ServiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc, err := s.ServiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.Description != nil {
		svc.Description = *req.Description
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	svc.UpdatedAt = s.Clock.Now()
	svc.UpdatedBy = types.GetUserID(ctx)

	if err := svc.Validate(); err != nil {
		return nil, err
	}
	if err := s.ServiceRepo.Update(ctx, svc); err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixService, types.GetTenantID(ctx), id))
	return dto.NewServiceResponse(svc), nil
}

func (s *catalogService) DeleteService(ctx context.Context, id string) error {
	if err := s.ServiceRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixService, types.GetTenantID(ctx), id))
	return nil
}
