package service

import (
	"context"

	"github.com/samber/lo"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/cache"
	"github.com/packlane/packlane/internal/domain/client"
	"github.com/packlane/packlane/internal/types"
)

type ClientService interface {
	CreateClient(ctx context.Context, req *dto.CreateClientRequest) (*dto.ClientResponse, error)
	GetClient(ctx context.Context, id string) (*dto.ClientResponse, error)
	ListClients(ctx context.Context, filter *types.QueryFilter) (*dto.ListClientsResponse, error)
	UpdateClient(ctx context.Context, id string, req *dto.UpdateClientRequest) (*dto.ClientResponse, error)
	DeleteClient(ctx context.Context, id string) error
}

type clientService struct {
	ServiceParams
}

func NewClientService(params ServiceParams) ClientService {
	return &clientService{ServiceParams: params}
}

func (s *clientService) CreateClient(ctx context.Context, req *dto.CreateClientRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c := req.ToClient(ctx, s.Clock.Now())
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.ClientRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return dto.NewClientResponse(c), nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*dto.ClientResponse, error) {
	key := cache.GenerateKey(cache.PrefixClient, types.GetTenantID(ctx), id)
	if cached, found := s.Cache.Get(ctx, key); found {
		if c, ok := cached.(*client.Client); ok {
			return dto.NewClientResponse(c), nil
		}
	}

	c, err := s.ClientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, key, c, catalogCacheExpiry)
	return dto.NewClientResponse(c), nil
}

func (s *clientService) ListClients(ctx context.Context, filter *types.QueryFilter) (*dto.ListClientsResponse, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	clients, err := s.ClientRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(clients, func(c *client.Client, _ int) *dto.ClientResponse {
		return dto.NewClientResponse(c)
	})
	resp := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *clientService) UpdateClient(ctx context.Context, id string, req *dto.UpdateClientRequest) (*dto.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.ClientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	c.UpdatedAt = s.Clock.Now()
	c.UpdatedBy = types.GetUserID(ctx)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.ClientRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixClient, types.GetTenantID(ctx), id))
	return dto.NewClientResponse(c), nil
}

func (s *clientService) DeleteClient(ctx context.Context, id string) error {
	if err := s.ClientRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixClient, types.GetTenantID(ctx), id))
	return nil
}
