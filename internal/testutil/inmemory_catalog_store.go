package testutil

import (
	"context"
	"sync"

	"github.com/packlane/packlane/internal/domain/client"
	"github.com/packlane/packlane/internal/domain/service"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// InMemoryServiceStore implements service.Repository for tests
type InMemoryServiceStore struct {
	mu       sync.RWMutex
	services map[string]*service.Service
}

var _ service.Repository = (*InMemoryServiceStore)(nil)

func NewInMemoryServiceStore() *InMemoryServiceStore {
	return &InMemoryServiceStore{services: make(map[string]*service.Service)}
}

func (s *InMemoryServiceStore) Create(ctx context.Context, svc *service.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.services[svc.ID]; exists {
		return ierr.NewError("service already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	copied := *svc
	s.services[svc.ID] = &copied
	return nil
}

func (s *InMemoryServiceStore) Get(ctx context.Context, id string) (*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok || svc.TenantID != types.GetTenantID(ctx) || svc.Status == types.StatusDeleted {
		return nil, ierr.NewError("service not found").
			WithHint("The referenced service does not exist").
			WithReportableDetails(map[string]any{
				"service_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := *svc
	return &copied, nil
}

func (s *InMemoryServiceStore) List(ctx context.Context, filter *types.QueryFilter) ([]*service.Service, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*service.Service, 0)
	for _, svc := range s.services {
		if svc.TenantID != types.GetTenantID(ctx) || svc.Status != filter.GetStatus() {
			continue
		}
		copied := *svc
		result = append(result, &copied)
	}
	return result, nil
}

func (s *InMemoryServiceStore) Update(ctx context.Context, svc *service.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.services[svc.ID]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status == types.StatusDeleted {
		return ierr.NewError("service not found").
			Mark(ierr.ErrNotFound)
	}
	copied := *svc
	s.services[svc.ID] = &copied
	return nil
}

func (s *InMemoryServiceStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.services[id]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status == types.StatusDeleted {
		return ierr.NewError("service not found").
			Mark(ierr.ErrNotFound)
	}
	stored.Status = types.StatusDeleted
	return nil
}

// InMemoryClientStore implements client.Repository for tests
type InMemoryClientStore struct {
	mu      sync.RWMutex
	clients map[string]*client.Client
}

var _ client.Repository = (*InMemoryClientStore)(nil)

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{clients: make(map[string]*client.Client)}
}

func (s *InMemoryClientStore) Create(ctx context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[c.ID]; exists {
		return ierr.NewError("client already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	copied := *c
	s.clients[c.ID] = &copied
	return nil
}

func (s *InMemoryClientStore) Get(ctx context.Context, id string) (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok || c.TenantID != types.GetTenantID(ctx) || c.Status == types.StatusDeleted {
		return nil, ierr.NewError("client not found").
			WithHint("The referenced client does not exist").
			WithReportableDetails(map[string]any{
				"client_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryClientStore) List(ctx context.Context, filter *types.QueryFilter) ([]*client.Client, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*client.Client, 0)
	for _, c := range s.clients {
		if c.TenantID != types.GetTenantID(ctx) || c.Status != filter.GetStatus() {
			continue
		}
		copied := *c
		result = append(result, &copied)
	}
	return result, nil
}

func (s *InMemoryClientStore) Update(ctx context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.clients[c.ID]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status == types.StatusDeleted {
		return ierr.NewError("client not found").
			Mark(ierr.ErrNotFound)
	}
	copied := *c
	s.clients[c.ID] = &copied
	return nil
}

func (s *InMemoryClientStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.clients[id]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status == types.StatusDeleted {
		return ierr.NewError("client not found").
			Mark(ierr.ErrNotFound)
	}
	stored.Status = types.StatusDeleted
	return nil
}
