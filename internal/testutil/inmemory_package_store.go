package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// InMemoryPackageStore implements clientpackage.Repository for tests.
// UpdateItemCounters performs the same compare-and-swap the SQL
// implementation does, so optimistic-lock races behave identically.
type InMemoryPackageStore struct {
	mu       sync.RWMutex
	packages map[string]*clientpackage.ClientPackage
	items    map[string]*clientpackage.PackageItem
	usages   map[string]*clientpackage.UsageRecord
	payments map[string]*clientpackage.PackagePayment
}

var _ clientpackage.Repository = (*InMemoryPackageStore)(nil)

func NewInMemoryPackageStore() *InMemoryPackageStore {
	return &InMemoryPackageStore{
		packages: make(map[string]*clientpackage.ClientPackage),
		items:    make(map[string]*clientpackage.PackageItem),
		usages:   make(map[string]*clientpackage.UsageRecord),
		payments: make(map[string]*clientpackage.PackagePayment),
	}
}

type packageStoreState struct {
	packages map[string]*clientpackage.ClientPackage
	items    map[string]*clientpackage.PackageItem
	usages   map[string]*clientpackage.UsageRecord
	payments map[string]*clientpackage.PackagePayment
}

// snapshot and restore let transactional doubles undo the writes of a
// failed closure.
func (s *InMemoryPackageStore) snapshot() *packageStoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := &packageStoreState{
		packages: make(map[string]*clientpackage.ClientPackage, len(s.packages)),
		items:    make(map[string]*clientpackage.PackageItem, len(s.items)),
		usages:   make(map[string]*clientpackage.UsageRecord, len(s.usages)),
		payments: make(map[string]*clientpackage.PackagePayment, len(s.payments)),
	}
	for id, pkg := range s.packages {
		copied := *pkg
		state.packages[id] = &copied
	}
	for id, item := range s.items {
		copied := *item
		state.items[id] = &copied
	}
	for id, usage := range s.usages {
		copied := *usage
		state.usages[id] = &copied
	}
	for id, payment := range s.payments {
		copied := *payment
		state.payments[id] = &copied
	}
	return state
}

func (s *InMemoryPackageStore) restore(state *packageStoreState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages = state.packages
	s.items = state.items
	s.usages = state.usages
	s.payments = state.payments
}

func copyPackage(p *clientpackage.ClientPackage) *clientpackage.ClientPackage {
	copied := *p
	copied.Items = nil
	return &copied
}

func (s *InMemoryPackageStore) Create(ctx context.Context, pkg *clientpackage.ClientPackage, items []*clientpackage.PackageItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.packages[pkg.ID]; exists {
		return ierr.NewError("package already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	s.packages[pkg.ID] = copyPackage(pkg)
	for _, item := range items {
		copied := *item
		s.items[item.ID] = &copied
	}
	return nil
}

func (s *InMemoryPackageStore) Get(ctx context.Context, id string) (*clientpackage.ClientPackage, error) {
	s.mu.RLock()
	pkg, ok := s.packages[id]
	if !ok || pkg.TenantID != types.GetTenantID(ctx) || pkg.Status == types.StatusDeleted {
		s.mu.RUnlock()
		return nil, ierr.NewError("client package not found").
			WithHint("The referenced package does not exist").
			WithReportableDetails(map[string]any{
				"package_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := copyPackage(pkg)
	s.mu.RUnlock()

	items, err := s.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	copied.Items = items
	return copied, nil
}

func (s *InMemoryPackageStore) List(ctx context.Context, filter *types.PackageFilter) ([]*clientpackage.ClientPackage, error) {
	if filter == nil {
		filter = types.NewDefaultPackageFilter()
	}
	s.mu.RLock()
	ids := make([]string, 0)
	for _, pkg := range s.packages {
		if !matchesPackageFilter(ctx, pkg, filter) {
			continue
		}
		ids = append(ids, pkg.ID)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	result := make([]*clientpackage.ClientPackage, 0, len(ids))
	for _, id := range ids {
		pkg, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, pkg)
	}
	return result, nil
}

func matchesPackageFilter(ctx context.Context, pkg *clientpackage.ClientPackage, filter *types.PackageFilter) bool {
	if pkg.TenantID != types.GetTenantID(ctx) || pkg.Status != filter.GetStatus() {
		return false
	}
	if filter.ClientID != nil && pkg.ClientID != *filter.ClientID {
		return false
	}
	if filter.TemplateID != nil &&
		(pkg.TemplateID == nil || *pkg.TemplateID != *filter.TemplateID) {
		return false
	}
	if filter.PackageStatus != nil && pkg.PackageStatus != *filter.PackageStatus {
		return false
	}
	if filter.ExpiresBefore != nil &&
		(pkg.ExpiresAt == nil || !pkg.ExpiresAt.Before(*filter.ExpiresBefore)) {
		return false
	}
	if filter.PurchasedAfter != nil && pkg.PurchaseDate.Before(*filter.PurchasedAfter) {
		return false
	}
	return true
}

func (s *InMemoryPackageStore) Count(ctx context.Context, filter *types.PackageFilter) (int, error) {
	if filter == nil {
		filter = types.NewDefaultPackageFilter()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, pkg := range s.packages {
		if matchesPackageFilter(ctx, pkg, filter) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryPackageStore) Update(ctx context.Context, pkg *clientpackage.ClientPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.packages[pkg.ID]
	if !ok || stored.TenantID != types.GetTenantID(ctx) || stored.Status == types.StatusDeleted {
		return ierr.NewError("client package not found").
			Mark(ierr.ErrNotFound)
	}
	s.packages[pkg.ID] = copyPackage(pkg)
	return nil
}

func (s *InMemoryPackageStore) GetItems(ctx context.Context, packageID string) ([]*clientpackage.PackageItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*clientpackage.PackageItem, 0)
	for _, item := range s.items {
		if item.PackageID != packageID || item.TenantID != types.GetTenantID(ctx) {
			continue
		}
		copied := *item
		items = append(items, &copied)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *InMemoryPackageStore) GetItem(ctx context.Context, id string) (*clientpackage.PackageItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok || item.TenantID != types.GetTenantID(ctx) {
		return nil, ierr.NewError("package item not found").
			WithHint("The referenced package item does not exist").
			WithReportableDetails(map[string]any{
				"item_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

func (s *InMemoryPackageStore) GetItemByService(ctx context.Context, packageID, serviceID string) (*clientpackage.PackageItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.PackageID == packageID && item.ServiceID == serviceID &&
			item.TenantID == types.GetTenantID(ctx) {
			copied := *item
			return &copied, nil
		}
	}
	return nil, ierr.NewError("service not included in package").
		WithHint("The package does not include the requested service").
		WithReportableDetails(map[string]any{
			"package_id": packageID,
			"service_id": serviceID,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryPackageStore) ListItemsByClient(ctx context.Context, clientID string) ([]*clientpackage.PackageItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*clientpackage.PackageItem, 0)
	for _, item := range s.items {
		pkg, ok := s.packages[item.PackageID]
		if !ok || pkg.ClientID != clientID || item.TenantID != types.GetTenantID(ctx) {
			continue
		}
		copied := *item
		items = append(items, &copied)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *InMemoryPackageStore) UpdateItemCounters(ctx context.Context, item *clientpackage.PackageItem, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[item.ID]
	if !ok || stored.TenantID != types.GetTenantID(ctx) {
		return ierr.NewError("package item not found").
			Mark(ierr.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return ierr.NewError("package item was modified concurrently").
			WithHint("The item counters changed since they were read").
			WithReportableDetails(map[string]any{
				"item_id":          item.ID,
				"expected_version": expectedVersion,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	stored.UsedQuantity = item.UsedQuantity
	stored.CancelledQuantity = item.CancelledQuantity
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = item.UpdatedAt
	stored.UpdatedBy = item.UpdatedBy
	item.Version = stored.Version
	return nil
}

func (s *InMemoryPackageStore) CreateUsage(ctx context.Context, u *clientpackage.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *u
	s.usages[u.ID] = &copied
	return nil
}

func (s *InMemoryPackageStore) GetUsage(ctx context.Context, id string) (*clientpackage.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usages[id]
	if !ok || u.TenantID != types.GetTenantID(ctx) {
		return nil, ierr.NewError("usage record not found").
			WithHint("The referenced usage record does not exist").
			WithReportableDetails(map[string]any{
				"usage_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (s *InMemoryPackageStore) UpdateUsage(ctx context.Context, u *clientpackage.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.usages[u.ID]
	if !ok || stored.TenantID != types.GetTenantID(ctx) {
		return ierr.NewError("usage record not found").
			Mark(ierr.ErrNotFound)
	}
	copied := *u
	s.usages[u.ID] = &copied
	return nil
}

func (s *InMemoryPackageStore) ListUsages(ctx context.Context, filter *types.UsageFilter) ([]*clientpackage.UsageRecord, error) {
	if filter == nil {
		filter = types.NewDefaultUsageFilter()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*clientpackage.UsageRecord, 0)
	for _, u := range s.usages {
		if u.TenantID != types.GetTenantID(ctx) {
			continue
		}
		if filter.PackageID != nil && u.PackageID != *filter.PackageID {
			continue
		}
		if filter.ItemID != nil && u.ItemID != *filter.ItemID {
			continue
		}
		if filter.UsageStatus != nil && u.UsageStatus != *filter.UsageStatus {
			continue
		}
		if filter.UsedAfter != nil && u.UsedAt.Before(*filter.UsedAfter) {
			continue
		}
		if filter.UsedBefore != nil && !u.UsedAt.Before(*filter.UsedBefore) {
			continue
		}
		copied := *u
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UsedAt.After(result[j].UsedAt) })
	return result, nil
}

func (s *InMemoryPackageStore) CreatePayment(ctx context.Context, p *clientpackage.PackagePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.payments[p.ID] = &copied
	return nil
}

func (s *InMemoryPackageStore) ListPayments(ctx context.Context, packageID string) ([]*clientpackage.PackagePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*clientpackage.PackagePayment, 0)
	for _, p := range s.payments {
		if p.PackageID != packageID || p.TenantID != types.GetTenantID(ctx) {
			continue
		}
		copied := *p
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PaidAt.Before(result[j].PaidAt) })
	return result, nil
}

func (s *InMemoryPackageStore) ExpireOverdue(ctx context.Context, before time.Time, batchSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, pkg := range s.packages {
		if pkg.Status != types.StatusPublished || pkg.PackageStatus != types.PackageStatusActive {
			continue
		}
		if pkg.ExpiresAt == nil || !pkg.ExpiresAt.Before(before) {
			continue
		}
		pkg.PackageStatus = types.PackageStatusExpired
		pkg.UpdatedAt = before
		count++
	}
	return count, nil
}
