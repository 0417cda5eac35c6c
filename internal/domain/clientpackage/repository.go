package clientpackage

import (
	"context"
	"time"

	"github.com/packlane/packlane/internal/types"
)

// Repository defines the interface for client package persistence.
// Counter-mutating operations (UpdateItemCounters) are conditional on the
// item's version and fail with ErrVersionConflict when the row moved under
// the caller; the credit ledger retries those with a fresh read.
type Repository interface {
	// Create persists a package together with its items in one transaction
	Create(ctx context.Context, pkg *ClientPackage, items []*PackageItem) error

	Get(ctx context.Context, id string) (*ClientPackage, error)
	List(ctx context.Context, filter *types.PackageFilter) ([]*ClientPackage, error)
	Count(ctx context.Context, filter *types.PackageFilter) (int, error)

	// Update persists status, dates, ownership and paid amount of the
	// package row. Item counters are never touched through this method.
	Update(ctx context.Context, pkg *ClientPackage) error

	// Items
	GetItems(ctx context.Context, packageID string) ([]*PackageItem, error)
	GetItem(ctx context.Context, id string) (*PackageItem, error)
	GetItemByService(ctx context.Context, packageID, serviceID string) (*PackageItem, error)
	ListItemsByClient(ctx context.Context, clientID string) ([]*PackageItem, error)

	// UpdateItemCounters writes the item's used/cancelled counters guarded
	// by expectedVersion and bumps the version on success
	UpdateItemCounters(ctx context.Context, item *PackageItem, expectedVersion int) error

	// Usage records
	CreateUsage(ctx context.Context, u *UsageRecord) error
	GetUsage(ctx context.Context, id string) (*UsageRecord, error)
	UpdateUsage(ctx context.Context, u *UsageRecord) error
	ListUsages(ctx context.Context, filter *types.UsageFilter) ([]*UsageRecord, error)

	// Payments
	CreatePayment(ctx context.Context, p *PackagePayment) error
	ListPayments(ctx context.Context, packageID string) ([]*PackagePayment, error)

	// ExpireOverdue transitions ACTIVE packages whose expiry has passed to
	// EXPIRED, in batches of batchSize, and returns the number affected.
	// Safe to re-run; already-expired packages are untouched.
	ExpireOverdue(ctx context.Context, before time.Time, batchSize int) (int, error)
}
