package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// counterRetryLimit bounds how many times a counter mutation is retried
// after losing an optimistic-lock race before the conflict is surfaced.
const counterRetryLimit = 3

// CreditService is the credit ledger: it debits package items when a
// service is delivered and credits them back when a usage is cancelled.
// Counter mutations are serialized by the item version; lost races are
// retried transparently with a fresh read.
type CreditService interface {
	RegisterUsage(ctx context.Context, packageID string, req *dto.RecordUsageRequest) (*dto.UsageResponse, error)
	CancelUsage(ctx context.Context, usageID string, req *dto.CancelUsageRequest) (*dto.UsageResponse, error)
	GetUsage(ctx context.Context, usageID string) (*dto.UsageResponse, error)
	ListUsages(ctx context.Context, filter *types.UsageFilter) (*dto.ListUsagesResponse, error)
}

type creditService struct {
	ServiceParams
}

func NewCreditService(params ServiceParams) CreditService {
	return &creditService{ServiceParams: params}
}

// withCounterRetry runs op, retrying on version conflicts with a short
// exponential backoff. Any other error aborts immediately.
func withCounterRetry(ctx context.Context, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond

	return backoff.Retry(func() error {
		err := op(ctx)
		if err != nil && !ierr.IsVersionConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, counterRetryLimit), ctx))
}

func (s *creditService) RegisterUsage(ctx context.Context, packageID string, req *dto.RecordUsageRequest) (*dto.UsageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	quantity := req.EffectiveQuantity()

	// Lazy expiry commits in its own transaction first: the usage
	// transaction below rolls back on rejection, which would undo an
	// ACTIVE to EXPIRED write made inside it.
	if err := s.expireIfOverdue(ctx, packageID); err != nil {
		return nil, err
	}

	var usage *clientpackage.UsageRecord
	var item *clientpackage.PackageItem
	var pkg *clientpackage.ClientPackage
	err := withCounterRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			pkg, err = s.PackageRepo.Get(ctx, packageID)
			if err != nil {
				return err
			}
			now := s.Clock.Now()
			if err := ensureUsable(pkg, now); err != nil {
				return err
			}

			item, err = s.PackageRepo.GetItemByService(ctx, packageID, req.ServiceID)
			if err != nil {
				return err
			}
			if item.AvailableQuantity() < quantity {
				return ierr.NewError("insufficient credits").
					WithHint("The package does not have enough credits left for this service").
					WithReportableDetails(map[string]any{
						"package_id": packageID,
						"service_id": req.ServiceID,
						"available":  item.AvailableQuantity(),
						"requested":  quantity,
					}).
					Mark(ierr.ErrInsufficientCredits)
			}

			// The counter write is the serialization point; the usage row
			// is only recorded once the debit has won.
			expectedVersion := item.Version
			item.UsedQuantity += quantity
			item.UpdatedAt = now
			item.UpdatedBy = types.GetUserID(ctx)
			if err := s.PackageRepo.UpdateItemCounters(ctx, item, expectedVersion); err != nil {
				return err
			}

			usage = &clientpackage.UsageRecord{
				ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_RECORD),
				ItemID:        item.ID,
				PackageID:     packageID,
				ServiceID:     req.ServiceID,
				Quantity:      quantity,
				UsedAt:        now,
				AppointmentID: req.AppointmentID,
				ProviderID:    req.ProviderID,
				UsageStatus:   types.UsageStatusUsed,
				BaseModel:     types.NewBaseModel(ctx, now),
			}
			if err := s.PackageRepo.CreateUsage(ctx, usage); err != nil {
				return err
			}

			if err := s.activateOnFirstUsage(ctx, pkg, now); err != nil {
				return err
			}
			return completeIfExhausted(ctx, s.ServiceParams, pkg, now)
		})
	})
	if err != nil {
		if ierr.IsVersionConflict(err) {
			return nil, ierr.WithError(err).
				WithHint("The package was modified concurrently, please retry").
				Mark(ierr.ErrVersionConflict)
		}
		return nil, err
	}

	return dto.NewUsageResponse(usage, item, pkg), nil
}

// expireIfOverdue transitions an overdue ACTIVE package to EXPIRED in
// its own committed transaction and returns the expiry rejection. A
// package that is not overdue passes through untouched.
func (s *creditService) expireIfOverdue(ctx context.Context, packageID string) error {
	var expired *clientpackage.ClientPackage
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		pkg, err := s.PackageRepo.Get(ctx, packageID)
		if err != nil {
			return err
		}
		now := s.Clock.Now()
		if pkg.PackageStatus != types.PackageStatusActive || !pkg.IsExpiredAt(now) {
			return nil
		}
		pkg.PackageStatus = types.PackageStatusExpired
		pkg.UpdatedAt = now
		pkg.UpdatedBy = types.GetUserID(ctx)
		if err := s.PackageRepo.Update(ctx, pkg); err != nil {
			return err
		}
		expired = pkg
		return nil
	})
	if err != nil {
		return err
	}
	if expired != nil {
		return expiredPackageError(expired)
	}
	return nil
}

func expiredPackageError(pkg *clientpackage.ClientPackage) error {
	return ierr.NewError("package has expired").
		WithHint("Expired packages cannot be used").
		WithReportableDetails(map[string]any{
			"package_id": pkg.ID,
			"expires_at": pkg.ExpiresAt,
		}).
		Mark(ierr.ErrExpired)
}

// ensureUsable rejects usage against anything but a live ACTIVE package.
// An ACTIVE package past its expiry date was already handled by
// expireIfOverdue; hitting one here means a racing writer revived the
// package, so only the rejection is returned and the status is left to
// the sweep.
func ensureUsable(pkg *clientpackage.ClientPackage, now time.Time) error {
	if pkg.PackageStatus == types.PackageStatusActive && pkg.IsExpiredAt(now) {
		return expiredPackageError(pkg)
	}

	switch pkg.PackageStatus {
	case types.PackageStatusActive:
		return nil
	case types.PackageStatusExpired:
		return expiredPackageError(pkg)
	case types.PackageStatusCancelled:
		return ierr.NewError("package is cancelled").
			WithHint("Cancelled packages cannot be used").
			WithReportableDetails(map[string]any{
				"package_id": pkg.ID,
			}).
			Mark(ierr.ErrAlreadyCancelled)
	default:
		return ierr.NewError("package is not active").
			WithHint("Only active packages can be used").
			WithReportableDetails(map[string]any{
				"package_id":     pkg.ID,
				"package_status": pkg.PackageStatus,
			}).
			Mark(ierr.ErrNotActive)
	}
}

// activateOnFirstUsage starts the validity window of activation-anchored
// packages on their first recorded usage
func (s *creditService) activateOnFirstUsage(ctx context.Context, pkg *clientpackage.ClientPackage, now time.Time) error {
	if pkg.ActivationDate != nil {
		return nil
	}
	pkg.ActivationDate = &now
	if pkg.ValidityDays > 0 && pkg.ValidityAnchor == types.ValidityAnchorActivation {
		expiry := now.AddDate(0, 0, pkg.ValidityDays)
		pkg.ExpiresAt = &expiry
	}
	pkg.UpdatedAt = now
	pkg.UpdatedBy = types.GetUserID(ctx)
	return s.PackageRepo.Update(ctx, pkg)
}

func (s *creditService) CancelUsage(ctx context.Context, usageID string, req *dto.CancelUsageRequest) (*dto.UsageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var usage *clientpackage.UsageRecord
	var item *clientpackage.PackageItem
	var pkg *clientpackage.ClientPackage
	err := withCounterRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			usage, err = s.PackageRepo.GetUsage(ctx, usageID)
			if err != nil {
				return err
			}
			if usage.IsCancelled() {
				return ierr.NewError("usage is already cancelled").
					WithHint("This usage record has already been cancelled").
					WithReportableDetails(map[string]any{
						"usage_id": usageID,
					}).
					Mark(ierr.ErrAlreadyCancelled)
			}

			pkg, err = s.PackageRepo.Get(ctx, usage.PackageID)
			if err != nil {
				return err
			}
			item, err = s.PackageRepo.GetItem(ctx, usage.ItemID)
			if err != nil {
				return err
			}

			now := s.Clock.Now()

			// Cancellation releases the credit back to the item; the
			// counter write again serializes racing cancellations.
			expectedVersion := item.Version
			item.UsedQuantity -= usage.Quantity
			item.UpdatedAt = now
			item.UpdatedBy = types.GetUserID(ctx)
			if err := s.PackageRepo.UpdateItemCounters(ctx, item, expectedVersion); err != nil {
				return err
			}

			usage.UsageStatus = types.UsageStatusCancelled
			usage.CancelReason = req.Reason
			usage.CancelledAt = &now
			usage.CancelledBy = types.GetUserID(ctx)
			usage.UpdatedAt = now
			usage.UpdatedBy = types.GetUserID(ctx)
			if err := s.PackageRepo.UpdateUsage(ctx, usage); err != nil {
				return err
			}

			// A completed package gets reopened by the returned credit
			if pkg.PackageStatus == types.PackageStatusCompleted {
				pkg.PackageStatus = types.PackageStatusActive
				pkg.CompletedAt = nil
				pkg.UpdatedAt = now
				pkg.UpdatedBy = types.GetUserID(ctx)
				if err := s.PackageRepo.Update(ctx, pkg); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		if ierr.IsVersionConflict(err) {
			return nil, ierr.WithError(err).
				WithHint("The package was modified concurrently, please retry").
				Mark(ierr.ErrVersionConflict)
		}
		return nil, err
	}

	return dto.NewUsageResponse(usage, item, pkg), nil
}

func (s *creditService) GetUsage(ctx context.Context, usageID string) (*dto.UsageResponse, error) {
	usage, err := s.PackageRepo.GetUsage(ctx, usageID)
	if err != nil {
		return nil, err
	}
	item, err := s.PackageRepo.GetItem(ctx, usage.ItemID)
	if err != nil {
		return nil, err
	}
	pkg, err := s.PackageRepo.Get(ctx, usage.PackageID)
	if err != nil {
		return nil, err
	}
	return dto.NewUsageResponse(usage, item, pkg), nil
}

func (s *creditService) ListUsages(ctx context.Context, filter *types.UsageFilter) (*dto.ListUsagesResponse, error) {
	if filter == nil {
		filter = types.NewDefaultUsageFilter()
	}

	usages, err := s.PackageRepo.ListUsages(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(usages, func(u *clientpackage.UsageRecord, _ int) *dto.UsageResponse {
		return dto.NewUsageResponse(u, nil, nil)
	})
	resp := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
