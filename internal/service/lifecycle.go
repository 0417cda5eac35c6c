package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// LifecycleService drives package state transitions: completion when the
// quota is exhausted, cancellation with credit forfeiture, ownership
// transfer and the bulk expiration sweep.
type LifecycleService interface {
	GetPackage(ctx context.Context, id string) (*dto.PackageResponse, error)
	ListPackages(ctx context.Context, filter *types.PackageFilter) (*dto.ListPackagesResponse, error)
	CancelPackage(ctx context.Context, id string, req *dto.CancelPackageRequest) (*dto.PackageResponse, error)
	TransferPackage(ctx context.Context, id string, req *dto.TransferPackageRequest) (*dto.PackageResponse, error)
	ExpireOverdue(ctx context.Context) (*dto.ExpireOverdueResponse, error)
}

type lifecycleService struct {
	ServiceParams
}

func NewLifecycleService(params ServiceParams) LifecycleService {
	return &lifecycleService{ServiceParams: params}
}

func (s *lifecycleService) GetPackage(ctx context.Context, id string) (*dto.PackageResponse, error) {
	pkg, err := s.PackageRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPackageResponse(pkg), nil
}

func (s *lifecycleService) ListPackages(ctx context.Context, filter *types.PackageFilter) (*dto.ListPackagesResponse, error) {
	if filter == nil {
		filter = types.NewDefaultPackageFilter()
	}

	packages, err := s.PackageRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.PackageRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(packages, func(p *clientpackage.ClientPackage, _ int) *dto.PackageResponse {
		return dto.NewPackageResponse(p)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *lifecycleService) CancelPackage(ctx context.Context, id string, req *dto.CancelPackageRequest) (*dto.PackageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var pkg *clientpackage.ClientPackage
	err := withCounterRetry(ctx, func(ctx context.Context) error {
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			var err error
			pkg, err = s.PackageRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			if pkg.PackageStatus == types.PackageStatusCancelled {
				return ierr.NewError("package is already cancelled").
					WithHint("This package has already been cancelled").
					WithReportableDetails(map[string]any{
						"package_id": id,
					}).
					Mark(ierr.ErrAlreadyCancelled)
			}
			if pkg.PackageStatus.IsTerminal() {
				return ierr.NewError("package cannot be cancelled").
					WithHint("Only pending or active packages can be cancelled").
					WithReportableDetails(map[string]any{
						"package_id":     id,
						"package_status": pkg.PackageStatus,
					}).
					Mark(ierr.ErrInvalidOperation)
			}

			now := s.Clock.Now()

			// Remaining credits are revoked into cancelled_quantity so the
			// forfeiture stays visible on the item counters.
			for _, item := range pkg.Items {
				remaining := item.AvailableQuantity()
				if remaining == 0 {
					continue
				}
				expectedVersion := item.Version
				item.CancelledQuantity += remaining
				item.UpdatedAt = now
				item.UpdatedBy = types.GetUserID(ctx)
				if err := s.PackageRepo.UpdateItemCounters(ctx, item, expectedVersion); err != nil {
					return err
				}
			}

			pkg.PackageStatus = types.PackageStatusCancelled
			pkg.CancelledAt = &now
			if req.Reason != "" {
				pkg.Notes = req.Reason
			}
			pkg.UpdatedAt = now
			pkg.UpdatedBy = types.GetUserID(ctx)
			return s.PackageRepo.Update(ctx, pkg)
		})
	})
	if err != nil {
		return nil, err
	}

	return dto.NewPackageResponse(pkg), nil
}

func (s *lifecycleService) TransferPackage(ctx context.Context, id string, req *dto.TransferPackageRequest) (*dto.PackageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var pkg *clientpackage.ClientPackage
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		pkg, err = s.PackageRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !pkg.Transferable {
			return ierr.NewError("package is not transferable").
				WithHint("This package does not allow ownership transfer").
				WithReportableDetails(map[string]any{
					"package_id": id,
				}).
				Mark(ierr.ErrNotTransferable)
		}
		if pkg.ClientID == req.ClientID {
			return ierr.NewError("package already belongs to this client").
				WithHint("The target client already owns this package").
				WithReportableDetails(map[string]any{
					"package_id": id,
					"client_id":  req.ClientID,
				}).
				Mark(ierr.ErrValidation)
		}
		if _, err := s.ClientRepo.Get(ctx, req.ClientID); err != nil {
			return err
		}

		// Ownership moves wholesale; usage and payment history stay put
		pkg.ClientID = req.ClientID
		pkg.UpdatedAt = s.Clock.Now()
		pkg.UpdatedBy = types.GetUserID(ctx)
		return s.PackageRepo.Update(ctx, pkg)
	})
	if err != nil {
		return nil, err
	}

	return dto.NewPackageResponse(pkg), nil
}

func (s *lifecycleService) ExpireOverdue(ctx context.Context) (*dto.ExpireOverdueResponse, error) {
	batchSize := s.Config.Sweep.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	count, err := s.PackageRepo.ExpireOverdue(ctx, s.Clock.Now(), batchSize)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.Logger.Infow("expired overdue packages", "count", count)
	}
	return &dto.ExpireOverdueResponse{Expired: count}, nil
}

// completeIfExhausted transitions the package to COMPLETED once every
// item's quota is used or revoked. Runs inside the caller's transaction
// with counters already written.
func completeIfExhausted(ctx context.Context, params ServiceParams, pkg *clientpackage.ClientPackage, now time.Time) error {
	items, err := params.PackageRepo.GetItems(ctx, pkg.ID)
	if err != nil {
		return err
	}
	pkg.Items = items

	exhausted := lo.EveryBy(items, func(item *clientpackage.PackageItem) bool {
		return item.IsExhausted()
	})
	// Only ACTIVE packages complete here. Usage is rejected for every
	// other status, so a PENDING_PAYMENT package can never exhaust its
	// quota to begin with.
	if !exhausted || pkg.PackageStatus != types.PackageStatusActive {
		return nil
	}

	pkg.PackageStatus = types.PackageStatusCompleted
	pkg.CompletedAt = &now
	pkg.UpdatedAt = now
	pkg.UpdatedBy = types.GetUserID(ctx)
	return params.PackageRepo.Update(ctx, pkg)
}
