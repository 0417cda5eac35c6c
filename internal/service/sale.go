package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// SaleService sells packages to clients, from a template or as a custom
// bundle assembled at the counter.
type SaleService interface {
	SellPackage(ctx context.Context, req *dto.SellPackageRequest) (*dto.PackageResponse, error)
}

type saleService struct {
	ServiceParams
}

func NewSaleService(params ServiceParams) SaleService {
	return &saleService{ServiceParams: params}
}

func (s *saleService) SellPackage(ctx context.Context, req *dto.SellPackageRequest) (*dto.PackageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.ClientRepo.Get(ctx, req.ClientID); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	var pkg *clientpackage.ClientPackage
	var items []*clientpackage.PackageItem
	var err error
	if req.TemplateID != nil {
		pkg, items, err = s.buildFromTemplate(ctx, req, now)
	} else {
		pkg, items, err = s.buildCustom(ctx, req, now)
	}
	if err != nil {
		return nil, err
	}

	// Explicit dates take precedence over the computed validity window.
	// An explicit activation date also pins activation-anchored packages,
	// which otherwise wait for their first usage.
	if req.ActivationDate != nil {
		pkg.ActivationDate = req.ActivationDate
	}
	if req.ExpiresAt != nil {
		pkg.ExpiresAt = req.ExpiresAt
	}

	if req.DiscountAmount.GreaterThan(pkg.SalePrice) {
		return nil, ierr.NewError("discount exceeds sale price").
			WithHint("Discount amount cannot exceed the sale price").
			WithReportableDetails(map[string]any{
				"sale_price": pkg.SalePrice,
				"discount":   req.DiscountAmount,
			}).
			Mark(ierr.ErrValidation)
	}

	// A package with nothing due starts ACTIVE without a payment
	if pkg.DueAmount().IsZero() {
		pkg.PackageStatus = types.PackageStatusActive
	}

	var payment *clientpackage.PackagePayment
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.PackageRepo.Create(ctx, pkg, items); err != nil {
			return err
		}
		if req.InitialPayment != nil && req.InitialPayment.IsPositive() {
			payment, err = applyPayment(ctx, s.ServiceParams, pkg, *req.InitialPayment, req.PaymentMethod, "", now)
			if err != nil {
				return err
			}
			return s.PackageRepo.Update(ctx, pkg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pkg.Items = items
	resp := dto.NewPackageResponse(pkg)
	if payment != nil {
		synced := emitIncome(ctx, s.ServiceParams, pkg, payment)
		resp.FinanceSynced = &synced
	}
	return resp, nil
}

func (s *saleService) buildFromTemplate(ctx context.Context, req *dto.SellPackageRequest, now time.Time) (*clientpackage.ClientPackage, []*clientpackage.PackageItem, error) {
	t, err := s.TemplateRepo.Get(ctx, *req.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != types.StatusPublished {
		return nil, nil, ierr.NewError("template is not sellable").
			WithHint("Archived templates cannot be sold").
			WithReportableDetails(map[string]any{
				"template_id": t.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	pkg := s.newPackage(ctx, req, now)
	pkg.TemplateID = &t.ID
	pkg.Name = t.Name
	pkg.OriginalPrice = t.Price
	pkg.SalePrice = t.Price
	if req.SalePrice != nil {
		pkg.SalePrice = *req.SalePrice
	}
	pkg.Transferable = t.Transferable
	pkg.ValidityDays = t.ValidityDays
	pkg.ValidityAnchor = t.ValidityAnchor
	if t.HasExpiry() && t.ValidityAnchor == types.ValidityAnchorPurchase {
		expiry := now.AddDate(0, 0, t.ValidityDays)
		pkg.ExpiresAt = &expiry
	}

	items := make([]*clientpackage.PackageItem, 0, len(t.Items))
	for _, ti := range t.Items {
		unitPrice, err := s.resolveUnitPrice(ctx, ti.ServiceID, ti.UnitPrice)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, s.newItem(ctx, pkg.ID, ti.ServiceID, ti.Quantity, unitPrice, now))
	}
	return pkg, items, nil
}

func (s *saleService) buildCustom(ctx context.Context, req *dto.SellPackageRequest, now time.Time) (*clientpackage.ClientPackage, []*clientpackage.PackageItem, error) {
	pkg := s.newPackage(ctx, req, now)
	pkg.Name = req.Name
	pkg.ValidityDays = req.ValidityDays
	pkg.ValidityAnchor = req.ValidityAnchor
	if req.ValidityDays > 0 {
		if pkg.ValidityAnchor == "" {
			pkg.ValidityAnchor = types.ValidityAnchorPurchase
		}
		if err := pkg.ValidityAnchor.Validate(); err != nil {
			return nil, nil, err
		}
		if pkg.ValidityAnchor == types.ValidityAnchorPurchase {
			expiry := now.AddDate(0, 0, req.ValidityDays)
			pkg.ExpiresAt = &expiry
		}
	}
	// Custom bundles are transferable unless the seller opts out
	pkg.Transferable = true
	if req.Transferable != nil {
		pkg.Transferable = *req.Transferable
	}

	items := make([]*clientpackage.PackageItem, 0, len(req.Items))
	total := decimal.Zero
	for _, ri := range req.Items {
		unitPrice, err := s.resolveUnitPrice(ctx, ri.ServiceID, ri.UnitPrice)
		if err != nil {
			return nil, nil, err
		}
		total = total.Add(unitPrice.Mul(decimal.NewFromInt(int64(ri.Quantity))))
		items = append(items, s.newItem(ctx, pkg.ID, ri.ServiceID, ri.Quantity, unitPrice, now))
	}

	pkg.OriginalPrice = total
	pkg.SalePrice = total
	if req.SalePrice != nil {
		pkg.SalePrice = *req.SalePrice
	}
	return pkg, items, nil
}

func (s *saleService) newPackage(ctx context.Context, req *dto.SellPackageRequest, now time.Time) *clientpackage.ClientPackage {
	installments := req.Installments
	if installments == 0 {
		installments = types.MinInstallments
	}
	return &clientpackage.ClientPackage{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PACKAGE),
		ClientID:       req.ClientID,
		DiscountAmount: req.DiscountAmount,
		PaidAmount:     decimal.Zero,
		PaymentMethod:  req.PaymentMethod,
		Installments:   installments,
		PackageStatus:  types.PackageStatusPendingPayment,
		PurchaseDate:   now,
		Notes:          req.Notes,
		BaseModel:      types.NewBaseModel(ctx, now),
	}
}

func (s *saleService) newItem(ctx context.Context, packageID, serviceID string, quantity int, unitPrice decimal.Decimal, now time.Time) *clientpackage.PackageItem {
	return &clientpackage.PackageItem{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PACKAGE_ITEM),
		PackageID: packageID,
		ServiceID: serviceID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Version:   1,
		BaseModel: types.NewBaseModel(ctx, now),
	}
}

// resolveUnitPrice prefers the explicit override, falling back to the
// service's current catalog price
func (s *saleService) resolveUnitPrice(ctx context.Context, serviceID string, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return *override, nil
	}
	svc, err := s.ServiceRepo.Get(ctx, serviceID)
	if err != nil {
		return decimal.Zero, err
	}
	return svc.Price, nil
}

