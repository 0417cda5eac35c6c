package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	"github.com/packlane/packlane/internal/domain/finance"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
)

// PaymentService tracks money received against sold packages. Payments
// are append-only audit rows; the package's paid_amount is the running
// total and drives the PENDING_PAYMENT → ACTIVE transition.
type PaymentService interface {
	RecordPayment(ctx context.Context, packageID string, req *dto.RecordPaymentRequest) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, packageID string) (*dto.ListPaymentsResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) RecordPayment(ctx context.Context, packageID string, req *dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	var pkg *clientpackage.ClientPackage
	var payment *clientpackage.PackagePayment
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		pkg, err = s.PackageRepo.Get(ctx, packageID)
		if err != nil {
			return err
		}
		if pkg.PackageStatus == types.PackageStatusCancelled {
			return ierr.NewError("package is cancelled").
				WithHint("Payments cannot be recorded on a cancelled package").
				WithReportableDetails(map[string]any{
					"package_id": packageID,
				}).
				Mark(ierr.ErrAlreadyCancelled)
		}

		payment, err = applyPayment(ctx, s.ServiceParams, pkg, req.Amount, req.PaymentMethod, req.Notes, now)
		if err != nil {
			return err
		}
		return s.PackageRepo.Update(ctx, pkg)
	})
	if err != nil {
		return nil, err
	}

	synced := emitIncome(ctx, s.ServiceParams, pkg, payment)
	return dto.NewPaymentResponse(payment, pkg, synced), nil
}

func (s *paymentService) ListPayments(ctx context.Context, packageID string) (*dto.ListPaymentsResponse, error) {
	pkg, err := s.PackageRepo.Get(ctx, packageID)
	if err != nil {
		return nil, err
	}

	payments, err := s.PackageRepo.ListPayments(ctx, packageID)
	if err != nil {
		return nil, err
	}

	items := lo.Map(payments, func(p *clientpackage.PackagePayment, _ int) *dto.PaymentResponse {
		return dto.NewPaymentResponse(p, pkg, true)
	})
	resp := types.NewListResponse(items, len(items), len(items), 0)
	return &resp, nil
}

// applyPayment appends a payment row and folds it into the package's paid
// amount, flipping PENDING_PAYMENT to ACTIVE once the due amount is
// covered. Must run inside the caller's transaction; the caller persists
// the package row afterwards.
func applyPayment(
	ctx context.Context,
	params ServiceParams,
	pkg *clientpackage.ClientPackage,
	amount decimal.Decimal,
	method types.PaymentMethod,
	notes string,
	now time.Time,
) (*clientpackage.PackagePayment, error) {
	if !amount.IsPositive() {
		return nil, ierr.NewError("payment amount must be positive").
			WithHint("Payment amounts must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": amount,
			}).
			Mark(ierr.ErrValidation)
	}
	if method == "" {
		method = pkg.PaymentMethod
	}

	payment := &clientpackage.PackagePayment{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PACKAGE_PAYMENT),
		PackageID:     pkg.ID,
		Amount:        amount,
		PaymentMethod: method,
		ReceiptNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_RECEIPT),
		PaidAt:        now,
		Notes:         notes,
		BaseModel:     types.NewBaseModel(ctx, now),
	}
	if err := params.PackageRepo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	pkg.PaidAmount = pkg.PaidAmount.Add(amount)
	pkg.UpdatedAt = now
	pkg.UpdatedBy = types.GetUserID(ctx)
	if pkg.PackageStatus == types.PackageStatusPendingPayment && pkg.IsFullyPaid() {
		pkg.PackageStatus = types.PackageStatusActive
	}
	return payment, nil
}

// emitIncome forwards the payment to the external finance ledger after it
// is durable. Failures are logged and reported as a degraded sync, never
// propagated.
func emitIncome(ctx context.Context, params ServiceParams, pkg *clientpackage.ClientPackage, payment *clientpackage.PackagePayment) bool {
	req := &finance.IncomeRequest{
		TenantID:      types.GetTenantID(ctx),
		ClientID:      pkg.ClientID,
		PackageID:     pkg.ID,
		PaymentID:     payment.ID,
		ReceiptNumber: payment.ReceiptNumber,
		Amount:        payment.Amount,
		PaymentMethod: payment.PaymentMethod,
		Description:   fmt.Sprintf("package payment: %s", pkg.Name),
	}
	if err := params.LedgerSink.RecordIncome(ctx, req); err != nil {
		params.Logger.Errorw("failed to sync payment to finance ledger",
			"error", err,
			"package_id", pkg.ID,
			"payment_id", payment.ID,
		)
		return false
	}
	return true
}
