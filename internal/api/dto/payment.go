package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/types"
	"github.com/packlane/packlane/internal/validator"
)

type RecordPaymentRequest struct {
	Amount        decimal.Decimal     `json:"amount" validate:"required"`
	PaymentMethod types.PaymentMethod `json:"payment_method,omitempty"`
	Notes         string              `json:"notes,omitempty" validate:"max=1024"`
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("payment amount must be positive").
			WithHint("Payment amounts must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": r.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type PaymentResponse struct {
	ID            string              `json:"id"`
	PackageID     string              `json:"package_id"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod types.PaymentMethod `json:"payment_method,omitempty"`
	ReceiptNumber string              `json:"receipt_number"`
	PaidAt        time.Time           `json:"paid_at"`
	Notes         string              `json:"notes,omitempty"`

	// Package state after the payment
	PaidAmount    decimal.Decimal     `json:"paid_amount"`
	DueAmount     decimal.Decimal     `json:"due_amount"`
	PackageStatus types.PackageStatus `json:"package_status"`

	// FinanceSynced is false when the income entry could not be delivered
	// to the finance ledger; the payment itself is durable either way.
	FinanceSynced bool `json:"finance_synced"`
}

func NewPaymentResponse(p *clientpackage.PackagePayment, pkg *clientpackage.ClientPackage, synced bool) *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID,
		PackageID:     p.PackageID,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		ReceiptNumber: p.ReceiptNumber,
		PaidAt:        p.PaidAt,
		Notes:         p.Notes,
		PaidAmount:    pkg.PaidAmount,
		DueAmount:     pkg.DueAmount(),
		PackageStatus: pkg.PackageStatus,
		FinanceSynced: synced,
	}
}

type ListPaymentsResponse = types.ListResponse[*PaymentResponse]
