package finance

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/types"
)

// IncomeRequest is the record emitted to the external financial ledger
// after a payment has been durably recorded against a package.
type IncomeRequest struct {
	TenantID      string              `json:"tenant_id"`
	ClientID      string              `json:"client_id"`
	PackageID     string              `json:"package_id"`
	PaymentID     string              `json:"payment_id"`
	ReceiptNumber string              `json:"receipt_number"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod types.PaymentMethod `json:"payment_method,omitempty"`
	Description   string              `json:"description,omitempty"`
}

// LedgerSink posts income entries to the external financial ledger.
// It is fire-and-forget from the core's perspective: failures are logged
// and surfaced as a degraded-success signal, never rolled back into the
// payment itself.
type LedgerSink interface {
	RecordIncome(ctx context.Context, req *IncomeRequest) error
}
