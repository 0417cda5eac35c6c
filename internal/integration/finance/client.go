// Package finance implements the external financial-ledger sink over HTTP.
package finance

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/packlane/packlane/internal/config"
	domainFinance "github.com/packlane/packlane/internal/domain/finance"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/httpclient"
	"github.com/packlane/packlane/internal/logger"
)

type ledgerClient struct {
	cfg    *config.Configuration
	client httpclient.Client
	logger *logger.Logger
}

// NewLedgerSink creates the HTTP implementation of the finance ledger sink.
// With no URL configured it degrades to a disabled sink whose failures are
// reported through the same degraded-success path.
func NewLedgerSink(cfg *config.Configuration, client httpclient.Client, logger *logger.Logger) domainFinance.LedgerSink {
	return &ledgerClient{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

func (c *ledgerClient) RecordIncome(ctx context.Context, req *domainFinance.IncomeRequest) error {
	if c.cfg.Finance.URL == "" {
		return ierr.NewError("finance ledger sink is not configured").
			WithHint("Payment recorded but not posted to the financial ledger").
			Mark(ierr.ErrDependencyDegraded)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode income request").
			Mark(ierr.ErrSystem)
	}

	httpReq := &httpclient.Request{
		Method: http.MethodPost,
		URL:    c.cfg.Finance.URL + "/income",
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-API-Key":    c.cfg.Finance.APIKey,
		},
		Body: body,
	}

	if _, err := c.client.Send(ctx, httpReq); err != nil {
		c.logger.Errorw("failed to post income to finance ledger",
			"payment_id", req.PaymentID,
			"package_id", req.PackageID,
			"amount", req.Amount,
			"error", err,
		)
		return ierr.WithError(err).
			WithHint("Payment recorded but the financial ledger could not be updated").
			WithReportableDetails(map[string]any{
				"payment_id": req.PaymentID,
				"package_id": req.PackageID,
			}).
			Mark(ierr.ErrDependencyDegraded)
	}

	return nil
}
