package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/packlane/packlane/internal/api/dto"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/testutil"
	"github.com/packlane/packlane/internal/types"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceSuite
	sale      SaleService
	payment   PaymentService
	lifecycle LifecycleService
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	params := newTestParams(&s.BaseServiceSuite)
	s.sale = NewSaleService(params)
	s.payment = NewPaymentService(params)
	s.lifecycle = NewLifecycleService(params)
}

func (s *PaymentServiceSuite) sellUnpaid(price int64) *dto.PackageResponse {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	salePrice := decimal.NewFromInt(price)
	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:  c.ID,
		Name:      "Massage Bundle",
		SalePrice: &salePrice,
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 10},
		},
	})
	s.Require().NoError(err)
	return pkg
}

func (s *PaymentServiceSuite) TestPartialPaymentKeepsPending() {
	pkg := s.sellUnpaid(400)

	resp, err := s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount:        decimal.NewFromInt(150),
		PaymentMethod: types.PaymentMethodCash,
	})
	s.Require().NoError(err)

	s.True(resp.PaidAmount.Equal(decimal.NewFromInt(150)))
	s.Equal(types.PackageStatusPendingPayment, resp.PackageStatus)
	s.True(resp.FinanceSynced)
	s.Contains(resp.ReceiptNumber, "RC-")
}

func (s *PaymentServiceSuite) TestFullPaymentActivates() {
	pkg := s.sellUnpaid(400)

	_, err := s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromInt(250),
	})
	s.Require().NoError(err)

	resp, err := s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromInt(150),
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusActive, resp.PackageStatus)
	s.True(resp.PaidAmount.Equal(decimal.NewFromInt(400)))

	payments, err := s.payment.ListPayments(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Len(payments.Items, 2)
}

func (s *PaymentServiceSuite) TestNonPositiveAmountRejected() {
	pkg := s.sellUnpaid(400)

	_, err := s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount: decimal.Zero,
	})
	s.True(ierr.IsValidation(err))

	_, err = s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromInt(-10),
	})
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestPaymentOnCancelledPackageRejected() {
	pkg := s.sellUnpaid(400)
	_, err := s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{})
	s.Require().NoError(err)

	_, err = s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromInt(50),
	})
	s.Require().Error(err)
}

func (s *PaymentServiceSuite) TestPaymentSurvivesFinanceOutage() {
	pkg := s.sellUnpaid(400)
	s.GetStores().Ledger.SetFailing(true)

	resp, err := s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromInt(400),
	})
	s.Require().NoError(err, "a finance outage must not fail the payment")

	s.False(resp.FinanceSynced)
	s.Equal(types.PackageStatusActive, resp.PackageStatus)

	// The payment is durable despite the failed emission
	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.True(stored.PaidAmount.Equal(decimal.NewFromInt(400)))
	s.Empty(s.GetStores().Ledger.Requests())
}

func (s *PaymentServiceSuite) TestPaymentEmitsIncome() {
	pkg := s.sellUnpaid(400)

	resp, err := s.payment.RecordPayment(s.GetContext(), pkg.ID, &dto.RecordPaymentRequest{
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: types.PaymentMethodTransfer,
	})
	s.Require().NoError(err)

	requests := s.GetStores().Ledger.Requests()
	s.Require().Len(requests, 1)
	s.Equal(pkg.ID, requests[0].PackageID)
	s.Equal(resp.ID, requests[0].PaymentID)
	s.Equal(resp.ReceiptNumber, requests[0].ReceiptNumber)
	s.Equal(types.PaymentMethodTransfer, requests[0].PaymentMethod)
	s.True(requests[0].Amount.Equal(decimal.NewFromInt(100)))
}

func (s *PaymentServiceSuite) TestPaymentUnknownPackage() {
	_, err := s.payment.RecordPayment(s.GetContext(), "pkg_missing", &dto.RecordPaymentRequest{
		Amount: decimal.NewFromInt(50),
	})
	s.True(ierr.IsNotFound(err))
}
