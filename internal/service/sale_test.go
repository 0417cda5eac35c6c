package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/packlane/packlane/internal/api/dto"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/testutil"
	"github.com/packlane/packlane/internal/types"
)

type SaleServiceSuite struct {
	testutil.BaseServiceSuite
	sale     SaleService
	template TemplateService
}

func TestSaleService(t *testing.T) {
	suite.Run(t, new(SaleServiceSuite))
}

func (s *SaleServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	params := newTestParams(&s.BaseServiceSuite)
	s.sale = NewSaleService(params)
	s.template = NewTemplateService(params)
}

func (s *SaleServiceSuite) seedTemplate(validityDays int, anchor types.ValidityAnchor) (*dto.TemplateResponse, string) {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	resp, err := s.template.CreateTemplate(s.GetContext(), &dto.CreateTemplateRequest{
		Name:           "10x Massage",
		Price:          decimal.NewFromInt(450),
		ValidityDays:   validityDays,
		ValidityAnchor: anchor,
		Transferable:   true,
		Items: []*dto.TemplateItemRequest{
			{ServiceID: massage.ID, Quantity: 10},
		},
	})
	s.Require().NoError(err)
	return resp, massage.ID
}

func (s *SaleServiceSuite) TestSellFromTemplate() {
	tmpl, serviceID := s.seedTemplate(90, types.ValidityAnchorPurchase)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &tmpl.ID,
	})
	s.Require().NoError(err)

	s.Equal(c.ID, pkg.ClientID)
	s.Equal("10x Massage", pkg.Name)
	s.True(pkg.SalePrice.Equal(decimal.NewFromInt(450)))
	s.Equal(types.PackageStatusPendingPayment, pkg.PackageStatus)
	s.Require().Len(pkg.Items, 1)
	s.Equal(serviceID, pkg.Items[0].ServiceID)
	s.Equal(10, pkg.Items[0].Quantity)
	s.Equal(10, pkg.Items[0].AvailableQuantity)
	s.True(pkg.Items[0].UnitPrice.Equal(decimal.NewFromInt(50)))

	s.Require().NotNil(pkg.ExpiresAt)
	s.Equal(s.GetClock().Now().AddDate(0, 0, 90), pkg.ExpiresAt.UTC())
}

func (s *SaleServiceSuite) TestSellFromTemplateWithSalePriceOverride() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &tmpl.ID,
		SalePrice:  lo.ToPtr(decimal.NewFromInt(400)),
	})
	s.Require().NoError(err)

	// The catalog price stays on record, the negotiated price is charged
	s.True(pkg.OriginalPrice.Equal(decimal.NewFromInt(450)))
	s.True(pkg.SalePrice.Equal(decimal.NewFromInt(400)))
}

func (s *SaleServiceSuite) TestSellWithExplicitWindow() {
	tmpl, _ := s.seedTemplate(90, types.ValidityAnchorPurchase)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	activation := s.GetClock().Now().AddDate(0, 0, 7)
	expiry := s.GetClock().Now().AddDate(0, 0, 37)
	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		ActivationDate: &activation,
		ExpiresAt:      &expiry,
	})
	s.Require().NoError(err)

	// Explicit dates win over the template's 90-day window
	s.Require().NotNil(pkg.ActivationDate)
	s.Equal(activation, pkg.ActivationDate.UTC())
	s.Require().NotNil(pkg.ExpiresAt)
	s.Equal(expiry, pkg.ExpiresAt.UTC())
}

func (s *SaleServiceSuite) TestSellRejectsExpiryBeforeActivation() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")

	activation := s.GetClock().Now().AddDate(0, 0, 7)
	expiry := s.GetClock().Now()
	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		ActivationDate: &activation,
		ExpiresAt:      &expiry,
	})
	s.True(ierr.IsValidation(err))
}

func (s *SaleServiceSuite) TestSellActivationAnchoredHasNoExpiryYet() {
	tmpl, _ := s.seedTemplate(30, types.ValidityAnchorActivation)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &tmpl.ID,
	})
	s.Require().NoError(err)
	s.Nil(pkg.ExpiresAt)
}

func (s *SaleServiceSuite) TestSellWithFullInitialPaymentActivates() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		PaymentMethod:  types.PaymentMethodCard,
		InitialPayment: lo.ToPtr(decimal.NewFromInt(450)),
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusActive, pkg.PackageStatus)
	s.True(pkg.PaidAmount.Equal(decimal.NewFromInt(450)))

	payments, err := s.GetStores().Package.ListPayments(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Require().Len(payments, 1)
	s.Contains(payments[0].ReceiptNumber, "RC-")

	s.Require().Len(s.GetStores().Ledger.Requests(), 1)
	s.True(s.GetStores().Ledger.Requests()[0].Amount.Equal(decimal.NewFromInt(450)))

	s.Require().NotNil(pkg.FinanceSynced)
	s.True(*pkg.FinanceSynced)
}

func (s *SaleServiceSuite) TestSellSurvivesFinanceOutage() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")
	s.GetStores().Ledger.SetFailing(true)

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		InitialPayment: lo.ToPtr(decimal.NewFromInt(450)),
	})
	s.Require().NoError(err)

	// The sale and payment are durable; the response flags the missed sync
	s.Equal(types.PackageStatusActive, pkg.PackageStatus)
	s.Require().NotNil(pkg.FinanceSynced)
	s.False(*pkg.FinanceSynced)

	payments, err := s.GetStores().Package.ListPayments(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Len(payments, 1)
	s.Empty(s.GetStores().Ledger.Requests())
}

func (s *SaleServiceSuite) TestSellWithPartialPaymentStaysPending() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		InitialPayment: lo.ToPtr(decimal.NewFromInt(100)),
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusPendingPayment, pkg.PackageStatus)
	s.True(pkg.PaidAmount.Equal(decimal.NewFromInt(100)))
}

func (s *SaleServiceSuite) TestSellCustomPackage() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	facial := seedService(&s.BaseServiceSuite, "Facial", 80)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID: c.ID,
		Name:     "Spa Day Bundle",
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 5},
			{ServiceID: facial.ID, Quantity: 2, UnitPrice: lo.ToPtr(decimal.NewFromInt(70))},
		},
	})
	s.Require().NoError(err)

	// 5*50 + 2*70
	s.True(pkg.OriginalPrice.Equal(decimal.NewFromInt(390)))
	s.True(pkg.SalePrice.Equal(decimal.NewFromInt(390)))
	s.True(pkg.Transferable)
	s.Len(pkg.Items, 2)
}

func (s *SaleServiceSuite) TestSellCustomWithExplicitSalePrice() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:  c.ID,
		Name:      "Intro Offer",
		SalePrice: lo.ToPtr(decimal.NewFromInt(200)),
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 5},
		},
	})
	s.Require().NoError(err)
	s.True(pkg.OriginalPrice.Equal(decimal.NewFromInt(250)))
	s.True(pkg.SalePrice.Equal(decimal.NewFromInt(200)))
}

func (s *SaleServiceSuite) TestSellZeroDueStartsActive() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:  c.ID,
		Name:      "Comp Package",
		SalePrice: lo.ToPtr(decimal.Zero),
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 1},
		},
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusActive, pkg.PackageStatus)
}

func (s *SaleServiceSuite) TestSellUnknownClient() {
	tmpl, _ := s.seedTemplate(0, "")

	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   "client_missing",
		TemplateID: &tmpl.ID,
	})
	s.True(ierr.IsNotFound(err))
}

func (s *SaleServiceSuite) TestSellUnknownTemplate() {
	c := seedClient(&s.BaseServiceSuite, "Ada")

	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: lo.ToPtr("tmpl_missing"),
	})
	s.True(ierr.IsNotFound(err))
}

func (s *SaleServiceSuite) TestSellCustomUnknownService() {
	c := seedClient(&s.BaseServiceSuite, "Ada")

	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID: c.ID,
		Name:     "Broken Bundle",
		Items: []*dto.SaleItemRequest{
			{ServiceID: "svc_missing", Quantity: 1},
		},
	})
	s.True(ierr.IsNotFound(err))
}

func (s *SaleServiceSuite) TestSellRejectsTemplateAndItemsTogether() {
	tmpl, serviceID := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")

	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &tmpl.ID,
		Items: []*dto.SaleItemRequest{
			{ServiceID: serviceID, Quantity: 1},
		},
	})
	s.True(ierr.IsValidation(err))
}

func (s *SaleServiceSuite) TestSellRejectsExcessiveDiscount() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")

	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		DiscountAmount: decimal.NewFromInt(500),
	})
	s.True(ierr.IsValidation(err))
}

func (s *SaleServiceSuite) TestSellArchivedTemplateRejected() {
	tmpl, _ := s.seedTemplate(0, "")
	c := seedClient(&s.BaseServiceSuite, "Ada")
	s.Require().NoError(s.GetStores().Template.Archive(s.GetContext(), tmpl.ID))

	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &tmpl.ID,
	})
	s.Error(err)
}
