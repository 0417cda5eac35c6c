package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/packlane/packlane/internal/api/dto"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/testutil"
	"github.com/packlane/packlane/internal/types"
)

type BalanceServiceSuite struct {
	testutil.BaseServiceSuite
	sale     SaleService
	credit   CreditService
	template TemplateService
	balance  BalanceService
}

func TestBalanceService(t *testing.T) {
	suite.Run(t, new(BalanceServiceSuite))
}

func (s *BalanceServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	params := newTestParams(&s.BaseServiceSuite)
	s.sale = NewSaleService(params)
	s.credit = NewCreditService(params)
	s.template = NewTemplateService(params)
	s.balance = NewBalanceService(params)
}

func (s *BalanceServiceSuite) TestClientBalance() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	facial := seedService(&s.BaseServiceSuite, "Facial", 80)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	// Fully paid bundle with a validity window
	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		Name:           "Massage Bundle",
		ValidityDays:   60,
		ValidityAnchor: types.ValidityAnchorPurchase,
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 10},
		},
		InitialPayment: lo.ToPtr(decimal.NewFromInt(500)),
	})
	s.Require().NoError(err)

	// Partially paid bundle, activated by payment later
	second, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:  c.ID,
		Name:      "Facial Bundle",
		SalePrice: lo.ToPtr(decimal.NewFromInt(160)),
		Items: []*dto.SaleItemRequest{
			{ServiceID: facial.ID, Quantity: 2},
		},
		InitialPayment: lo.ToPtr(decimal.NewFromInt(160)),
	})
	s.Require().NoError(err)

	// Burn one facial credit
	_, err = s.credit.RegisterUsage(s.GetContext(), second.ID, &dto.RecordUsageRequest{
		ServiceID: facial.ID,
	})
	s.Require().NoError(err)

	resp, err := s.balance.GetClientBalance(s.GetContext(), c.ID)
	s.Require().NoError(err)

	s.Equal(2, resp.ActivePackages)
	s.True(resp.TotalValue.Equal(decimal.NewFromInt(660)))
	s.True(resp.TotalPaid.Equal(decimal.NewFromInt(660)))
	s.True(resp.Outstanding.IsZero())

	s.Require().Len(resp.ServiceBalances, 2)
	byService := lo.KeyBy(resp.ServiceBalances, func(b *dto.ServiceCreditBalance) string {
		return b.ServiceID
	})
	s.Equal(10, byService[massage.ID].AvailableCredits)
	s.Require().NotNil(byService[massage.ID].SoonestExpiry)
	s.Equal(1, byService[facial.ID].AvailableCredits)
	s.Nil(byService[facial.ID].SoonestExpiry)
	s.Equal("Massage", byService[massage.ID].ServiceName)
}

func (s *BalanceServiceSuite) TestClientBalanceExcludesInactivePackages() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	// Pending package: no payment, not part of the balance
	_, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID: c.ID,
		Name:     "Unpaid Bundle",
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 5},
		},
	})
	s.Require().NoError(err)

	resp, err := s.balance.GetClientBalance(s.GetContext(), c.ID)
	s.Require().NoError(err)
	s.Equal(0, resp.ActivePackages)
	s.Empty(resp.ServiceBalances)
}

func (s *BalanceServiceSuite) TestClientBalanceUnknownClient() {
	_, err := s.balance.GetClientBalance(s.GetContext(), "client_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *BalanceServiceSuite) TestTenantStats() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	tmpl, err := s.template.CreateTemplate(s.GetContext(), &dto.CreateTemplateRequest{
		Name:         "10x Massage",
		Price:        decimal.NewFromInt(450),
		ValidityDays: 20,
		Items: []*dto.TemplateItemRequest{
			{ServiceID: massage.ID, Quantity: 10},
		},
	})
	s.Require().NoError(err)

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		TemplateID:     &tmpl.ID,
		InitialPayment: lo.ToPtr(decimal.NewFromInt(450)),
	})
	s.Require().NoError(err)

	_, err = s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: massage.ID,
		Quantity:  2,
	})
	s.Require().NoError(err)

	periodStart := s.GetClock().Now().Add(-time.Hour)
	periodEnd := s.GetClock().Now().Add(time.Hour)
	resp, err := s.balance.GetTenantStats(s.GetContext(), types.StatsPeriod{
		Start: periodStart,
		End:   periodEnd,
	})
	s.Require().NoError(err)

	s.Equal(1, resp.SalesCount)
	s.True(resp.SalesValue.Equal(decimal.NewFromInt(450)))

	// 2 credits at the item's unit price of 50
	s.Equal(2, resp.UsageCount)
	s.True(resp.UsageValue.Equal(decimal.NewFromInt(100)))

	// The package expires within 30 days; 8 credits * 50 remain at risk
	s.True(resp.ExpiringSoonValue.Equal(decimal.NewFromInt(400)))

	s.Require().Len(resp.TopTemplates, 1)
	s.Equal(tmpl.ID, resp.TopTemplates[0].TemplateID)
	s.Equal("10x Massage", resp.TopTemplates[0].Name)
	s.Equal(1, resp.TopTemplates[0].Count)

	s.Require().Len(resp.TopServices, 1)
	s.Equal(massage.ID, resp.TopServices[0].ServiceID)
	s.Equal(2, resp.TopServices[0].Count)
}

func (s *BalanceServiceSuite) TestTenantStatsInvalidPeriod() {
	now := s.GetClock().Now()
	_, err := s.balance.GetTenantStats(s.GetContext(), types.StatsPeriod{
		Start: now,
		End:   now.Add(-time.Hour),
	})
	s.True(ierr.IsValidation(err))
}

func (s *BalanceServiceSuite) TestTenantStatsExcludesCancelledUsage() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID: c.ID,
		Name:     "Massage Bundle",
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 5},
		},
		InitialPayment: lo.ToPtr(decimal.NewFromInt(250)),
	})
	s.Require().NoError(err)

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: massage.ID,
	})
	s.Require().NoError(err)
	_, err = s.credit.CancelUsage(s.GetContext(), usage.ID, &dto.CancelUsageRequest{})
	s.Require().NoError(err)

	resp, err := s.balance.GetTenantStats(s.GetContext(), types.StatsPeriod{
		Start: s.GetClock().Now().Add(-time.Hour),
		End:   s.GetClock().Now().Add(time.Hour),
	})
	s.Require().NoError(err)
	s.Equal(0, resp.UsageCount)
	s.True(resp.UsageValue.IsZero())
}
