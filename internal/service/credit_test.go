package service

import (
	"sync"
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

type CreditServiceSuite struct {
	testutil.BaseServiceSuite
	sale   SaleService
	credit CreditService
}

func TestCreditService(t *testing.T) {
	suite.Run(t, new(CreditServiceSuite))
}

func (s *CreditServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	params := newTestParams(&s.BaseServiceSuite)
	s.sale = NewSaleService(params)
	s.credit = NewCreditService(params)
}

// sellActive sells a fully paid custom package so it starts ACTIVE
func (s *CreditServiceSuite) sellActive(quantity, validityDays int, anchor types.ValidityAnchor) (*dto.PackageResponse, string) {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		Name:           "Massage Bundle",
		ValidityDays:   validityDays,
		ValidityAnchor: anchor,
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: quantity},
		},
		InitialPayment: lo.ToPtr(decimal.NewFromInt(int64(quantity) * 50)),
	})
	s.Require().NoError(err)
	s.Require().Equal(types.PackageStatusActive, pkg.PackageStatus)
	return pkg, massage.ID
}

func (s *CreditServiceSuite) TestRegisterUsage() {
	pkg, serviceID := s.sellActive(10, 0, "")

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)

	s.Equal(types.UsageStatusUsed, usage.UsageStatus)
	s.Equal(1, usage.Quantity)
	s.Equal(9, usage.RemainingQuantity)
	s.Equal(types.PackageStatusActive, usage.PackageStatus)
	s.Equal(s.GetClock().Now(), usage.UsedAt)
}

func (s *CreditServiceSuite) TestRegisterUsageMultiQuantity() {
	pkg, serviceID := s.sellActive(10, 0, "")

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
		Quantity:  4,
	})
	s.Require().NoError(err)
	s.Equal(6, usage.RemainingQuantity)
}

func (s *CreditServiceSuite) TestRegisterUsageInsufficientCredits() {
	pkg, serviceID := s.sellActive(2, 0, "")

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
		Quantity:  3,
	})
	s.True(ierr.IsInsufficientCredits(err))

	// The failed attempt must not leave a debit behind
	item, err := s.GetStores().Package.GetItemByService(s.GetContext(), pkg.ID, serviceID)
	s.Require().NoError(err)
	s.Equal(0, item.UsedQuantity)
}

func (s *CreditServiceSuite) TestRegisterUsageServiceNotInPackage() {
	pkg, _ := s.sellActive(10, 0, "")
	other := seedService(&s.BaseServiceSuite, "Facial", 80)

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: other.ID,
	})
	s.True(ierr.IsNotFound(err))
}

func (s *CreditServiceSuite) TestRegisterUsagePendingPaymentRejected() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")
	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID: c.ID,
		Name:     "Unpaid Bundle",
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: 5},
		},
	})
	s.Require().NoError(err)
	s.Require().Equal(types.PackageStatusPendingPayment, pkg.PackageStatus)

	_, err = s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: massage.ID,
	})
	s.Require().Error(err)
	s.False(ierr.IsNotFound(err))
}

func (s *CreditServiceSuite) TestRegisterUsageLazyExpiration() {
	pkg, serviceID := s.sellActive(10, 30, types.ValidityAnchorPurchase)

	s.GetClock().Advance(31 * 24 * time.Hour)

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.True(ierr.IsExpired(err))

	// The expiry transition is persisted, not just reported
	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusExpired, stored.PackageStatus)
}

func (s *CreditServiceSuite) TestLazyExpirationSurvivesUsageRollback() {
	pkg, serviceID := s.sellActive(10, 30, types.ValidityAnchorPurchase)

	// A transactional client that rolls the store back when the usage
	// transaction fails, like the real database does.
	params := newTestParams(&s.BaseServiceSuite)
	params.DB = testutil.NewRollbackPostgresClient(s.GetStores().Package)
	credit := NewCreditService(params)

	s.GetClock().Advance(31 * 24 * time.Hour)

	_, err := credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.True(ierr.IsExpired(err))

	// The rejected usage rolls back, the expiry write must not
	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusExpired, stored.PackageStatus)
}

func (s *CreditServiceSuite) TestFirstUsageStartsActivationWindow() {
	pkg, serviceID := s.sellActive(10, 30, types.ValidityAnchorActivation)
	s.Require().Nil(pkg.ExpiresAt)

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)

	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.ActivationDate)
	s.Require().NotNil(stored.ExpiresAt)
	s.Equal(s.GetClock().Now().AddDate(0, 0, 30), stored.ExpiresAt.UTC())
}

func (s *CreditServiceSuite) TestLastUsageCompletesPackage() {
	pkg, serviceID := s.sellActive(2, 0, "")

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusCompleted, usage.PackageStatus)

	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.NotNil(stored.CompletedAt)
}

func (s *CreditServiceSuite) TestCompletedPackageRejectsUsage() {
	pkg, serviceID := s.sellActive(1, 0, "")

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)

	_, err = s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().Error(err)
}

func (s *CreditServiceSuite) TestCancelUsageReleasesCreditAndReopens() {
	pkg, serviceID := s.sellActive(1, 0, "")

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusCompleted, usage.PackageStatus)

	cancelled, err := s.credit.CancelUsage(s.GetContext(), usage.ID, &dto.CancelUsageRequest{
		Reason: "client no-show",
	})
	s.Require().NoError(err)

	s.Equal(types.UsageStatusCancelled, cancelled.UsageStatus)
	s.Equal("client no-show", cancelled.CancelReason)
	s.Equal(1, cancelled.RemainingQuantity)
	s.Equal(types.PackageStatusActive, cancelled.PackageStatus)

	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Nil(stored.CompletedAt)
	s.Require().Len(stored.Items, 1)
	s.Equal(0, stored.Items[0].UsedQuantity)
	s.Equal(0, stored.Items[0].CancelledQuantity)
}

func (s *CreditServiceSuite) TestCancelUsageTwiceRejected() {
	pkg, serviceID := s.sellActive(5, 0, "")

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)

	_, err = s.credit.CancelUsage(s.GetContext(), usage.ID, &dto.CancelUsageRequest{})
	s.Require().NoError(err)

	_, err = s.credit.CancelUsage(s.GetContext(), usage.ID, &dto.CancelUsageRequest{})
	s.Require().Error(err)
	s.False(ierr.IsNotFound(err))
}

func (s *CreditServiceSuite) TestConcurrentUsageOfLastCredit() {
	pkg, serviceID := s.sellActive(1, 0, "")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
				ServiceID: serviceID,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	s.Equal(1, succeeded, "exactly one of two concurrent usages may win the last credit")

	item, err := s.GetStores().Package.GetItemByService(s.GetContext(), pkg.ID, serviceID)
	s.Require().NoError(err)
	s.Equal(1, item.UsedQuantity)
}

func (s *CreditServiceSuite) TestListUsagesByPackage() {
	pkg, serviceID := s.sellActive(5, 0, "")

	for i := 0; i < 3; i++ {
		_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
			ServiceID: serviceID,
		})
		s.Require().NoError(err)
	}

	filter := types.NewDefaultUsageFilter()
	filter.PackageID = &pkg.ID
	resp, err := s.credit.ListUsages(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(resp.Items, 3)
}
