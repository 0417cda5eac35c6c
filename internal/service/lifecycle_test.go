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

type LifecycleServiceSuite struct {
	testutil.BaseServiceSuite
	sale      SaleService
	credit    CreditService
	lifecycle LifecycleService
}

func TestLifecycleService(t *testing.T) {
	suite.Run(t, new(LifecycleServiceSuite))
}

func (s *LifecycleServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	params := newTestParams(&s.BaseServiceSuite)
	s.sale = NewSaleService(params)
	s.credit = NewCreditService(params)
	s.lifecycle = NewLifecycleService(params)
}

func (s *LifecycleServiceSuite) sellActive(quantity, validityDays int, transferable bool) (*dto.PackageResponse, string, string) {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")

	pkg, err := s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:       c.ID,
		Name:           "Massage Bundle",
		ValidityDays:   validityDays,
		ValidityAnchor: types.ValidityAnchorPurchase,
		Transferable:   &transferable,
		Items: []*dto.SaleItemRequest{
			{ServiceID: massage.ID, Quantity: quantity},
		},
		InitialPayment: lo.ToPtr(decimal.NewFromInt(int64(quantity) * 50)),
	})
	s.Require().NoError(err)
	return pkg, massage.ID, c.ID
}

func (s *LifecycleServiceSuite) TestCancelRevokesRemainingCredits() {
	pkg, serviceID, _ := s.sellActive(10, 0, false)

	_, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
		Quantity:  3,
	})
	s.Require().NoError(err)

	cancelled, err := s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{
		Reason: "client moved away",
	})
	s.Require().NoError(err)

	s.Equal(types.PackageStatusCancelled, cancelled.PackageStatus)
	s.NotNil(cancelled.CancelledAt)
	s.Require().Len(cancelled.Items, 1)
	s.Equal(3, cancelled.Items[0].UsedQuantity)
	s.Equal(7, cancelled.Items[0].CancelledQuantity)
	s.Equal(0, cancelled.Items[0].AvailableQuantity)
}

func (s *LifecycleServiceSuite) TestCancelTwiceRejected() {
	pkg, _, _ := s.sellActive(5, 0, false)

	_, err := s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{})
	s.Require().NoError(err)

	_, err = s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{})
	s.Require().Error(err)
}

func (s *LifecycleServiceSuite) TestCancelCompletedRejected() {
	pkg, serviceID, _ := s.sellActive(1, 0, false)

	usage, err := s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().NoError(err)
	s.Require().Equal(types.PackageStatusCompleted, usage.PackageStatus)

	_, err = s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	stored, err := s.GetStores().Package.Get(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusCompleted, stored.PackageStatus)
}

func (s *LifecycleServiceSuite) TestCancelExpiredRejected() {
	pkg, _, _ := s.sellActive(5, 10, false)
	s.GetClock().Advance(30 * 24 * time.Hour)

	_, err := s.lifecycle.ExpireOverdue(s.GetContext())
	s.Require().NoError(err)

	_, err = s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{})
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *LifecycleServiceSuite) TestCancelledPackageRejectsUsage() {
	pkg, serviceID, _ := s.sellActive(5, 0, false)

	_, err := s.lifecycle.CancelPackage(s.GetContext(), pkg.ID, &dto.CancelPackageRequest{})
	s.Require().NoError(err)

	_, err = s.credit.RegisterUsage(s.GetContext(), pkg.ID, &dto.RecordUsageRequest{
		ServiceID: serviceID,
	})
	s.Require().Error(err)
}

func (s *LifecycleServiceSuite) TestTransfer() {
	pkg, _, fromClient := s.sellActive(5, 0, true)
	target := seedClient(&s.BaseServiceSuite, "Grace")

	transferred, err := s.lifecycle.TransferPackage(s.GetContext(), pkg.ID, &dto.TransferPackageRequest{
		ClientID: target.ID,
	})
	s.Require().NoError(err)
	s.Equal(target.ID, transferred.ClientID)
	s.NotEqual(fromClient, transferred.ClientID)

	// History stays with the package
	payments, err := s.GetStores().Package.ListPayments(s.GetContext(), pkg.ID)
	s.Require().NoError(err)
	s.Len(payments, 1)
}

func (s *LifecycleServiceSuite) TestTransferNotTransferable() {
	pkg, _, _ := s.sellActive(5, 0, false)
	target := seedClient(&s.BaseServiceSuite, "Grace")

	_, err := s.lifecycle.TransferPackage(s.GetContext(), pkg.ID, &dto.TransferPackageRequest{
		ClientID: target.ID,
	})
	s.Require().Error(err)
	s.False(ierr.IsNotFound(err))
}

func (s *LifecycleServiceSuite) TestTransferToUnknownClient() {
	pkg, _, _ := s.sellActive(5, 0, true)

	_, err := s.lifecycle.TransferPackage(s.GetContext(), pkg.ID, &dto.TransferPackageRequest{
		ClientID: "client_missing",
	})
	s.True(ierr.IsNotFound(err))
}

func (s *LifecycleServiceSuite) TestTransferToSelfRejected() {
	pkg, _, owner := s.sellActive(5, 0, true)

	_, err := s.lifecycle.TransferPackage(s.GetContext(), pkg.ID, &dto.TransferPackageRequest{
		ClientID: owner,
	})
	s.True(ierr.IsValidation(err))
}

func (s *LifecycleServiceSuite) TestExpireOverdue() {
	expired1, _, _ := s.sellActive(5, 10, false)
	expired2, _, _ := s.sellActive(5, 20, false)
	fresh, _, _ := s.sellActive(5, 90, false)

	s.GetClock().Advance(30 * 24 * time.Hour)

	resp, err := s.lifecycle.ExpireOverdue(s.GetContext())
	s.Require().NoError(err)
	s.Equal(2, resp.Expired)

	for _, id := range []string{expired1.ID, expired2.ID} {
		pkg, err := s.GetStores().Package.Get(s.GetContext(), id)
		s.Require().NoError(err)
		s.Equal(types.PackageStatusExpired, pkg.PackageStatus)
	}
	stillActive, err := s.GetStores().Package.Get(s.GetContext(), fresh.ID)
	s.Require().NoError(err)
	s.Equal(types.PackageStatusActive, stillActive.PackageStatus)
}

func (s *LifecycleServiceSuite) TestExpireOverdueIdempotent() {
	s.sellActive(5, 10, false)
	s.GetClock().Advance(30 * 24 * time.Hour)

	first, err := s.lifecycle.ExpireOverdue(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, first.Expired)

	second, err := s.lifecycle.ExpireOverdue(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, second.Expired)
}

func (s *LifecycleServiceSuite) TestListPackagesByStatus() {
	active, _, _ := s.sellActive(5, 0, false)
	cancelled, _, _ := s.sellActive(5, 0, false)
	_, err := s.lifecycle.CancelPackage(s.GetContext(), cancelled.ID, &dto.CancelPackageRequest{})
	s.Require().NoError(err)

	filter := types.NewDefaultPackageFilter()
	filter.PackageStatus = lo.ToPtr(types.PackageStatusActive)
	resp, err := s.lifecycle.ListPackages(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal(active.ID, resp.Items[0].ID)
	s.Equal(1, resp.Pagination.Total)
}
