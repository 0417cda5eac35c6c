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

type TemplateServiceSuite struct {
	testutil.BaseServiceSuite
	template TemplateService
	sale     SaleService
}

func TestTemplateService(t *testing.T) {
	suite.Run(t, new(TemplateServiceSuite))
}

func (s *TemplateServiceSuite) SetupTest() {
	s.BaseServiceSuite.SetupTest()
	params := newTestParams(&s.BaseServiceSuite)
	s.template = NewTemplateService(params)
	s.sale = NewSaleService(params)
}

func (s *TemplateServiceSuite) createRequest(serviceID string) *dto.CreateTemplateRequest {
	return &dto.CreateTemplateRequest{
		Name:         "10x Massage",
		Price:        decimal.NewFromInt(450),
		ValidityDays: 90,
		Items: []*dto.TemplateItemRequest{
			{ServiceID: serviceID, Quantity: 10},
		},
	}
}

func (s *TemplateServiceSuite) TestCreateTemplate() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)

	resp, err := s.template.CreateTemplate(s.GetContext(), s.createRequest(massage.ID))
	s.Require().NoError(err)

	s.Equal("10x Massage", resp.Name)
	s.Equal(1, resp.Version)
	// The anchor defaults to purchase when a validity window is set
	s.Equal(types.ValidityAnchorPurchase, resp.ValidityAnchor)
	s.Require().Len(resp.Items, 1)
	s.Equal(10, resp.Items[0].Quantity)
}

func (s *TemplateServiceSuite) TestCreateTemplateUnknownService() {
	_, err := s.template.CreateTemplate(s.GetContext(), s.createRequest("svc_missing"))
	s.True(ierr.IsNotFound(err))
}

func (s *TemplateServiceSuite) TestCreateTemplateWithoutItems() {
	_, err := s.template.CreateTemplate(s.GetContext(), &dto.CreateTemplateRequest{
		Name:  "Empty",
		Price: decimal.NewFromInt(100),
	})
	s.True(ierr.IsValidation(err))
}

func (s *TemplateServiceSuite) TestUpdateUnsoldTemplateInPlace() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	created, err := s.template.CreateTemplate(s.GetContext(), s.createRequest(massage.ID))
	s.Require().NoError(err)

	update := &dto.UpdateTemplateRequest{CreateTemplateRequest: *s.createRequest(massage.ID)}
	update.Name = "12x Massage"
	update.Items[0].Quantity = 12

	updated, err := s.template.UpdateTemplate(s.GetContext(), created.ID, update)
	s.Require().NoError(err)

	s.Equal(created.ID, updated.ID, "unsold templates are edited in place")
	s.Equal(1, updated.Version)
	s.Equal("12x Massage", updated.Name)
	s.Equal(12, updated.Items[0].Quantity)
}

func (s *TemplateServiceSuite) TestUpdateSoldTemplateCreatesNewVersion() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")
	created, err := s.template.CreateTemplate(s.GetContext(), s.createRequest(massage.ID))
	s.Require().NoError(err)

	_, err = s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &created.ID,
	})
	s.Require().NoError(err)

	update := &dto.UpdateTemplateRequest{CreateTemplateRequest: *s.createRequest(massage.ID)}
	update.Name = "12x Massage"

	updated, err := s.template.UpdateTemplate(s.GetContext(), created.ID, update)
	s.Require().NoError(err)

	s.NotEqual(created.ID, updated.ID, "sold templates are frozen; the edit is a new version")
	s.Equal(2, updated.Version)

	// The old version is archived, not gone
	old, err := s.GetStores().Template.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(types.StatusArchived, old.Status)
}

func (s *TemplateServiceSuite) TestDeleteSoldTemplateRejected() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	c := seedClient(&s.BaseServiceSuite, "Ada")
	created, err := s.template.CreateTemplate(s.GetContext(), s.createRequest(massage.ID))
	s.Require().NoError(err)

	_, err = s.sale.SellPackage(s.GetContext(), &dto.SellPackageRequest{
		ClientID:   c.ID,
		TemplateID: &created.ID,
	})
	s.Require().NoError(err)

	err = s.template.DeleteTemplate(s.GetContext(), created.ID)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *TemplateServiceSuite) TestDeleteUnsoldTemplate() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	created, err := s.template.CreateTemplate(s.GetContext(), s.createRequest(massage.ID))
	s.Require().NoError(err)

	s.Require().NoError(s.template.DeleteTemplate(s.GetContext(), created.ID))

	_, err = s.template.GetTemplate(s.GetContext(), created.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *TemplateServiceSuite) TestListTemplatesByService() {
	massage := seedService(&s.BaseServiceSuite, "Massage", 50)
	facial := seedService(&s.BaseServiceSuite, "Facial", 80)

	_, err := s.template.CreateTemplate(s.GetContext(), s.createRequest(massage.ID))
	s.Require().NoError(err)
	_, err = s.template.CreateTemplate(s.GetContext(), &dto.CreateTemplateRequest{
		Name:  "5x Facial",
		Price: decimal.NewFromInt(350),
		Items: []*dto.TemplateItemRequest{
			{ServiceID: facial.ID, Quantity: 5},
		},
	})
	s.Require().NoError(err)

	filter := types.NewDefaultTemplateFilter()
	filter.ServiceID = &facial.ID
	resp, err := s.template.ListTemplates(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("5x Facial", resp.Items[0].Name)
}
