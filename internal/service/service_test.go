package service

import (
	"github.com/shopspring/decimal"

	"github.com/packlane/packlane/internal/domain/client"
	"github.com/packlane/packlane/internal/domain/service"
	"github.com/packlane/packlane/internal/testutil"
	"github.com/packlane/packlane/internal/types"
)

func newTestParams(s *testutil.BaseServiceSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:       s.GetLogger(),
		Config:       s.GetConfig(),
		DB:           s.GetDB(),
		Clock:        s.GetClock(),
		Cache:        s.GetCache(),
		ServiceRepo:  stores.Service,
		ClientRepo:   stores.Client,
		TemplateRepo: stores.Template,
		PackageRepo:  stores.Package,
		LedgerSink:   stores.Ledger,
	}
}

func seedService(s *testutil.BaseServiceSuite, name string, price float64) *service.Service {
	svc := &service.Service{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SERVICE),
		Name:      name,
		Price:     decimal.NewFromFloat(price),
		BaseModel: types.NewBaseModel(s.GetContext(), s.GetClock().Now()),
	}
	s.Require().NoError(s.GetStores().Service.Create(s.GetContext(), svc))
	return svc
}

func seedClient(s *testutil.BaseServiceSuite, name string) *client.Client {
	c := &client.Client{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CLIENT),
		Name:      name,
		BaseModel: types.NewBaseModel(s.GetContext(), s.GetClock().Now()),
	}
	s.Require().NoError(s.GetStores().Client.Create(s.GetContext(), c))
	return c
}
