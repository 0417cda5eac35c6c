package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/packlane/packlane/internal/cache"
	"github.com/packlane/packlane/internal/clock"
	"github.com/packlane/packlane/internal/config"
	"github.com/packlane/packlane/internal/logger"
)

// Stores groups the in-memory repositories backing a service test run
type Stores struct {
	Service  *InMemoryServiceStore
	Client   *InMemoryClientStore
	Template *InMemoryTemplateStore
	Package  *InMemoryPackageStore
	Ledger   *InMemoryLedgerSink
}

// BaseServiceSuite wires fresh in-memory stores, a frozen clock and a
// tenant-scoped context before every test.
type BaseServiceSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	clock  *clock.Mock
	logger *logger.Logger
	config *config.Configuration
	cache  cache.Cache
	db     *MockPostgresClient
}

func (s *BaseServiceSuite) SetupTest() {
	s.ctx = SetupContext()
	s.clock = clock.NewMock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	s.config = config.GetDefaultConfig()
	s.logger, _ = logger.NewLogger(s.config)
	s.cache = cache.NewInMemoryCache(s.logger)
	s.db = NewMockPostgresClient()

	packageStore := NewInMemoryPackageStore()
	s.stores = Stores{
		Service:  NewInMemoryServiceStore(),
		Client:   NewInMemoryClientStore(),
		Template: NewInMemoryTemplateStore(packageStore),
		Package:  packageStore,
		Ledger:   NewInMemoryLedgerSink(),
	}
}

func (s *BaseServiceSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceSuite) GetClock() *clock.Mock {
	return s.clock
}

func (s *BaseServiceSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceSuite) GetDB() *MockPostgresClient {
	return s.db
}
