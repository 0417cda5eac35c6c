package service

import (
	"github.com/packlane/packlane/internal/cache"
	"github.com/packlane/packlane/internal/clock"
	"github.com/packlane/packlane/internal/config"
	"github.com/packlane/packlane/internal/domain/client"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	"github.com/packlane/packlane/internal/domain/finance"
	"github.com/packlane/packlane/internal/domain/service"
	"github.com/packlane/packlane/internal/domain/template"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
)

// ServiceParams holds common dependencies for all services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient
	Clock  clock.Clock
	Cache  cache.Cache

	// Repositories
	ServiceRepo  service.Repository
	ClientRepo   client.Repository
	TemplateRepo template.Repository
	PackageRepo  clientpackage.Repository

	// Integrations
	LedgerSink finance.LedgerSink
}

func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clk clock.Clock,
	cache cache.Cache,
	serviceRepo service.Repository,
	clientRepo client.Repository,
	templateRepo template.Repository,
	packageRepo clientpackage.Repository,
	ledgerSink finance.LedgerSink,
) ServiceParams {
	return ServiceParams{
		Logger:       logger,
		Config:       config,
		DB:           db,
		Clock:        clk,
		Cache:        cache,
		ServiceRepo:  serviceRepo,
		ClientRepo:   clientRepo,
		TemplateRepo: templateRepo,
		PackageRepo:  packageRepo,
		LedgerSink:   ledgerSink,
	}
}
