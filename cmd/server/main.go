package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/packlane/packlane/internal/api"
	"github.com/packlane/packlane/internal/api/cron"
	v1 "github.com/packlane/packlane/internal/api/v1"
	"github.com/packlane/packlane/internal/cache"
	"github.com/packlane/packlane/internal/clock"
	"github.com/packlane/packlane/internal/config"
	"github.com/packlane/packlane/internal/httpclient"
	"github.com/packlane/packlane/internal/integration/finance"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
	"github.com/packlane/packlane/internal/repository"
	"github.com/packlane/packlane/internal/sentry"
	"github.com/packlane/packlane/internal/service"
	"github.com/packlane/packlane/internal/validator"
)

// @title Packlane API
// @version 1.0
// @description Service-credit package ledger for service businesses
// @BasePath /v1
// @schemes http https

func init() {
	// All timestamps are stored and compared in UTC
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,

			// Clock
			clock.New,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Integrations
			finance.NewLedgerSink,

			// Repositories
			repository.NewServiceRepository,
			repository.NewClientRepository,
			repository.NewTemplateRepository,
			repository.NewClientPackageRepository,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewCatalogService,
			service.NewClientService,
			service.NewTemplateService,
			service.NewSaleService,
			service.NewCreditService,
			service.NewPaymentService,
			service.NewLifecycleService,
			service.NewBalanceService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	logger *logger.Logger,
	catalogService service.CatalogService,
	clientService service.ClientService,
	templateService service.TemplateService,
	saleService service.SaleService,
	creditService service.CreditService,
	paymentService service.PaymentService,
	lifecycleService service.LifecycleService,
	balanceService service.BalanceService,
) api.Handlers {
	return api.Handlers{
		Health:      v1.NewHealthHandler(),
		Service:     v1.NewServiceHandler(catalogService),
		Client:      v1.NewClientHandler(clientService, balanceService),
		Template:    v1.NewTemplateHandler(templateService),
		Package:     v1.NewPackageHandler(saleService, creditService, paymentService, lifecycleService),
		Stats:       v1.NewStatsHandler(balanceService),
		CronPackage: cron.NewPackageHandler(lifecycleService, logger),
	}
}

func provideRouter(handlers api.Handlers, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, logger)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db *postgres.DB,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			db.Close()
			return nil
		},
	})
}
