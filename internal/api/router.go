package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/packlane/packlane/internal/api/cron"
	v1 "github.com/packlane/packlane/internal/api/v1"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/rest/middleware"
)

type Handlers struct {
	Health      *v1.HealthHandler
	Service     *v1.ServiceHandler
	Client      *v1.ClientHandler
	Template    *v1.TemplateHandler
	Package     *v1.PackageHandler
	Stats       *v1.StatsHandler
	CronPackage *cron.PackageHandler
}

func NewRouter(handlers Handlers, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		gin.Recovery(),
		middleware.CORSMiddleware,
		middleware.RequestIDMiddleware,
		middleware.TenantMiddleware,
		middleware.ErrorHandler(log),
	)

	router.GET("/health", handlers.Health.Health)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	services := router.Group("/services")
	{
		services.POST("", handlers.Service.Create)
		services.GET("", handlers.Service.List)
		services.GET("/:id", handlers.Service.Get)
		services.PUT("/:id", handlers.Service.Update)
		services.DELETE("/:id", handlers.Service.Delete)
	}

	clients := router.Group("/clients")
	{
		clients.POST("", handlers.Client.Create)
		clients.GET("", handlers.Client.List)
		clients.GET("/:id", handlers.Client.Get)
		clients.PUT("/:id", handlers.Client.Update)
		clients.DELETE("/:id", handlers.Client.Delete)
		clients.GET("/:id/balance", handlers.Client.GetBalance)
	}

	templates := router.Group("/templates")
	{
		templates.POST("", handlers.Template.Create)
		templates.GET("", handlers.Template.List)
		templates.GET("/:id", handlers.Template.Get)
		templates.PUT("/:id", handlers.Template.Update)
		templates.POST("/:id/archive", handlers.Template.Archive)
		templates.DELETE("/:id", handlers.Template.Delete)
	}

	packages := router.Group("/packages")
	{
		packages.POST("", handlers.Package.Sell)
		packages.GET("", handlers.Package.List)
		packages.GET("/:id", handlers.Package.Get)
		packages.POST("/:id/payments", handlers.Package.RecordPayment)
		packages.GET("/:id/payments", handlers.Package.ListPayments)
		packages.POST("/:id/usages", handlers.Package.RegisterUsage)
		packages.GET("/:id/usages", handlers.Package.ListUsages)
		packages.POST("/:id/cancel", handlers.Package.Cancel)
		packages.POST("/:id/transfer", handlers.Package.Transfer)
	}

	usages := router.Group("/usages")
	{
		usages.POST("/:id/cancel", handlers.Package.CancelUsage)
	}

	router.GET("/stats", handlers.Stats.GetStats)
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	packages := router.Group("/packages")
	{
		packages.POST("/expire", handlers.CronPackage.ExpireOverdue)
	}
}
