package repository

import (
	"github.com/packlane/packlane/internal/domain/client"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	"github.com/packlane/packlane/internal/domain/service"
	"github.com/packlane/packlane/internal/domain/template"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
	pgRepo "github.com/packlane/packlane/internal/repository/postgres"
)

func NewServiceRepository(db *postgres.DB, logger *logger.Logger) service.Repository {
	return pgRepo.NewServiceRepository(db, logger)
}

func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return pgRepo.NewClientRepository(db, logger)
}

func NewTemplateRepository(db *postgres.DB, logger *logger.Logger) template.Repository {
	return pgRepo.NewTemplateRepository(db, logger)
}

func NewClientPackageRepository(db *postgres.DB, logger *logger.Logger) clientpackage.Repository {
	return pgRepo.NewClientPackageRepository(db, logger)
}
