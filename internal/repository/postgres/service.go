package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/packlane/packlane/internal/domain/service"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
	"github.com/packlane/packlane/internal/types"
)

type serviceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewServiceRepository creates a new instance of service repository
func NewServiceRepository(db *postgres.DB, logger *logger.Logger) service.Repository {
	return &serviceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *serviceRepository) Create(ctx context.Context, s *service.Service) error {
	query := `
		INSERT INTO services (
			id, name, description, price,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :description, :price,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create service").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id string) (*service.Service, error) {
	query := `
		SELECT * FROM services
		WHERE id = $1 AND tenant_id = $2 AND status = $3`

	var s service.Service
	err := r.db.GetQuerier(ctx).GetContext(ctx, &s, query, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("service not found").
				WithHint("The referenced service does not exist").
				WithReportableDetails(map[string]any{
					"service_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get service").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *serviceRepository) List(ctx context.Context, filter *types.QueryFilter) ([]*service.Service, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	query := `
		SELECT * FROM services
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	services := make([]*service.Service, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &services, query,
		types.GetTenantID(ctx), filter.GetStatus(), filter.GetLimit(), filter.GetOffset())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list services").
			Mark(ierr.ErrDatabase)
	}
	return services, nil
}

func (r *serviceRepository) Update(ctx context.Context, s *service.Service) error {
	query := `
		UPDATE services SET
			name = :name,
			description = :description,
			price = :price,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

	result, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update service").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "service", s.ID)
}

func (r *serviceRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE services SET status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND status = $4`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusDeleted, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete service").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "service", id)
}
