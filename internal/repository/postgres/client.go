package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/packlane/packlane/internal/domain/client"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
	"github.com/packlane/packlane/internal/types"
)

type clientRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewClientRepository creates a new instance of client repository
func NewClientRepository(db *postgres.DB, logger *logger.Logger) client.Repository {
	return &clientRepository{
		db:     db,
		logger: logger,
	}
}

func (r *clientRepository) Create(ctx context.Context, c *client.Client) error {
	query := `
		INSERT INTO clients (
			id, name, email, phone,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :name, :email, :phone,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create client").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	query := `
		SELECT * FROM clients
		WHERE id = $1 AND tenant_id = $2 AND status = $3`

	var c client.Client
	err := r.db.GetQuerier(ctx).GetContext(ctx, &c, query, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("client not found").
				WithHint("The referenced client does not exist").
				WithReportableDetails(map[string]any{
					"client_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get client").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

func (r *clientRepository) List(ctx context.Context, filter *types.QueryFilter) ([]*client.Client, error) {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	query := `
		SELECT * FROM clients
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	clients := make([]*client.Client, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &clients, query,
		types.GetTenantID(ctx), filter.GetStatus(), filter.GetLimit(), filter.GetOffset())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list clients").
			Mark(ierr.ErrDatabase)
	}
	return clients, nil
}

func (r *clientRepository) Update(ctx context.Context, c *client.Client) error {
	query := `
		UPDATE clients SET
			name = :name,
			email = :email,
			phone = :phone,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

	result, err := r.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "client", c.ID)
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE clients SET status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND status = $4`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusDeleted, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete client").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "client", id)
}
