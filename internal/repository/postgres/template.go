package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/packlane/packlane/internal/domain/template"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
	"github.com/packlane/packlane/internal/types"
)

type templateRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewTemplateRepository creates a new instance of package template repository
func NewTemplateRepository(db *postgres.DB, logger *logger.Logger) template.Repository {
	return &templateRepository{
		db:     db,
		logger: logger,
	}
}

func (r *templateRepository) Create(ctx context.Context, t *template.PackageTemplate) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO package_templates (
				id, name, description, price, validity_days, validity_anchor,
				allow_partial_use, transferable, version,
				tenant_id, status, created_at, updated_at, created_by, updated_by
			) VALUES (
				:id, :name, :description, :price, :validity_days, :validity_anchor,
				:allow_partial_use, :transferable, :version,
				:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
			)`

		if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create package template").
				Mark(ierr.ErrDatabase)
		}

		return r.insertItems(ctx, t.Items)
	})
}

func (r *templateRepository) insertItems(ctx context.Context, items []*template.TemplateItem) error {
	query := `
		INSERT INTO package_template_items (
			id, template_id, service_id, quantity, unit_price,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :template_id, :service_id, :quantity, :unit_price,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	for _, item := range items {
		if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create template item").
				WithReportableDetails(map[string]any{
					"service_id": item.ServiceID,
				}).
				Mark(ierr.ErrDatabase)
		}
	}
	return nil
}

func (r *templateRepository) Get(ctx context.Context, id string) (*template.PackageTemplate, error) {
	query := `
		SELECT * FROM package_templates
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	var t template.PackageTemplate
	err := r.db.GetQuerier(ctx).GetContext(ctx, &t, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("package template not found").
				WithHint("The referenced package template does not exist").
				WithReportableDetails(map[string]any{
					"template_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get package template").
			Mark(ierr.ErrDatabase)
	}

	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return &t, nil
}

func (r *templateRepository) getItems(ctx context.Context, templateID string) ([]*template.TemplateItem, error) {
	query := `
		SELECT * FROM package_template_items
		WHERE template_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at ASC`

	items := make([]*template.TemplateItem, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query,
		templateID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load template items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}

func (r *templateRepository) List(ctx context.Context, filter *types.TemplateFilter) ([]*template.PackageTemplate, error) {
	if filter == nil {
		filter = types.NewDefaultTemplateFilter()
	}

	query := `
		SELECT DISTINCT t.* FROM package_templates t
		LEFT JOIN package_template_items i ON i.template_id = t.id
		WHERE t.tenant_id = :tenant_id AND t.status = :status
		AND (:service_id = '' OR i.service_id = :service_id)
		ORDER BY t.created_at DESC
		LIMIT :limit OFFSET :offset`

	params := map[string]interface{}{
		"tenant_id":  types.GetTenantID(ctx),
		"status":     filter.GetStatus(),
		"service_id": types.FromNillableString(filter.ServiceID),
		"limit":      filter.GetLimit(),
		"offset":     filter.GetOffset(),
	}

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list package templates").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	templates := make([]*template.PackageTemplate, 0)
	for rows.Next() {
		var t template.PackageTemplate
		if err := rows.StructScan(&t); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan package template").
				Mark(ierr.ErrDatabase)
		}
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate package templates").
			Mark(ierr.ErrDatabase)
	}

	for _, t := range templates {
		items, err := r.getItems(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.Items = items
	}
	return templates, nil
}

func (r *templateRepository) Count(ctx context.Context, filter *types.TemplateFilter) (int, error) {
	if filter == nil {
		filter = types.NewDefaultTemplateFilter()
	}

	query := `
		SELECT COUNT(DISTINCT t.id) FROM package_templates t
		LEFT JOIN package_template_items i ON i.template_id = t.id
		WHERE t.tenant_id = $1 AND t.status = $2
		AND ($3 = '' OR i.service_id = $3)`

	var count int
	err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query,
		types.GetTenantID(ctx), filter.GetStatus(), types.FromNillableString(filter.ServiceID))
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count package templates").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *templateRepository) Update(ctx context.Context, t *template.PackageTemplate) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		query := `
			UPDATE package_templates SET
				name = :name,
				description = :description,
				price = :price,
				validity_days = :validity_days,
				validity_anchor = :validity_anchor,
				allow_partial_use = :allow_partial_use,
				transferable = :transferable,
				updated_at = :updated_at,
				updated_by = :updated_by
			WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

		result, err := r.db.NamedExecContext(ctx, query, t)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to update package template").
				Mark(ierr.ErrDatabase)
		}
		if err := requireRowAffected(result, "package template", t.ID); err != nil {
			return err
		}

		// Replace items wholesale; the template service only allows this
		// while the template is unsold.
		del := `
			UPDATE package_template_items SET status = $1, updated_at = now()
			WHERE template_id = $2 AND tenant_id = $3 AND status = $4`
		if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, del,
			types.StatusDeleted, t.ID, types.GetTenantID(ctx), types.StatusPublished); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to replace template items").
				Mark(ierr.ErrDatabase)
		}

		return r.insertItems(ctx, t.Items)
	})
}

func (r *templateRepository) Archive(ctx context.Context, id string) error {
	query := `
		UPDATE package_templates SET status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND status = $4`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusArchived, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to archive package template").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "package template", id)
}

func (r *templateRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE package_templates SET status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND status != $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.StatusDeleted, id, types.GetTenantID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to delete package template").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "package template", id)
}

func (r *templateRepository) CountSoldPackages(ctx context.Context, templateID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM client_packages
		WHERE template_id = $1 AND tenant_id = $2 AND status = $3`

	var count int
	err := r.db.GetQuerier(ctx).GetContext(ctx, &count, query,
		templateID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count sold packages for template").
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}
