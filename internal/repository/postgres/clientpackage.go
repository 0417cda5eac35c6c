package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/packlane/packlane/internal/domain/clientpackage"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/postgres"
	"github.com/packlane/packlane/internal/types"
)

type clientPackageRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

// NewClientPackageRepository creates a new instance of client package repository
func NewClientPackageRepository(db *postgres.DB, logger *logger.Logger) clientpackage.Repository {
	return &clientPackageRepository{
		db:     db,
		logger: logger,
	}
}

func (r *clientPackageRepository) Create(ctx context.Context, pkg *clientpackage.ClientPackage, items []*clientpackage.PackageItem) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO client_packages (
				id, client_id, template_id, name,
				original_price, sale_price, discount_amount, paid_amount,
				payment_method, installments, package_status, transferable,
				purchase_date, activation_date, expires_at, completed_at, cancelled_at,
				validity_days, validity_anchor, notes,
				tenant_id, status, created_at, updated_at, created_by, updated_by
			) VALUES (
				:id, :client_id, :template_id, :name,
				:original_price, :sale_price, :discount_amount, :paid_amount,
				:payment_method, :installments, :package_status, :transferable,
				:purchase_date, :activation_date, :expires_at, :completed_at, :cancelled_at,
				:validity_days, :validity_anchor, :notes,
				:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
			)`

		if _, err := r.db.NamedExecContext(ctx, query, pkg); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to create client package").
				WithReportableDetails(map[string]any{
					"client_id": pkg.ClientID,
				}).
				Mark(ierr.ErrDatabase)
		}

		itemQuery := `
			INSERT INTO package_items (
				id, package_id, service_id, quantity, used_quantity,
				cancelled_quantity, unit_price, version,
				tenant_id, status, created_at, updated_at, created_by, updated_by
			) VALUES (
				:id, :package_id, :service_id, :quantity, :used_quantity,
				:cancelled_quantity, :unit_price, :version,
				:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
			)`

		for _, item := range items {
			if _, err := r.db.NamedExecContext(ctx, itemQuery, item); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to create package item").
					WithReportableDetails(map[string]any{
						"package_id": pkg.ID,
						"service_id": item.ServiceID,
					}).
					Mark(ierr.ErrDatabase)
			}
		}
		return nil
	})
}

func (r *clientPackageRepository) Get(ctx context.Context, id string) (*clientpackage.ClientPackage, error) {
	query := `
		SELECT * FROM client_packages
		WHERE id = $1 AND tenant_id = $2 AND status != $3`

	// Inside a transaction the read locks the row, so status transitions
	// on the package serialize without a second version column.
	if _, ok := postgres.GetTx(ctx); ok {
		query += ` FOR UPDATE`
	}

	var pkg clientpackage.ClientPackage
	err := r.db.GetQuerier(ctx).GetContext(ctx, &pkg, query, id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("client package not found").
				WithHint("The referenced package does not exist").
				WithReportableDetails(map[string]any{
					"package_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get client package").
			Mark(ierr.ErrDatabase)
	}

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg.Items = items
	return &pkg, nil
}

// buildPackageFilter renders the WHERE conditions for a package filter.
// Conditions use named parameters collected into params.
func buildPackageFilter(ctx context.Context, filter *types.PackageFilter, params map[string]interface{}) []string {
	conds := []string{"tenant_id = :tenant_id", "status = :status"}
	params["tenant_id"] = types.GetTenantID(ctx)
	params["status"] = filter.GetStatus()

	if filter.ClientID != nil {
		conds = append(conds, "client_id = :client_id")
		params["client_id"] = *filter.ClientID
	}
	if filter.TemplateID != nil {
		conds = append(conds, "template_id = :filter_template_id")
		params["filter_template_id"] = *filter.TemplateID
	}
	if filter.PackageStatus != nil {
		conds = append(conds, "package_status = :package_status")
		params["package_status"] = *filter.PackageStatus
	}
	if filter.ExpiresBefore != nil {
		conds = append(conds, "expires_at IS NOT NULL AND expires_at < :expires_before")
		params["expires_before"] = *filter.ExpiresBefore
	}
	if filter.PurchasedAfter != nil {
		conds = append(conds, "purchase_date >= :purchased_after")
		params["purchased_after"] = *filter.PurchasedAfter
	}
	return conds
}

func (r *clientPackageRepository) List(ctx context.Context, filter *types.PackageFilter) ([]*clientpackage.ClientPackage, error) {
	if filter == nil {
		filter = types.NewDefaultPackageFilter()
	}

	params := map[string]interface{}{
		"limit":  filter.GetLimit(),
		"offset": filter.GetOffset(),
	}
	conds := buildPackageFilter(ctx, filter, params)

	query := fmt.Sprintf(`
		SELECT * FROM client_packages
		WHERE %s
		ORDER BY purchase_date DESC
		LIMIT :limit OFFSET :offset`, strings.Join(conds, " AND "))

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list client packages").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	packages := make([]*clientpackage.ClientPackage, 0)
	for rows.Next() {
		var pkg clientpackage.ClientPackage
		if err := rows.StructScan(&pkg); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan client package").
				Mark(ierr.ErrDatabase)
		}
		packages = append(packages, &pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate client packages").
			Mark(ierr.ErrDatabase)
	}

	for _, pkg := range packages {
		items, err := r.GetItems(ctx, pkg.ID)
		if err != nil {
			return nil, err
		}
		pkg.Items = items
	}
	return packages, nil
}

func (r *clientPackageRepository) Count(ctx context.Context, filter *types.PackageFilter) (int, error) {
	if filter == nil {
		filter = types.NewDefaultPackageFilter()
	}

	params := map[string]interface{}{}
	conds := buildPackageFilter(ctx, filter, params)

	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM client_packages
		WHERE %s`, strings.Join(conds, " AND "))

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count client packages").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, ierr.WithError(err).
				WithHint("Failed to scan package count").
				Mark(ierr.ErrDatabase)
		}
	}
	return count, nil
}

func (r *clientPackageRepository) Update(ctx context.Context, pkg *clientpackage.ClientPackage) error {
	query := `
		UPDATE client_packages SET
			client_id = :client_id,
			paid_amount = :paid_amount,
			package_status = :package_status,
			activation_date = :activation_date,
			expires_at = :expires_at,
			completed_at = :completed_at,
			cancelled_at = :cancelled_at,
			notes = :notes,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

	result, err := r.db.NamedExecContext(ctx, query, pkg)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update client package").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "client package", pkg.ID)
}

func (r *clientPackageRepository) GetItems(ctx context.Context, packageID string) ([]*clientpackage.PackageItem, error) {
	query := `
		SELECT * FROM package_items
		WHERE package_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at ASC`

	items := make([]*clientpackage.PackageItem, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query,
		packageID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load package items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}

func (r *clientPackageRepository) GetItem(ctx context.Context, id string) (*clientpackage.PackageItem, error) {
	query := `
		SELECT * FROM package_items
		WHERE id = $1 AND tenant_id = $2 AND status = $3`

	var item clientpackage.PackageItem
	err := r.db.GetQuerier(ctx).GetContext(ctx, &item, query, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("package item not found").
				WithHint("The referenced package item does not exist").
				WithReportableDetails(map[string]any{
					"item_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get package item").
			Mark(ierr.ErrDatabase)
	}
	return &item, nil
}

func (r *clientPackageRepository) GetItemByService(ctx context.Context, packageID, serviceID string) (*clientpackage.PackageItem, error) {
	query := `
		SELECT * FROM package_items
		WHERE package_id = $1 AND service_id = $2 AND tenant_id = $3 AND status = $4`

	var item clientpackage.PackageItem
	err := r.db.GetQuerier(ctx).GetContext(ctx, &item, query,
		packageID, serviceID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("service not included in package").
				WithHint("The package does not include the requested service").
				WithReportableDetails(map[string]any{
					"package_id": packageID,
					"service_id": serviceID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get package item by service").
			Mark(ierr.ErrDatabase)
	}
	return &item, nil
}

func (r *clientPackageRepository) ListItemsByClient(ctx context.Context, clientID string) ([]*clientpackage.PackageItem, error) {
	query := `
		SELECT i.* FROM package_items i
		JOIN client_packages p ON p.id = i.package_id
		WHERE p.client_id = $1 AND i.tenant_id = $2
		AND i.status = $3 AND p.status = $3
		ORDER BY i.created_at ASC`

	items := make([]*clientpackage.PackageItem, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &items, query,
		clientID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list package items for client").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}

func (r *clientPackageRepository) UpdateItemCounters(ctx context.Context, item *clientpackage.PackageItem, expectedVersion int) error {
	// The version guard makes the counter write an atomic compare-and-swap;
	// a concurrent writer that got there first leaves zero rows affected.
	query := `
		UPDATE package_items SET
			used_quantity = :used_quantity,
			cancelled_quantity = :cancelled_quantity,
			version = :expected_version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id
		AND version = :expected_version AND status = :status`

	params := map[string]interface{}{
		"id":                 item.ID,
		"used_quantity":      item.UsedQuantity,
		"cancelled_quantity": item.CancelledQuantity,
		"expected_version":   expectedVersion,
		"updated_at":         item.UpdatedAt,
		"updated_by":         item.UpdatedBy,
		"tenant_id":          types.GetTenantID(ctx),
		"status":             types.StatusPublished,
	}

	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update package item counters").
			Mark(ierr.ErrDatabase)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		return ierr.NewError("package item was modified concurrently").
			WithHint("The item counters changed since they were read").
			WithReportableDetails(map[string]any{
				"item_id":          item.ID,
				"expected_version": expectedVersion,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	item.Version = expectedVersion + 1
	return nil
}

func (r *clientPackageRepository) CreateUsage(ctx context.Context, u *clientpackage.UsageRecord) error {
	query := `
		INSERT INTO usage_records (
			id, item_id, package_id, service_id, quantity, used_at,
			appointment_id, provider_id, usage_status,
			cancel_reason, cancelled_at, cancelled_by,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :item_id, :package_id, :service_id, :quantity, :used_at,
			:appointment_id, :provider_id, :usage_status,
			:cancel_reason, :cancelled_at, :cancelled_by,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record usage").
			WithReportableDetails(map[string]any{
				"package_id": u.PackageID,
				"service_id": u.ServiceID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *clientPackageRepository) GetUsage(ctx context.Context, id string) (*clientpackage.UsageRecord, error) {
	query := `
		SELECT * FROM usage_records
		WHERE id = $1 AND tenant_id = $2 AND status = $3`

	var u clientpackage.UsageRecord
	err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("usage record not found").
				WithHint("The referenced usage record does not exist").
				WithReportableDetails(map[string]any{
					"usage_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get usage record").
			Mark(ierr.ErrDatabase)
	}
	return &u, nil
}

func (r *clientPackageRepository) UpdateUsage(ctx context.Context, u *clientpackage.UsageRecord) error {
	query := `
		UPDATE usage_records SET
			usage_status = :usage_status,
			cancel_reason = :cancel_reason,
			cancelled_at = :cancelled_at,
			cancelled_by = :cancelled_by,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND tenant_id = :tenant_id AND status = :status`

	result, err := r.db.NamedExecContext(ctx, query, u)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update usage record").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "usage record", u.ID)
}

func (r *clientPackageRepository) ListUsages(ctx context.Context, filter *types.UsageFilter) ([]*clientpackage.UsageRecord, error) {
	if filter == nil {
		filter = types.NewDefaultUsageFilter()
	}

	conds := []string{"tenant_id = :tenant_id", "status = :status"}
	params := map[string]interface{}{
		"tenant_id": types.GetTenantID(ctx),
		"status":    filter.GetStatus(),
		"limit":     filter.GetLimit(),
		"offset":    filter.GetOffset(),
	}

	if filter.PackageID != nil {
		conds = append(conds, "package_id = :package_id")
		params["package_id"] = *filter.PackageID
	}
	if filter.ItemID != nil {
		conds = append(conds, "item_id = :item_id")
		params["item_id"] = *filter.ItemID
	}
	if filter.UsageStatus != nil {
		conds = append(conds, "usage_status = :usage_status")
		params["usage_status"] = *filter.UsageStatus
	}
	if filter.UsedAfter != nil {
		conds = append(conds, "used_at >= :used_after")
		params["used_after"] = *filter.UsedAfter
	}
	if filter.UsedBefore != nil {
		conds = append(conds, "used_at < :used_before")
		params["used_before"] = *filter.UsedBefore
	}

	query := fmt.Sprintf(`
		SELECT * FROM usage_records
		WHERE %s
		ORDER BY used_at DESC
		LIMIT :limit OFFSET :offset`, strings.Join(conds, " AND "))

	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage records").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	usages := make([]*clientpackage.UsageRecord, 0)
	for rows.Next() {
		var u clientpackage.UsageRecord
		if err := rows.StructScan(&u); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan usage record").
				Mark(ierr.ErrDatabase)
		}
		usages = append(usages, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to iterate usage records").
			Mark(ierr.ErrDatabase)
	}
	return usages, nil
}

func (r *clientPackageRepository) CreatePayment(ctx context.Context, p *clientpackage.PackagePayment) error {
	query := `
		INSERT INTO package_payments (
			id, package_id, amount, payment_method, receipt_number, paid_at, notes,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :package_id, :amount, :payment_method, :receipt_number, :paid_at, :notes,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record package payment").
			WithReportableDetails(map[string]any{
				"package_id": p.PackageID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *clientPackageRepository) ListPayments(ctx context.Context, packageID string) ([]*clientpackage.PackagePayment, error) {
	query := `
		SELECT * FROM package_payments
		WHERE package_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY paid_at ASC`

	payments := make([]*clientpackage.PackagePayment, 0)
	err := r.db.GetQuerier(ctx).SelectContext(ctx, &payments, query,
		packageID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list package payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}

func (r *clientPackageRepository) ExpireOverdue(ctx context.Context, before time.Time, batchSize int) (int, error) {
	// Batched so a large tenant backlog does not hold one long transaction.
	// SKIP LOCKED lets concurrent sweep runs partition the work instead of
	// blocking on each other.
	query := `
		UPDATE client_packages SET
			package_status = $1,
			updated_at = now()
		WHERE id IN (
			SELECT id FROM client_packages
			WHERE package_status = $2
			AND expires_at IS NOT NULL AND expires_at < $3
			AND status = $4
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)`

	total := 0
	for {
		result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
			types.PackageStatusExpired, types.PackageStatusActive, before,
			types.StatusPublished, batchSize)
		if err != nil {
			return total, ierr.WithError(err).
				WithHint("Failed to expire overdue packages").
				Mark(ierr.ErrDatabase)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, ierr.WithError(err).
				WithHint("Failed to read affected rows").
				Mark(ierr.ErrDatabase)
		}
		total += int(affected)
		if int(affected) < batchSize {
			return total, nil
		}
	}
}
