package types

import (
	"context"
	"time"
)

// BaseModel carries the audit and tenancy columns shared by every
// persisted row. Schema changes here need a matching migration.
type BaseModel struct {
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
}

// NewBaseModel stamps a fresh row with the tenant and actor from ctx.
// The timestamp comes from the caller's clock, never from time.Now.
func NewBaseModel(ctx context.Context, now time.Time) BaseModel {
	return BaseModel{
		TenantID:  GetTenantID(ctx),
		Status:    StatusPublished,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: GetUserID(ctx),
		UpdatedBy: GetUserID(ctx),
	}
}
