package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceCreditBalance is the per-service aggregate over a client's
// active packages
type ServiceCreditBalance struct {
	ServiceID        string     `json:"service_id"`
	ServiceName      string     `json:"service_name,omitempty"`
	AvailableCredits int        `json:"available_credits"`
	SoonestExpiry    *time.Time `json:"soonest_expiry,omitempty"`
}

// ClientBalanceResponse folds a client's active packages into money and
// credit totals
type ClientBalanceResponse struct {
	ClientID        string                  `json:"client_id"`
	ActivePackages  int                     `json:"active_packages"`
	TotalValue      decimal.Decimal         `json:"total_value"`
	TotalPaid       decimal.Decimal         `json:"total_paid"`
	Outstanding     decimal.Decimal         `json:"outstanding"`
	ServiceBalances []*ServiceCreditBalance `json:"service_balances"`
}

type TemplateSalesStat struct {
	TemplateID string          `json:"template_id"`
	Name       string          `json:"name,omitempty"`
	Count      int             `json:"count"`
	Value      decimal.Decimal `json:"value"`
}

type ServiceUsageStat struct {
	ServiceID string          `json:"service_id"`
	Name      string          `json:"name,omitempty"`
	Count     int             `json:"count"`
	Value     decimal.Decimal `json:"value"`
}

// TenantStatsResponse is the reporting rollup for a period
type TenantStatsResponse struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	SalesCount int             `json:"sales_count"`
	SalesValue decimal.Decimal `json:"sales_value"`

	UsageCount int             `json:"usage_count"`
	UsageValue decimal.Decimal `json:"usage_value"`

	// Value of credits on ACTIVE packages expiring within 30 days
	ExpiringSoonValue decimal.Decimal `json:"expiring_soon_value"`

	TopTemplates []*TemplateSalesStat `json:"top_templates"`
	TopServices  []*ServiceUsageStat  `json:"top_services"`
}
