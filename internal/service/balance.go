package service

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"github.com/packlane/packlane/internal/api/dto"
	"github.com/packlane/packlane/internal/domain/clientpackage"
	"github.com/packlane/packlane/internal/types"
)

const (
	// aggregationScanLimit caps how many rows a single aggregation pass
	// reads; tenants are small businesses, not data warehouses.
	aggregationScanLimit = 10000

	expiringSoonWindow = 30 * 24 * time.Hour

	topListSize = 5
)

// BalanceService answers "what does this client still have" and the
// tenant-level reporting rollups. Pure reads, recomputed on demand.
type BalanceService interface {
	GetClientBalance(ctx context.Context, clientID string) (*dto.ClientBalanceResponse, error)
	GetTenantStats(ctx context.Context, period types.StatsPeriod) (*dto.TenantStatsResponse, error)
}

type balanceService struct {
	ServiceParams
}

func NewBalanceService(params ServiceParams) BalanceService {
	return &balanceService{ServiceParams: params}
}

func (s *balanceService) GetClientBalance(ctx context.Context, clientID string) (*dto.ClientBalanceResponse, error) {
	if _, err := s.ClientRepo.Get(ctx, clientID); err != nil {
		return nil, err
	}

	filter := types.NewDefaultPackageFilter()
	filter.Limit = lo.ToPtr(aggregationScanLimit)
	filter.ClientID = &clientID
	filter.PackageStatus = lo.ToPtr(types.PackageStatusActive)

	packages, err := s.PackageRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ClientBalanceResponse{
		ClientID:        clientID,
		ActivePackages:  len(packages),
		TotalValue:      decimal.Zero,
		TotalPaid:       decimal.Zero,
		Outstanding:     decimal.Zero,
		ServiceBalances: make([]*dto.ServiceCreditBalance, 0),
	}

	byService := make(map[string]*dto.ServiceCreditBalance)
	for _, pkg := range packages {
		resp.TotalValue = resp.TotalValue.Add(pkg.DueAmount())
		resp.TotalPaid = resp.TotalPaid.Add(pkg.PaidAmount)

		for _, item := range pkg.Items {
			available := item.AvailableQuantity()
			if available == 0 {
				continue
			}
			balance, ok := byService[item.ServiceID]
			if !ok {
				balance = &dto.ServiceCreditBalance{ServiceID: item.ServiceID}
				byService[item.ServiceID] = balance
				resp.ServiceBalances = append(resp.ServiceBalances, balance)
			}
			balance.AvailableCredits += available
			if pkg.ExpiresAt != nil &&
				(balance.SoonestExpiry == nil || pkg.ExpiresAt.Before(*balance.SoonestExpiry)) {
				balance.SoonestExpiry = pkg.ExpiresAt
			}
		}
	}
	resp.Outstanding = resp.TotalValue.Sub(resp.TotalPaid)

	for _, balance := range resp.ServiceBalances {
		if svc, err := s.ServiceRepo.Get(ctx, balance.ServiceID); err == nil {
			balance.ServiceName = svc.Name
		}
	}
	sort.Slice(resp.ServiceBalances, func(i, j int) bool {
		return resp.ServiceBalances[i].ServiceID < resp.ServiceBalances[j].ServiceID
	})
	return resp, nil
}

func (s *balanceService) GetTenantStats(ctx context.Context, period types.StatsPeriod) (*dto.TenantStatsResponse, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	resp := &dto.TenantStatsResponse{
		PeriodStart:       period.Start,
		PeriodEnd:         period.End,
		SalesValue:        decimal.Zero,
		UsageValue:        decimal.Zero,
		ExpiringSoonValue: decimal.Zero,
		TopTemplates:      make([]*dto.TemplateSalesStat, 0),
		TopServices:       make([]*dto.ServiceUsageStat, 0),
	}

	var sold []*clientpackage.ClientPackage
	var usages []*clientpackage.UsageRecord
	var expiring []*clientpackage.ClientPackage

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		filter := types.NewDefaultPackageFilter()
		filter.Limit = lo.ToPtr(aggregationScanLimit)
		filter.PurchasedAfter = &period.Start

		packages, err := s.PackageRepo.List(ctx, filter)
		if err != nil {
			return err
		}
		sold = lo.Filter(packages, func(pkg *clientpackage.ClientPackage, _ int) bool {
			return pkg.PurchaseDate.Before(period.End)
		})
		return nil
	})
	p.Go(func(ctx context.Context) error {
		filter := types.NewDefaultUsageFilter()
		filter.Limit = lo.ToPtr(aggregationScanLimit)
		filter.UsageStatus = lo.ToPtr(types.UsageStatusUsed)
		filter.UsedAfter = &period.Start
		filter.UsedBefore = &period.End

		var err error
		usages, err = s.PackageRepo.ListUsages(ctx, filter)
		return err
	})
	p.Go(func(ctx context.Context) error {
		horizon := s.Clock.Now().Add(expiringSoonWindow)
		filter := types.NewDefaultPackageFilter()
		filter.Limit = lo.ToPtr(aggregationScanLimit)
		filter.PackageStatus = lo.ToPtr(types.PackageStatusActive)
		filter.ExpiresBefore = &horizon

		var err error
		expiring, err = s.PackageRepo.List(ctx, filter)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	s.foldSales(ctx, resp, sold)
	if err := s.foldUsage(ctx, resp, usages); err != nil {
		return nil, err
	}
	for _, pkg := range expiring {
		for _, item := range pkg.Items {
			value := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.AvailableQuantity())))
			resp.ExpiringSoonValue = resp.ExpiringSoonValue.Add(value)
		}
	}
	return resp, nil
}

func (s *balanceService) foldSales(ctx context.Context, resp *dto.TenantStatsResponse, sold []*clientpackage.ClientPackage) {
	resp.SalesCount = len(sold)

	byTemplate := make(map[string]*dto.TemplateSalesStat)
	for _, pkg := range sold {
		resp.SalesValue = resp.SalesValue.Add(pkg.DueAmount())
		if pkg.TemplateID == nil {
			continue
		}
		stat, ok := byTemplate[*pkg.TemplateID]
		if !ok {
			stat = &dto.TemplateSalesStat{TemplateID: *pkg.TemplateID, Value: decimal.Zero}
			byTemplate[*pkg.TemplateID] = stat
		}
		stat.Count++
		stat.Value = stat.Value.Add(pkg.DueAmount())
	}

	resp.TopTemplates = lo.Values(byTemplate)
	sort.Slice(resp.TopTemplates, func(i, j int) bool {
		if resp.TopTemplates[i].Count != resp.TopTemplates[j].Count {
			return resp.TopTemplates[i].Count > resp.TopTemplates[j].Count
		}
		return resp.TopTemplates[i].TemplateID < resp.TopTemplates[j].TemplateID
	})
	if len(resp.TopTemplates) > topListSize {
		resp.TopTemplates = resp.TopTemplates[:topListSize]
	}
	for _, stat := range resp.TopTemplates {
		if t, err := s.TemplateRepo.Get(ctx, stat.TemplateID); err == nil {
			stat.Name = t.Name
		}
	}
}

func (s *balanceService) foldUsage(ctx context.Context, resp *dto.TenantStatsResponse, usages []*clientpackage.UsageRecord) error {
	itemPrices := make(map[string]decimal.Decimal)
	byService := make(map[string]*dto.ServiceUsageStat)
	for _, u := range usages {
		price, ok := itemPrices[u.ItemID]
		if !ok {
			item, err := s.PackageRepo.GetItem(ctx, u.ItemID)
			if err != nil {
				return err
			}
			price = item.UnitPrice
			itemPrices[u.ItemID] = price
		}
		value := u.Value(price)

		resp.UsageCount += u.Quantity
		resp.UsageValue = resp.UsageValue.Add(value)

		stat, ok := byService[u.ServiceID]
		if !ok {
			stat = &dto.ServiceUsageStat{ServiceID: u.ServiceID, Value: decimal.Zero}
			byService[u.ServiceID] = stat
		}
		stat.Count += u.Quantity
		stat.Value = stat.Value.Add(value)
	}

	resp.TopServices = lo.Values(byService)
	sort.Slice(resp.TopServices, func(i, j int) bool {
		if resp.TopServices[i].Count != resp.TopServices[j].Count {
			return resp.TopServices[i].Count > resp.TopServices[j].Count
		}
		return resp.TopServices[i].ServiceID < resp.TopServices[j].ServiceID
	})
	if len(resp.TopServices) > topListSize {
		resp.TopServices = resp.TopServices[:topListSize]
	}
	for _, stat := range resp.TopServices {
		if svc, err := s.ServiceRepo.Get(ctx, stat.ServiceID); err == nil {
			stat.Name = svc.Name
		}
	}
	return nil
}
