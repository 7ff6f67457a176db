package catalog

import (
	"github.com/wandermap/subscription-service/internal/domain"
)

// Ключи квот измеряемых действий
const (
	QuotaLocations  = "locations"
	QuotaAiRequests = "aiRequests"
	QuotaExports    = "exports"
)

// plans статическая таблица тарифов. Таблица неизменяема: наружу
// всегда отдаются копии.
var plans = map[domain.Tier]domain.Plan{
	domain.TierFree: {
		Tier:     domain.TierFree,
		Price:    0,
		Interval: domain.BillingIntervalForever,
		Quotas: map[string]domain.Quota{
			QuotaLocations:  domain.QuotaOf(10),
			QuotaAiRequests: domain.QuotaOf(3),
			QuotaExports:    domain.QuotaOf(0),
		},
		Features: []string{
			"Interactive map",
			"Location cards",
		},
		LockedFeatures: []string{
			"AI Guide",
			"Map export",
			"Creator analytics",
		},
	},
	domain.TierBasic: {
		Tier:     domain.TierBasic,
		Price:    4.99,
		Interval: domain.BillingIntervalMonth,
		Quotas: map[string]domain.Quota{
			QuotaLocations:  domain.QuotaOf(100),
			QuotaAiRequests: domain.QuotaOf(10),
			QuotaExports:    domain.QuotaOf(5),
		},
		Features: []string{
			"Interactive map",
			"Location cards",
			"AI Guide",
			"Map export",
		},
		LockedFeatures: []string{
			"Creator analytics",
		},
	},
	domain.TierPremium: {
		Tier:     domain.TierPremium,
		Price:    9.99,
		Interval: domain.BillingIntervalMonth,
		Quotas: map[string]domain.Quota{
			QuotaLocations:  domain.UnlimitedQuota(),
			QuotaAiRequests: domain.QuotaOf(100),
			QuotaExports:    domain.UnlimitedQuota(),
		},
		Features: []string{
			"Interactive map",
			"Location cards",
			"AI Guide",
			"Map export",
			"Creator analytics",
		},
		LockedFeatures: []string{},
	},
	domain.TierPro: {
		Tier:     domain.TierPro,
		Price:    19.99,
		Interval: domain.BillingIntervalMonth,
		Quotas: map[string]domain.Quota{
			QuotaLocations:  domain.UnlimitedQuota(),
			QuotaAiRequests: domain.UnlimitedQuota(),
			QuotaExports:    domain.UnlimitedQuota(),
		},
		Features: []string{
			"Interactive map",
			"Location cards",
			"AI Guide",
			"Map export",
			"Creator analytics",
			"Priority moderation",
		},
		LockedFeatures: []string{},
	},
}

// PlanFor возвращает план для тарифа.
// Неизвестный тариф является жесткой ошибкой, а не пустым планом.
func PlanFor(tier domain.Tier) (domain.Plan, error) {
	plan, exists := plans[tier]
	if !exists {
		return domain.Plan{}, domain.NewInvalidTierError(string(tier))
	}
	return plan.Clone(), nil
}

// All возвращает копию таблицы тарифов для отображения страницы цен
func All() map[domain.Tier]domain.Plan {
	all := make(map[domain.Tier]domain.Plan, len(plans))
	for tier, plan := range plans {
		all[tier] = plan.Clone()
	}
	return all
}
