package domain

// Tier уровень подписки
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Tiers список всех известных тарифов в порядке возрастания
var Tiers = []Tier{TierFree, TierBasic, TierPremium, TierPro}

// ParseTier проверяет строку тарифа и возвращает Tier
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierBasic, TierPremium, TierPro:
		return Tier(s), nil
	default:
		return "", NewInvalidTierError(s)
	}
}

// IsPaid возвращает true для любого тарифа кроме бесплатного
func (t Tier) IsPaid() bool {
	return t != TierFree
}

// Status статус подписки
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// BillingInterval период тарификации
type BillingInterval string

const (
	BillingIntervalMonth   BillingInterval = "month"
	BillingIntervalForever BillingInterval = "forever"
)

// MeteredAction измеряемое действие, потребление которого учитывается против квот
type MeteredAction string

const (
	ActionViewLocation MeteredAction = "view_location"
	ActionAiRequest    MeteredAction = "ai_request"
	ActionExport       MeteredAction = "export"
)

// actionQuotaKeys таблица соответствия действий ключам квот.
// Закрытый набор: действие вне таблицы является ошибкой, а не разрешением.
var actionQuotaKeys = map[MeteredAction]string{
	ActionViewLocation: "locations",
	ActionAiRequest:    "aiRequests",
	ActionExport:       "exports",
}

// QuotaKey возвращает ключ квоты для действия
func (a MeteredAction) QuotaKey() (string, error) {
	key, ok := actionQuotaKeys[a]
	if !ok {
		return "", NewUnknownActionError(string(a))
	}
	return key, nil
}

// Quota лимит одного измеряемого действия.
// Безлимитность выражается явным флагом, а не числовым значением,
// чтобы исключить случайные сравнения с реальными лимитами.
type Quota struct {
	Limit     int64 `json:"limit"`
	Unlimited bool  `json:"unlimited,omitempty"`
}

// QuotaOf создает конечную квоту
func QuotaOf(limit int64) Quota {
	return Quota{Limit: limit}
}

// UnlimitedQuota создает безлимитную квоту
func UnlimitedQuota() Quota {
	return Quota{Unlimited: true}
}

// Allows возвращает true, если при текущем использовании действие разрешено
func (q Quota) Allows(used int64) bool {
	if q.Unlimited {
		return true
	}
	return used < q.Limit
}

// Remaining возвращает остаток квоты; остаток не бывает отрицательным,
// безлимитная квота возвращается как есть
func (q Quota) Remaining(used int64) Quota {
	if q.Unlimited {
		return q
	}
	remaining := q.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Quota{Limit: remaining}
}

// Plan статическая конфигурация тарифа
type Plan struct {
	Tier           Tier             `json:"tier"`
	Price          float64          `json:"price"`
	Interval       BillingInterval  `json:"interval"`
	Quotas         map[string]Quota `json:"quotas"`
	Features       []string         `json:"features"`
	LockedFeatures []string         `json:"locked_features"`
}

// Clone возвращает глубокую копию плана
func (p Plan) Clone() Plan {
	clone := p
	clone.Quotas = make(map[string]Quota, len(p.Quotas))
	for key, quota := range p.Quotas {
		clone.Quotas[key] = quota
	}
	clone.Features = append([]string(nil), p.Features...)
	clone.LockedFeatures = append([]string(nil), p.LockedFeatures...)
	return clone
}
