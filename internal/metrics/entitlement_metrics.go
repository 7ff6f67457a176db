package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// EntitlementMetrics интерфейс для метрик движка подписок
type EntitlementMetrics interface {
	IncPurchase(tier string)
	IncCancellation(tier string)
	IncExpiration(tier string)
	IncEntitlementCheck(action string, allowed bool)
	IncUsageTracked(action string)
	ObservePurchaseAmount(amount float64, tier string)
}

type entitlementMetrics struct {
	log               *logger.Logger
	purchases         *prometheus.CounterVec
	lifecycle         *prometheus.CounterVec
	entitlementChecks *prometheus.CounterVec
	usageTracked      *prometheus.CounterVec
	purchaseAmount    *prometheus.HistogramVec
}

// NewEntitlementMetrics создает новые метрики движка подписок
func NewEntitlementMetrics(registry *prometheus.Registry, log *logger.Logger) EntitlementMetrics {
	purchases := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_purchases_total",
			Help: "The total number of subscription purchases by tier",
		},
		[]string{"tier"},
	)

	lifecycle := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_lifecycle_total",
			Help: "The total number of subscription lifecycle transitions",
		},
		[]string{"transition", "tier"},
	)

	entitlementChecks := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_checks_total",
			Help: "The total number of entitlement checks by action and result",
		},
		[]string{"action", "result"},
	)

	usageTracked := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_tracked_total",
			Help: "The total number of tracked metered actions",
		},
		[]string{"action"},
	)

	purchaseAmount := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subscription_purchase_amount",
			Help:    "Purchase amounts distribution",
			Buckets: prometheus.ExponentialBuckets(1, 4, 5), // 1, 4, 16, 64, 256
		},
		[]string{"tier"},
	)

	return &entitlementMetrics{
		log:               log,
		purchases:         purchases,
		lifecycle:         lifecycle,
		entitlementChecks: entitlementChecks,
		usageTracked:      usageTracked,
		purchaseAmount:    purchaseAmount,
	}
}

// IncPurchase увеличивает счетчик покупок подписок
func (m *entitlementMetrics) IncPurchase(tier string) {
	m.purchases.WithLabelValues(tier).Inc()
}

// IncCancellation увеличивает счетчик отмен подписок
func (m *entitlementMetrics) IncCancellation(tier string) {
	m.lifecycle.WithLabelValues("cancelled", tier).Inc()
}

// IncExpiration увеличивает счетчик истекших подписок
func (m *entitlementMetrics) IncExpiration(tier string) {
	m.lifecycle.WithLabelValues("expired", tier).Inc()
}

// IncEntitlementCheck увеличивает счетчик проверок разрешений
func (m *entitlementMetrics) IncEntitlementCheck(action string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.entitlementChecks.WithLabelValues(action, result).Inc()
}

// IncUsageTracked увеличивает счетчик учтенных действий
func (m *entitlementMetrics) IncUsageTracked(action string) {
	m.usageTracked.WithLabelValues(action).Inc()
}

// ObservePurchaseAmount записывает сумму покупки
func (m *entitlementMetrics) ObservePurchaseAmount(amount float64, tier string) {
	m.purchaseAmount.WithLabelValues(tier).Observe(amount)
}
