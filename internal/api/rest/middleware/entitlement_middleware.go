package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/internal/service"
	"github.com/wandermap/subscription-service/pkg/logger"
	"github.com/wandermap/subscription-service/pkg/res"
)

// Коды причин пэйволла. За выбор причины отвечает Gate,
// движок подписок собственной логики выбора не предоставляет.
const (
	ReasonSubscriptionRequired = "subscription_required"
	ReasonSubscriptionExpired  = "subscription_expired"
	ReasonUpgradeRequired      = "upgrade_required"
	ReasonLimitReached         = "limit_reached"
)

// EntitlementGate охраняет защищенные маршруты, опрашивая движок подписок
// перед отдачей контента
type EntitlementGate struct {
	svc service.EntitlementService
	log *logger.Logger
}

// NewEntitlementGate создает новый route guard
func NewEntitlementGate(svc service.EntitlementService, log *logger.Logger) *EntitlementGate {
	return &EntitlementGate{
		svc: svc,
		log: log,
	}
}

// RequirePaid пропускает только пользователей с активной платной подпиской
func (g *EntitlementGate) RequirePaid() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)

		paid, err := g.svc.HasPaidSubscription(c.Request.Context(), userID)
		if err != nil {
			g.log.Error("Entitlement check failed for user %s: %v", userID, err)
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "entitlement check failed"}, http.StatusInternalServerError)
			c.Abort()
			return
		}

		if !paid {
			g.paywall(c, userID)
			return
		}

		c.Next()
	}
}

// RequireQuota пропускает запрос, пока квота действия не исчерпана.
// Учет использования остается за обработчиком: проверка и учет
// выполняются двумя независимыми вызовами без общей транзакции.
func (g *EntitlementGate) RequireQuota(action domain.MeteredAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)

		allowed, err := g.svc.CanPerformAction(c.Request.Context(), userID, action)
		if err != nil {
			g.log.Error("Quota check failed for user %s: %v", userID, err)
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "entitlement check failed"}, http.StatusInternalServerError)
			c.Abort()
			return
		}

		if !allowed {
			res.JsonResponse(c.Writer, res.PaywallResponse{
				Error:  "action limit reached",
				Reason: ReasonLimitReached,
			}, http.StatusPaymentRequired)
			c.Abort()
			return
		}

		c.Next()
	}
}

// paywall отвечает кодом причины, выбранным по состоянию подписки
func (g *EntitlementGate) paywall(c *gin.Context, userID string) {
	reason := ReasonSubscriptionRequired

	sub, err := g.svc.GetSubscription(c.Request.Context(), userID)
	if err == nil {
		switch {
		case sub.Status == domain.StatusExpired:
			reason = ReasonSubscriptionExpired
		case sub.Tier.IsPaid():
			// Платный тариф без активного статуса (отменен)
			reason = ReasonSubscriptionExpired
		case sub.Status == domain.StatusActive || sub.Status == domain.StatusTrial:
			// Активный бесплатный тариф: нужен апгрейд, а не подписка с нуля
			reason = ReasonUpgradeRequired
		}
	}

	tier := ""
	if sub != nil {
		tier = string(sub.Tier)
	}

	res.JsonResponse(c.Writer, res.PaywallResponse{
		Error:  "paid subscription required",
		Reason: reason,
		Tier:   tier,
	}, http.StatusPaymentRequired)
	c.Abort()
}
