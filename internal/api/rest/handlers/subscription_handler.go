package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/subscription-service/internal/api/rest/middleware"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/internal/service"
	"github.com/wandermap/subscription-service/pkg/logger"
	"github.com/wandermap/subscription-service/pkg/req"
)

// SubscriptionHandler обработчик для подписок и разрешений
type SubscriptionHandler struct {
	svc service.EntitlementService
	log *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(svc service.EntitlementService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		svc: svc,
		log: log,
	}
}

// PurchaseRequest представляет запрос на покупку подписки
type PurchaseRequest struct {
	Tier    string                   `json:"tier" validate:"required"`
	Payment *service.PaymentMetadata `json:"payment,omitempty"`
}

// ActionEntitlement представляет состояние разрешения одного действия
type ActionEntitlement struct {
	Allowed   bool         `json:"allowed"`
	Remaining domain.Quota `json:"remaining"`
}

// GetSubscription возвращает подписку текущего пользователя
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID := middleware.UserID(c)

	sub, err := h.svc.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err, "Failed to get subscription")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// PurchaseSubscription обрабатывает покупку подписки
func (h *SubscriptionHandler) PurchaseSubscription(c *gin.Context) {
	userID := middleware.UserID(c)

	body, err := req.HandleBody[PurchaseRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	tier, err := domain.ParseTier(body.Tier)
	if err != nil {
		h.log.Warn("Purchase with invalid tier: %s", body.Tier)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription tier"})
		return
	}

	sub, err := h.svc.PurchaseSubscription(c.Request.Context(), userID, tier, body.Payment)
	if err != nil {
		h.handleError(c, err, "Failed to purchase subscription")
		return
	}

	h.log.Info("User %s purchased %s subscription", userID, tier)
	c.JSON(http.StatusCreated, sub)
}

// CancelSubscription отменяет подписку текущего пользователя
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	userID := middleware.UserID(c)

	sub, err := h.svc.CancelSubscription(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err, "Failed to cancel subscription")
		return
	}

	if sub == nil {
		// Записи не было: отмена является намеренным no-op
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// GetEntitlements возвращает состояние разрешений по всем измеряемым действиям
func (h *SubscriptionHandler) GetEntitlements(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := c.Request.Context()

	actions := []domain.MeteredAction{
		domain.ActionViewLocation,
		domain.ActionAiRequest,
		domain.ActionExport,
	}

	entitlements := make(map[string]ActionEntitlement, len(actions))
	for _, action := range actions {
		allowed, err := h.svc.CanPerformAction(ctx, userID, action)
		if err != nil {
			h.handleError(c, err, "Failed to check entitlement")
			return
		}

		remaining, err := h.svc.GetRemainingQuota(ctx, userID, action)
		if err != nil {
			h.handleError(c, err, "Failed to get remaining quota")
			return
		}

		entitlements[string(action)] = ActionEntitlement{
			Allowed:   allowed,
			Remaining: remaining,
		}
	}

	c.JSON(http.StatusOK, entitlements)
}

// GetPaymentInfo возвращает метаданные последнего платежа
func (h *SubscriptionHandler) GetPaymentInfo(c *gin.Context) {
	userID := middleware.UserID(c)

	sub, err := h.svc.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err, "Failed to get subscription")
		return
	}

	if sub.PaymentInfo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No payment recorded"})
		return
	}

	c.JSON(http.StatusOK, sub.PaymentInfo)
}

// CheckFeature проверяет доступность фичи для текущего пользователя
func (h *SubscriptionHandler) CheckFeature(c *gin.Context) {
	userID := middleware.UserID(c)

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feature query"})
		return
	}

	available, err := h.svc.IsFeatureAvailable(c.Request.Context(), userID, query)
	if err != nil {
		h.handleError(c, err, "Failed to check feature availability")
		return
	}

	c.JSON(http.StatusOK, gin.H{"feature": query, "available": available})
}

// TrackUsage учитывает одно выполнение измеряемого действия.
// Лимит здесь не проверяется: проверка выполняется отдельным вызовом.
func (h *SubscriptionHandler) TrackUsage(c *gin.Context) {
	userID := middleware.UserID(c)
	action := domain.MeteredAction(c.Param("action"))

	if err := h.svc.TrackUsage(c.Request.Context(), userID, action); err != nil {
		h.handleError(c, err, "Failed to track usage")
		return
	}

	c.Status(http.StatusNoContent)
}

// TrackAction возвращает обработчик, учитывающий конкретное действие.
// Используется за Gate: квоту проверяет middleware, учет остается здесь.
func (h *SubscriptionHandler) TrackAction(action domain.MeteredAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		if err := h.svc.TrackUsage(c.Request.Context(), userID, action); err != nil {
			h.handleError(c, err, "Failed to track usage")
			return
		}

		c.Status(http.StatusAccepted)
	}
}

// handleError отображает ошибки движка на HTTP статусы
func (h *SubscriptionHandler) handleError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrInvalidTier):
		h.log.Warn("%s: %v", message, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription tier"})
	case errors.Is(err, domain.ErrUnknownAction):
		h.log.Warn("%s: %v", message, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown metered action"})
	case errors.Is(err, domain.ErrStorageFailure):
		h.log.Error("%s: %v", message, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage failure"})
	default:
		h.log.Error("%s: %v", message, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
