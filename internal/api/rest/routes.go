package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wandermap/subscription-service/internal/api/rest/handlers"
	"github.com/wandermap/subscription-service/internal/api/rest/middleware"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/internal/service"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(
	svc service.EntitlementService,
	authMiddleware *middleware.JWTMiddleware,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Инициализация обработчиков
	subscriptionHandler := handlers.NewSubscriptionHandler(svc, log)
	planHandler := handlers.NewPlanHandler(svc, log)
	gate := middleware.NewEntitlementGate(svc, log)

	v1 := r.Group("/api/v1")
	{
		// Страница цен не требует аутентификации
		v1.GET("/plans", planHandler.GetPlans)

		authed := v1.Group("", authMiddleware.RequireAuth())
		{
			// Подписка
			subscription := authed.Group("/subscription")
			{
				subscription.GET("", subscriptionHandler.GetSubscription)
				subscription.POST("/purchase", subscriptionHandler.PurchaseSubscription)
				subscription.POST("/cancel", subscriptionHandler.CancelSubscription)
				subscription.GET("/entitlements", subscriptionHandler.GetEntitlements)

				// Платежные метаданные существуют только у платных подписок
				subscription.GET("/payment", gate.RequirePaid(), subscriptionHandler.GetPaymentInfo)
			}

			// Доступность фич
			authed.GET("/features/availability", subscriptionHandler.CheckFeature)

			// Сырой учет использования: лимит не проверяется
			authed.POST("/usage/:action", subscriptionHandler.TrackUsage)

			// Защищенные действия: Gate проверяет квоту, обработчик учитывает
			// использование. Проверка и учет независимы друг от друга.
			actions := authed.Group("/actions")
			{
				actions.POST("/export", gate.RequireQuota(domain.ActionExport), subscriptionHandler.TrackAction(domain.ActionExport))
				actions.POST("/ai-request", gate.RequireQuota(domain.ActionAiRequest), subscriptionHandler.TrackAction(domain.ActionAiRequest))
			}
		}
	}

	return r
}
