package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wandermap/subscription-service/internal/service"
	"github.com/wandermap/subscription-service/pkg/logger"
)

// PlanHandler обработчик для тарифных планов
type PlanHandler struct {
	svc service.EntitlementService
	log *logger.Logger
}

// NewPlanHandler создает новый обработчик планов
func NewPlanHandler(svc service.EntitlementService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		svc: svc,
		log: log,
	}
}

// GetPlans возвращает все тарифные планы для страницы цен
func (h *PlanHandler) GetPlans(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetAllPlans())
}
