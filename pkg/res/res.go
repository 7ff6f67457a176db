package res

import (
	"encoding/json"
	"net/http"

	"github.com/wandermap/subscription-service/pkg/logger"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error     string `json:"error"`                // Сообщение об ошибке (для пользователя)
	ErrorCode string `json:"error_code,omitempty"` // Код ошибки (для программной обработки)
	Details   any    `json:"details,omitempty"`    // Детали ошибки (например, ошибки валидации)
}

// PaywallResponse представляет ответ о необходимости подписки.
// Код причины выбирает вызывающая сторона (Gate), а не движок подписок.
type PaywallResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`         // subscription_required, subscription_expired, upgrade_required, limit_reached
	Tier   string `json:"tier,omitempty"` // Текущий тариф пользователя
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse отправляет JSON ответ ошибки.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *logger.Logger) {
	JsonResponse(w, errResponse, status)
	log.Warnw("Request failed", "error", errResponse.Error, "code", errResponse.ErrorCode, "status", status)
}
