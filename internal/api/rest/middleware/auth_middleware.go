package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wandermap/subscription-service/pkg/logger"
	"github.com/wandermap/subscription-service/pkg/res"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте
	ContextUserIDKey ContextKey = "userID"
	authHeaderPrefix            = "Bearer "
)

// TokenClaims утверждения токена доступа
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenValidator проверяет строку токена и возвращает утверждения
type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// HMACValidator валидатор токенов, подписанных общим секретом
type HMACValidator struct {
	secret []byte
}

// NewHMACValidator создает валидатор токенов с HMAC подписью
func NewHMACValidator(secret string) (*HMACValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	return &HMACValidator{secret: []byte(secret)}, nil
}

// Validate проверяет подпись и срок действия токена
func (v *HMACValidator) Validate(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// JWTMiddleware аутентифицирует запросы по bearer-токену
type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

// NewJWTMiddleware создает новый middleware аутентификации
func NewJWTMiddleware(validator TokenValidator, log *logger.Logger) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth проверяет токен и кладет ID пользователя в контекст запроса
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.handleAuthError(c, "Missing authorization token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, fmt.Sprintf("Token validation failed: %v", err))
			return
		}

		userID := claims.Subject
		if userID == "" {
			m.handleAuthError(c, "User ID (sub) missing in token")
			return
		}

		c.Set(string(ContextUserIDKey), userID)
		m.log.Debugw("User authenticated", "user_id", userID)
		c.Next()
	}
}

// handleAuthError отклоняет запрос с ошибкой аутентификации
func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warn("Authentication failed: %s", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{Error: "unauthorized"}, http.StatusUnauthorized)
	c.Abort()
}

// UserID возвращает ID аутентифицированного пользователя из контекста запроса
func UserID(c *gin.Context) string {
	return c.GetString(string(ContextUserIDKey))
}
