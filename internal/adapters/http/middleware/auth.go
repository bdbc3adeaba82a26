// Package middleware - Authentication middleware.
//
// API авторизуется Bearer JWT (HS256), webhook платёжного шлюза - статичным
// ключом в заголовке "Authorization: Apikey <key>".
package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/infrastructure/auth"
	"github.com/Haleralex/marketbridge/internal/pkg/logger"
)

// AuthClaimsKey - ключ для хранения claims в контексте.
const AuthClaimsKey = "auth_claims"

// Роли, которые middleware знает по имени.
const (
	RoleCustomer = "Customer"
	RoleFactory  = "Factory"
	RoleAdmin    = "Admin"
)

// TokenValidator проверяет токен и возвращает claims.
type TokenValidator func(token string) (*AuthClaims, error)

// AuthConfig - конфигурация для authentication middleware.
type AuthConfig struct {
	TokenValidator TokenValidator
	// SkipPaths - пути, которые не требуют авторизации
	SkipPaths []string
}

// AuthClaims - данные авторизованного пользователя.
// CustomerID заполнен у покупателя, FactoryID у продавца.
type AuthClaims struct {
	UserID     uuid.UUID
	CustomerID *uuid.UUID
	FactoryID  *uuid.UUID
	Role       string
	ExpiresAt  time.Time
}

// JWTValidator возвращает TokenValidator поверх access token'ов auth.Parse.
func JWTValidator(cfg auth.Config) TokenValidator {
	return func(token string) (*AuthClaims, error) {
		parsed, err := auth.Parse(cfg, token)
		if err != nil {
			return nil, err
		}

		claims := &AuthClaims{
			UserID: uuid.MustParse(parsed.UserID),
			Role:   parsed.Role,
		}
		if parsed.ExpiresAt != nil {
			claims.ExpiresAt = parsed.ExpiresAt.Time
		}
		if claims.CustomerID, err = optionalID(parsed.CustomerID); err != nil {
			return nil, fmt.Errorf("invalid cid claim: %w", err)
		}
		if claims.FactoryID, err = optionalID(parsed.FactoryID); err != nil {
			return nil, fmt.Errorf("invalid fid claim: %w", err)
		}
		return claims, nil
	}
}

func optionalID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Auth middleware для проверки авторизации.
//
// Схема работы:
// 1. Извлекает токен из заголовка Authorization
// 2. Валидирует токен через TokenValidator
// 3. Кладёт claims в gin.Context и user_id в контекст логгера
// 4. Продолжает обработку или возвращает 401
func Auth(config *AuthConfig) gin.HandlerFunc {
	skipMap := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		if skipMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		token, ok := credentials(c, "Bearer")
		if !ok {
			abortWithUnauthorized(c, "Bearer token is required")
			return
		}

		if config.TokenValidator == nil {
			abortWithUnauthorized(c, "Authentication is not configured")
			return
		}
		claims, err := config.TokenValidator(token)
		if err != nil {
			abortWithUnauthorized(c, "Invalid or expired token")
			return
		}
		if !claims.ExpiresAt.IsZero() && claims.ExpiresAt.Before(time.Now()) {
			abortWithUnauthorized(c, "Token has expired")
			return
		}

		c.Set(AuthClaimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID.String()))

		c.Next()
	}
}

// WebhookAPIKey проверяет "Authorization: Apikey <key>" для callback'ов шлюза.
func WebhookAPIKey(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		key, ok := credentials(c, "Apikey")
		if !ok || len(expected) == 0 || subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			abortWithUnauthorized(c, "Invalid API key")
			return
		}
		c.Next()
	}
}

// credentials разбирает "<scheme> <value>" без учёта регистра схемы.
func credentials(c *gin.Context, scheme string) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return "", false
	}
	value := strings.TrimSpace(parts[1])
	return value, value != ""
}

// abortWithUnauthorized отправляет 401 ответ.
func abortWithUnauthorized(c *gin.Context, message string) {
	common.UnauthorizedResponse(c, message)
	c.Abort()
}

// RequireRole middleware проверяет роль пользователя.
//
// Используется после Auth middleware для проверки разрешений.
func RequireRole(roles ...string) gin.HandlerFunc {
	roleMap := make(map[string]bool)
	for _, role := range roles {
		roleMap[role] = true
	}

	return func(c *gin.Context) {
		claims := GetAuthClaims(c)
		if claims == nil || !roleMap[claims.Role] {
			common.ForbiddenResponse(c, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ============================================
// Helper functions для извлечения auth данных
// ============================================

// GetAuthClaims возвращает claims авторизованного пользователя или nil.
func GetAuthClaims(c *gin.Context) *AuthClaims {
	if v, exists := c.Get(AuthClaimsKey); exists {
		if claims, ok := v.(*AuthClaims); ok {
			return claims
		}
	}
	return nil
}

// GetAuthUserID возвращает ID авторизованного пользователя.
func GetAuthUserID(c *gin.Context) uuid.UUID {
	if claims := GetAuthClaims(c); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}
