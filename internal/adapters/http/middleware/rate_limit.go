// Package middleware - Rate Limiting middleware.
//
// Fixed window counter: каждый ключ имеет лимит запросов за окно.
// Счётчики живут в CounterStore: Redis в production (общие для всех реплик),
// in-memory по умолчанию.
package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
)

// CounterStore увеличивает счётчик ключа и ставит TTL окна на первом инкременте.
type CounterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RateLimitConfig - конфигурация для rate limiting.
type RateLimitConfig struct {
	// Name разделяет счётчики разных групп маршрутов
	Name string
	// Requests per window
	Limit int
	// Time window
	Window time.Duration
	// KeyFunc - ключ лимитирования, по умолчанию IP адрес
	KeyFunc func(*gin.Context) string
	// Store - хранилище счётчиков, по умолчанию in-memory
	Store CounterStore
	// Logger для ошибок хранилища
	Logger *slog.Logger
	// OnLimitReached - callback при достижении лимита
	OnLimitReached func(*gin.Context)
}

// DefaultRateLimitConfig - конфигурация по умолчанию.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Name:   "global",
		Limit:  100,
		Window: time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// RateLimit middleware для ограничения количества запросов.
//
// Headers:
// - X-RateLimit-Limit: Максимум запросов
// - X-RateLimit-Remaining: Оставшееся количество
// - Retry-After: Секунд до сброса (при 429)
//
// Если хранилище недоступно, запрос пропускается: лимит не должен ронять API.
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if config.Store == nil {
		config.Store = newMemoryCounter(config.Window)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return func(c *gin.Context) {
		key := config.Name + ":" + config.KeyFunc(c)
		count, err := config.Store.IncrWithTTL(c.Request.Context(), key, config.Window)
		if err != nil {
			config.Logger.WarnContext(c.Request.Context(), "rate limit store unavailable",
				slog.String("limiter", config.Name),
				slog.String("error", err.Error()),
			)
			c.Next()
			return
		}

		remaining := config.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > config.Limit {
			retrySeconds := int(config.Window.Seconds())
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retrySeconds))

			if config.OnLimitReached != nil {
				config.OnLimitReached(c)
			}

			common.TooManyRequestsResponse(c, retrySeconds)
			c.Abort()
			return
		}

		c.Next()
	}
}

// ============================================
// In-memory counter
// ============================================

// memoryCounter - счётчики одного процесса.
type memoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

func newMemoryCounter(w time.Duration) *memoryCounter {
	mc := &memoryCounter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	if w > 0 {
		go mc.cleanup(w * 2)
	}
	return mc
}

func (m *memoryCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// cleanup удаляет истёкшие окна.
func (m *memoryCounter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		now := m.now()
		for key, w := range m.windows {
			if !now.Before(w.resetAt) {
				delete(m.windows, key)
			}
		}
		m.mu.Unlock()
	}
}

// ============================================
// Endpoint-specific rate limiters
// ============================================

// OrderRateLimit - лимит на создание и изменение заказов, по пользователю.
func OrderRateLimit(store CounterStore) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Name:   "orders",
		Limit:  30,
		Window: time.Minute,
		Store:  store,
		KeyFunc: func(c *gin.Context) string {
			if claims := GetAuthClaims(c); claims != nil {
				return "user:" + claims.UserID.String()
			}
			return "ip:" + c.ClientIP()
		},
	})
}

// WebhookRateLimit - лимит для входящих callback'ов платёжного шлюза, по IP.
func WebhookRateLimit(store CounterStore) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		Name:   "webhook",
		Limit:  120,
		Window: time.Minute,
		Store:  store,
	})
}
