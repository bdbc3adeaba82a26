// Package http - Router configuration for REST API.
//
// Router собирает все handlers и middleware в единую точку входа.
//
// Pattern: Composition Root
// - Все зависимости собираются здесь
// - Handlers получают только нужные им use cases
// - Middleware применяется к соответствующим группам routes
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/Haleralex/marketbridge/internal/adapters/http/common"
	"github.com/Haleralex/marketbridge/internal/adapters/http/handlers"
	"github.com/Haleralex/marketbridge/internal/adapters/http/middleware"
	"github.com/Haleralex/marketbridge/internal/application/ports"
)

// ============================================
// Router Configuration
// ============================================

// RouterConfig - конфигурация роутера.
type RouterConfig struct {
	// Logger для middleware
	Logger *slog.Logger
	// ServiceName для otelgin spans
	ServiceName string
	// TracerProvider; nil - глобальный provider
	TracerProvider trace.TracerProvider
	// Version приложения
	Version string
	// BuildTime время сборки
	BuildTime string
	// Environment (development, staging, production)
	Environment string
	// AllowedOrigins для CORS (production)
	AllowedOrigins []string
	// TokenValidator проверяет Bearer токены
	TokenValidator middleware.TokenValidator
	// WebhookAPIKey - ключ SePay ("Authorization: Apikey <key>")
	WebhookAPIKey string
	// RateLimitStore - счётчики rate limit; nil - in-memory
	RateLimitStore middleware.CounterStore
	// RequestsPerMinute - глобальный лимит на IP; 0 - значение по умолчанию
	RequestsPerMinute int
	// HealthChecks - проверки зависимостей для /ready
	HealthChecks map[string]handlers.HealthCheck
}

// DefaultRouterConfig - конфигурация по умолчанию для development.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:         slog.Default(),
		ServiceName:    "marketbridge",
		Version:        "dev",
		BuildTime:      "unknown",
		Environment:    "development",
		AllowedOrigins: []string{"*"},
	}
}

// ============================================
// Use Case Providers
// ============================================

// OrderUseCases - provider для order use cases.
type OrderUseCases struct {
	CreateOrder       handlers.CreateOrderUseCase
	CancelOrder       handlers.CancelOrderUseCase
	UpdateStatus      handlers.UpdateOrderStatusUseCase
	GetOrder          handlers.GetOrderUseCase
	ListOrders        handlers.ListOrdersUseCase
	OrderTransactions handlers.GetOrderTransactionsUseCase
}

// WalletUseCases - provider для wallet use cases.
type WalletUseCases struct {
	GetBalance       handlers.GetBalanceUseCase
	UserTransactions handlers.GetUserTransactionsUseCase
	TransferFunds    handlers.TransferFundsUseCase
}

// PaymentUseCases - provider для webhook'а платёжного шлюза.
type PaymentUseCases struct {
	ReconcilePayment handlers.ReconcilePaymentUseCase
	DeliveryGuard    ports.DeliveryGuard
}

// ============================================
// Router Builder
// ============================================

// RouterBuilder - builder для создания роутера.
//
// Pattern: Builder
// - Позволяет пошагово настроить роутер
// - Проще тестировать
// - Можно переиспользовать части конфигурации
type RouterBuilder struct {
	config   *RouterConfig
	orders   *OrderUseCases
	wallets  *WalletUseCases
	payments *PaymentUseCases
}

// NewRouterBuilder создаёт новый builder.
func NewRouterBuilder(config *RouterConfig) *RouterBuilder {
	if config == nil {
		config = DefaultRouterConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ServiceName == "" {
		config.ServiceName = "marketbridge"
	}
	return &RouterBuilder{
		config: config,
	}
}

// WithOrderUseCases добавляет order use cases.
func (b *RouterBuilder) WithOrderUseCases(useCases *OrderUseCases) *RouterBuilder {
	b.orders = useCases
	return b
}

// WithWalletUseCases добавляет wallet use cases.
func (b *RouterBuilder) WithWalletUseCases(useCases *WalletUseCases) *RouterBuilder {
	b.wallets = useCases
	return b
}

// WithPaymentUseCases добавляет webhook SePay.
func (b *RouterBuilder) WithPaymentUseCases(useCases *PaymentUseCases) *RouterBuilder {
	b.payments = useCases
	return b
}

// Build создаёт сконфигурированный Gin Engine.
func (b *RouterBuilder) Build() *gin.Engine {
	// Настраиваем режим Gin
	if b.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Создаём router без default middleware
	router := gin.New()

	// Настраиваем кастомные валидаторы
	handlers.SetupValidator()

	// ============================================
	// Global Middleware
	// ============================================

	// 1. Recovery - должен быть первым
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           b.config.Logger,
		EnableStackTrace: b.config.Environment != "production",
	}))

	// 2. Tracing: span на запрос, дальше trace_id попадает в логи
	var otelOpts []otelgin.Option
	if b.config.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(b.config.TracerProvider))
	}
	router.Use(otelgin.Middleware(b.config.ServiceName, otelOpts...))

	// 3. Request ID
	router.Use(middleware.RequestID())

	// 4. CORS
	if b.config.Environment == "production" {
		router.Use(middleware.CORS(middleware.ProductionCORSConfig(b.config.AllowedOrigins)))
	} else {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}

	// 5. Logging
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    b.config.Logger,
		SkipPaths: []string{"/health", "/live", "/ready", "/metrics"},
	}))

	// 6. Rate Limiting (global)
	globalLimit := middleware.DefaultRateLimitConfig()
	globalLimit.Store = b.config.RateLimitStore
	globalLimit.Logger = b.config.Logger
	if b.config.RequestsPerMinute > 0 {
		globalLimit.Limit = b.config.RequestsPerMinute
	}
	router.Use(middleware.RateLimit(globalLimit))

	// 7. Metrics (Prometheus)
	router.Use(middleware.Metrics())

	// ============================================
	// Metrics Endpoint (no auth)
	// ============================================

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============================================
	// Health Check Routes (no auth)
	// ============================================

	handlers.NewHealthHandler(b.config.HealthChecks, b.config.Version, b.config.BuildTime).
		RegisterRoutes(router)

	// ============================================
	// API v1 Routes
	// ============================================

	v1 := router.Group("/api/v1")

	// Webhook платёжного шлюза: свой ключ вместо JWT
	if b.payments != nil {
		handlers.NewSePayWebhookHandler(b.payments.ReconcilePayment, b.payments.DeliveryGuard, b.config.Logger).
			RegisterRoutes(v1,
				middleware.WebhookAPIKey(b.config.WebhookAPIKey),
				middleware.WebhookRateLimit(b.config.RateLimitStore),
			)
	}

	// Protected routes (auth required)
	protectedGroup := v1.Group("")
	protectedGroup.Use(middleware.Auth(&middleware.AuthConfig{
		TokenValidator: b.config.TokenValidator,
	}))
	{
		if b.orders != nil {
			handlers.NewOrderHandler(
				b.orders.CreateOrder,
				b.orders.CancelOrder,
				b.orders.UpdateStatus,
				b.orders.GetOrder,
				b.orders.ListOrders,
				b.orders.OrderTransactions,
			).RegisterRoutes(protectedGroup, middleware.OrderRateLimit(b.config.RateLimitStore))
		}

		if b.wallets != nil {
			handlers.NewWalletHandler(
				b.wallets.GetBalance,
				b.wallets.UserTransactions,
				b.wallets.TransferFunds,
			).RegisterRoutes(protectedGroup)
		}
	}

	// ============================================
	// 404 Handler
	// ============================================

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, http.StatusNotFound, &common.APIError{
			Code:    common.ErrCodeNotFound,
			Message: "Endpoint not found",
			Details: map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			},
		})
	})

	return router
}

// NewRouter создаёт роутер с базовой конфигурацией (для простых случаев).
func NewRouter(config *RouterConfig) *gin.Engine {
	return NewRouterBuilder(config).Build()
}
