// Package container - Dependency Injection container for the application.
//
// Container управляет жизненным циклом всех зависимостей:
// - Создание (lazy initialization)
// - Доступ (getters)
// - Закрытие (cleanup)
//
// Pattern: Composition Root
// - Все зависимости собираются в одном месте
// - Command use cases оборачиваются в pipeline здесь, а не в самих use cases
// - Хранилище выбирается конфигурацией: PostgreSQL или in-memory
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/Haleralex/marketbridge/internal/adapters/http"
	"github.com/Haleralex/marketbridge/internal/adapters/http/handlers"
	"github.com/Haleralex/marketbridge/internal/adapters/http/middleware"
	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/pipeline"
	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/application/usecases/order"
	"github.com/Haleralex/marketbridge/internal/config"
	"github.com/Haleralex/marketbridge/internal/infrastructure/auth"
	rediscache "github.com/Haleralex/marketbridge/internal/infrastructure/cache/redis"
	"github.com/Haleralex/marketbridge/internal/infrastructure/persistence/memory"
	"github.com/Haleralex/marketbridge/internal/infrastructure/persistence/postgres"
	"github.com/Haleralex/marketbridge/internal/pkg/logger"
	"github.com/Haleralex/marketbridge/internal/pkg/tracing"
)

// commandRetries - повторы команды при transient ошибках хранилища.
const commandRetries = 2

// poolStatsInterval - период публикации статистики пула в Prometheus.
const poolStatsInterval = 15 * time.Second

// ============================================
// Container
// ============================================

// Container - DI контейнер приложения.
type Container struct {
	config *config.Config
	logger *slog.Logger
	tracer trace.Tracer

	// Infrastructure
	pool        *pgxpool.Pool
	store       *memory.Store
	redis       *goredis.Client
	stopTracing func(context.Context) error
	stopStats   context.CancelFunc

	// Repositories
	userRepo        ports.UserRepository
	customerRepo    ports.CustomerRepository
	factoryRepo     ports.FactoryRepository
	matchRepo       ports.MatchRepository
	orderRepo       ports.OrderRepository
	transactionRepo ports.TransactionRepository

	// Unit of Work
	uow ports.UnitOfWork

	// Event Publisher (outbox)
	eventPublisher ports.EventPublisher

	// Webhook dedup и счётчики rate limit
	deliveryGuard ports.DeliveryGuard
	rateStore     middleware.CounterStore

	// Transaction Service
	ledger *ledger.Service

	// Command use cases (обёрнуты в pipeline)
	createOrderUC      pipeline.Handler[dtos.CreateOrderCommand, *dtos.OrderDTO]
	cancelOrderUC      pipeline.Handler[dtos.CancelOrderCommand, *dtos.OrderDTO]
	updateStatusUC     pipeline.Handler[dtos.UpdateOrderStatusCommand, *dtos.OrderDTO]
	reconcilePaymentUC pipeline.Handler[dtos.ReconcilePaymentCommand, *dtos.PaymentReconciliationDTO]
	transferFundsUC    pipeline.Handler[dtos.TransferFundsCommand, *dtos.TransactionDTO]

	// Query use cases
	getOrderUC          *order.GetOrderUseCase
	listOrdersUC        *order.ListOrdersUseCase
	orderTransactionsUC *order.GetOrderTransactionsUseCase
	getBalanceUC        *ledger.GetBalanceUseCase
	userTransactionsUC  *ledger.GetUserTransactionsUseCase

	// HTTP
	router     *gin.Engine
	httpServer *http.Server
}

// New создаёт новый контейнер с заданной конфигурацией.
func New(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// ============================================
// Initialization
// ============================================

// Initialize инициализирует все зависимости.
func (c *Container) Initialize(ctx context.Context) error {
	c.logger = c.initLogger()
	c.logger.Info("Initializing application container...")

	// 1. Tracing
	if err := c.initTracing(ctx); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 2. Storage
	if c.config.Database.InMemory {
		c.store = memory.NewStore()
		c.logger.Warn("Using in-memory storage, data is lost on restart")
	} else {
		if err := c.initDatabase(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		c.logger.Info("Database connected")
	}

	// 3. Redis
	if err := c.initCache(ctx); err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}

	// 4. Repositories
	c.initRepositories()
	c.logger.Info("Repositories initialized")

	// 5. Use Cases
	c.initUseCases()
	c.logger.Info("Use cases initialized")

	// 6. HTTP Server
	c.initHTTPServer()
	c.logger.Info("HTTP server initialized")

	c.logger.Info("Container initialization complete")
	return nil
}

// initLogger инициализирует логгер.
func (c *Container) initLogger() *slog.Logger {
	output := os.Stdout
	if c.config.Log.Output == "stderr" {
		output = os.Stderr
	}

	return logger.Setup(&logger.Config{
		Level:       c.config.Log.Level,
		Format:      c.config.Log.Format,
		Output:      output,
		AddSource:   c.config.Log.AddSource || c.config.App.Debug,
		ServiceName: c.config.App.Name,
		Environment: c.config.App.Environment,
	})
}

// initTracing ставит глобальный tracer provider.
func (c *Container) initTracing(ctx context.Context) error {
	stop, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      c.config.Tracing.Enabled,
		ServiceName:  c.config.App.Name,
		Environment:  c.config.App.Environment,
		OTLPEndpoint: c.config.Tracing.Endpoint,
		Insecure:     c.config.Tracing.Insecure,
		SampleRatio:  c.config.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	c.stopTracing = stop
	c.tracer = tracing.Tracer()
	return nil
}

// initDatabase инициализирует подключение к БД.
func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := postgres.NewConnectionPool(ctx, PostgresConfig(c.config.Database))
	if err != nil {
		return err
	}
	c.pool = pool
	return nil
}

// initCache подключает Redis, если он включён.
// Без Redis dedup webhook'ов и rate limit работают в памяти процесса.
func (c *Container) initCache(ctx context.Context) error {
	if !c.config.Redis.Enabled {
		c.deliveryGuard = memory.NewDeliveryGuard()
		return nil
	}

	client, err := rediscache.NewClient(ctx, rediscache.Config{
		Addr:     c.config.Redis.Addr,
		Password: c.config.Redis.Password,
		DB:       c.config.Redis.DB,
	})
	if err != nil {
		return err
	}
	c.redis = client

	guard, err := rediscache.NewDeliveryGuard(client, c.config.SePay.DedupTTL, "sepay")
	if err != nil {
		return err
	}
	counter, err := rediscache.NewRateCounter(client)
	if err != nil {
		return err
	}

	c.deliveryGuard = guard
	c.rateStore = counter
	c.logger.Info("Redis connected", slog.String("addr", c.config.Redis.Addr))
	return nil
}

// initRepositories инициализирует репозитории.
func (c *Container) initRepositories() {
	if c.pool == nil {
		if c.store == nil {
			c.store = memory.NewStore()
		}
		c.userRepo = c.store.Users()
		c.customerRepo = c.store.Customers()
		c.factoryRepo = c.store.Factories()
		c.matchRepo = c.store.Matches()
		c.orderRepo = c.store.Orders()
		c.transactionRepo = c.store.Transactions()
		c.uow = c.store.UnitOfWork()
		if c.eventPublisher == nil {
			c.eventPublisher = c.store.Publisher()
		}
		return
	}

	c.userRepo = postgres.NewUserRepository(c.pool)
	c.customerRepo = postgres.NewCustomerRepository(c.pool)
	c.factoryRepo = postgres.NewFactoryRepository(c.pool)
	c.matchRepo = postgres.NewMatchRepository(c.pool)
	c.orderRepo = postgres.NewOrderRepository(c.pool)
	c.transactionRepo = postgres.NewTransactionRepository(c.pool)

	// Unit of Work
	c.uow = postgres.NewUnitOfWork(c.pool)

	// Event Publisher (OutboxRepository реализует интерфейс)
	if c.eventPublisher == nil {
		c.eventPublisher = postgres.NewOutboxRepository(c.pool).WithMaxRetries(c.config.Outbox.MaxRetries)
	}
}

// initUseCases инициализирует use cases.
func (c *Container) initUseCases() {
	if c.tracer == nil {
		c.tracer = tracing.Tracer()
	}

	c.ledger = ledger.NewService(c.userRepo, c.transactionRepo, c.eventPublisher)

	// Order Commands
	c.createOrderUC = pipeline.Command[dtos.CreateOrderCommand, *dtos.OrderDTO](c.uow, c.logger, c.tracer,
		order.NewCreateOrderUseCase(c.ledger, c.customerRepo, c.userRepo, c.factoryRepo, c.matchRepo, c.orderRepo, c.eventPublisher),
		pipeline.RetryTransient(commandRetries),
	)
	c.cancelOrderUC = pipeline.Command[dtos.CancelOrderCommand, *dtos.OrderDTO](c.uow, c.logger, c.tracer,
		order.NewCancelOrderUseCase(c.ledger, c.customerRepo, c.userRepo, c.factoryRepo, c.matchRepo, c.orderRepo, c.eventPublisher),
		pipeline.RetryTransient(commandRetries),
	)
	c.updateStatusUC = pipeline.Command[dtos.UpdateOrderStatusCommand, *dtos.OrderDTO](c.uow, c.logger, c.tracer,
		order.NewUpdateOrderStatusUseCase(c.ledger, c.customerRepo, c.userRepo, c.factoryRepo, c.matchRepo, c.orderRepo, c.eventPublisher),
		pipeline.RetryTransient(commandRetries),
	)
	c.reconcilePaymentUC = pipeline.Command[dtos.ReconcilePaymentCommand, *dtos.PaymentReconciliationDTO](c.uow, c.logger, c.tracer,
		order.NewReconcilePaymentUseCase(c.ledger, c.customerRepo, c.userRepo, c.factoryRepo, c.matchRepo, c.orderRepo, c.eventPublisher),
		pipeline.RetryTransient(commandRetries),
	)

	// Wallet Commands
	c.transferFundsUC = pipeline.Command[dtos.TransferFundsCommand, *dtos.TransactionDTO](c.uow, c.logger, c.tracer,
		ledger.NewTransferFundsUseCase(c.ledger),
		pipeline.RetryTransient(commandRetries),
	)

	// Queries
	c.getOrderUC = order.NewGetOrderUseCase(c.orderRepo, c.customerRepo, c.userRepo)
	c.listOrdersUC = order.NewListOrdersUseCase(c.orderRepo, c.customerRepo)
	c.orderTransactionsUC = order.NewGetOrderTransactionsUseCase(c.ledger, c.orderRepo, c.userRepo)
	c.getBalanceUC = ledger.NewGetBalanceUseCase(c.ledger)
	c.userTransactionsUC = ledger.NewGetUserTransactionsUseCase(c.ledger)
}

// initHTTPServer инициализирует HTTP сервер.
func (c *Container) initHTTPServer() {
	routerConfig := &http.RouterConfig{
		Logger:         c.logger,
		ServiceName:    c.config.App.Name,
		Version:        c.config.App.Version,
		BuildTime:      c.config.App.BuildTime,
		Environment:    c.config.App.Environment,
		AllowedOrigins: c.config.CORS.AllowedOrigins,
		TokenValidator: middleware.JWTValidator(c.AuthConfig()),
		WebhookAPIKey:  c.config.SePay.APIKey,
		RateLimitStore: c.rateStore,
		HealthChecks:   c.healthChecks(),
	}
	if c.config.RateLimit.Enabled {
		routerConfig.RequestsPerMinute = c.config.RateLimit.RequestsPerMinute
	} else {
		routerConfig.RequestsPerMinute = rateLimitDisabled
	}

	c.router = http.NewRouterBuilder(routerConfig).
		WithOrderUseCases(&http.OrderUseCases{
			CreateOrder:       c.createOrderUC,
			CancelOrder:       c.cancelOrderUC,
			UpdateStatus:      c.updateStatusUC,
			GetOrder:          c.getOrderUC,
			ListOrders:        c.listOrdersUC,
			OrderTransactions: c.orderTransactionsUC,
		}).
		WithWalletUseCases(&http.WalletUseCases{
			GetBalance:       c.getBalanceUC,
			UserTransactions: c.userTransactionsUC,
			TransferFunds:    c.transferFundsUC,
		}).
		WithPaymentUseCases(&http.PaymentUseCases{
			ReconcilePayment: c.reconcilePaymentUC,
			DeliveryGuard:    c.deliveryGuard,
		}).
		Build()

	serverConfig := &http.ServerConfig{
		Host:              c.config.Server.Host,
		Port:              strconv.Itoa(c.config.Server.Port),
		ReadTimeout:       c.config.Server.ReadTimeout,
		ReadHeaderTimeout: c.config.Server.ReadHeaderTimeout,
		WriteTimeout:      c.config.Server.WriteTimeout,
		IdleTimeout:       c.config.Server.IdleTimeout,
		ShutdownTimeout:   c.config.Server.ShutdownTimeout,
		Logger:            c.logger,
	}

	c.httpServer = http.NewServer(serverConfig, c.router)
}

// rateLimitDisabled - лимит, который на практике не достигается.
const rateLimitDisabled = 1 << 30

// healthChecks собирает проверки подключённых зависимостей.
func (c *Container) healthChecks() map[string]handlers.HealthCheck {
	checks := make(map[string]handlers.HealthCheck)
	if c.pool != nil {
		pool := c.pool
		checks["database"] = func(ctx context.Context) error {
			return postgres.HealthCheck(ctx, pool)
		}
	}
	if c.redis != nil {
		client := c.redis
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}

// ============================================
// Config mapping
// ============================================

// PostgresConfig переводит секцию database в настройки пула.
func PostgresConfig(db config.DatabaseConfig) postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.Host = db.Host
	cfg.Port = db.Port
	cfg.Database = db.Database
	cfg.User = db.User
	cfg.Password = db.Password
	cfg.SSLMode = db.SSLMode
	if db.MaxConnections > 0 {
		cfg.MaxConns = db.MaxConnections
	}
	if db.MinConnections > 0 {
		cfg.MinConns = db.MinConnections
	}
	if db.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = db.MaxConnLifetime
	}
	if db.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = db.MaxConnIdleTime
	}
	if db.ConnectTimeout > 0 {
		cfg.ConnectTimeout = db.ConnectTimeout
	}
	return cfg
}

// AuthConfig возвращает настройки JWT.
func (c *Container) AuthConfig() auth.Config {
	return auth.Config{
		Secret: c.config.Auth.JWTSecret,
		Issuer: c.config.Auth.JWTIssuer,
		TTL:    c.config.Auth.AccessTokenExpiry,
	}
}

// ============================================
// Getters
// ============================================

// Config возвращает конфигурацию.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger возвращает логгер.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Pool возвращает пул соединений к БД (nil для in-memory хранилища).
func (c *Container) Pool() *pgxpool.Pool {
	return c.pool
}

// Store возвращает in-memory хранилище (nil для PostgreSQL).
func (c *Container) Store() *memory.Store {
	return c.store
}

// Router возвращает собранный gin router.
func (c *Container) Router() *gin.Engine {
	return c.router
}

// HTTPServer возвращает HTTP сервер.
func (c *Container) HTTPServer() *http.Server {
	return c.httpServer
}

// UnitOfWork возвращает Unit of Work.
func (c *Container) UnitOfWork() ports.UnitOfWork {
	return c.uow
}

// Ledger возвращает Transaction Service.
func (c *Container) Ledger() *ledger.Service {
	return c.ledger
}

// DeliveryGuard возвращает dedup webhook'ов.
func (c *Container) DeliveryGuard() ports.DeliveryGuard {
	return c.deliveryGuard
}

// ============================================
// Shutdown
// ============================================

// Shutdown выполняет graceful shutdown всех компонентов.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	var errs []error

	// 1. HTTP Server
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	if c.stopStats != nil {
		c.stopStats()
	}

	// 2. Redis
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	// 3. Database (даём время на завершение транзакций)
	if c.pool != nil {
		done := make(chan struct{})
		go func() {
			c.pool.Close()
			close(done)
		}()

		select {
		case <-done:
			c.logger.Info("Database connection closed")
		case <-ctx.Done():
			c.logger.Warn("Database close timeout")
		}
	}

	// 4. Tracing (сбрасываем оставшиеся spans)
	if c.stopTracing != nil {
		if err := c.stopTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// ============================================
// Run
// ============================================

// Run запускает HTTP сервер и ждёт отмены ctx или сигнала завершения.
func (c *Container) Run(ctx context.Context) error {
	c.logger.Info("Starting MarketBridge API Server",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
		slog.String("address", c.config.Server.Address()),
		slog.Bool("in_memory", c.pool == nil),
	)

	if c.pool != nil {
		statsCtx, cancel := context.WithCancel(ctx)
		c.stopStats = cancel
		go postgres.ReportPoolStats(statsCtx, c.pool, poolStatsInterval)
	}

	return c.httpServer.RunWithContext(ctx)
}

// ============================================
// Builder Pattern (Alternative)
// ============================================

// ContainerBuilder - builder для создания контейнера с кастомными компонентами.
type ContainerBuilder struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	store          *memory.Store
	eventPublisher ports.EventPublisher
	deliveryGuard  ports.DeliveryGuard
}

// NewBuilder создаёт новый builder.
func NewBuilder(cfg *config.Config) *ContainerBuilder {
	return &ContainerBuilder{
		cfg: cfg,
	}
}

// WithLogger устанавливает кастомный логгер.
func (b *ContainerBuilder) WithLogger(logger *slog.Logger) *ContainerBuilder {
	b.logger = logger
	return b
}

// WithPool устанавливает готовый пул соединений.
func (b *ContainerBuilder) WithPool(pool *pgxpool.Pool) *ContainerBuilder {
	b.pool = pool
	return b
}

// WithStore устанавливает готовое in-memory хранилище.
func (b *ContainerBuilder) WithStore(store *memory.Store) *ContainerBuilder {
	b.store = store
	return b
}

// WithEventPublisher устанавливает кастомный event publisher.
func (b *ContainerBuilder) WithEventPublisher(ep ports.EventPublisher) *ContainerBuilder {
	b.eventPublisher = ep
	return b
}

// WithDeliveryGuard устанавливает кастомный dedup webhook'ов.
func (b *ContainerBuilder) WithDeliveryGuard(guard ports.DeliveryGuard) *ContainerBuilder {
	b.deliveryGuard = guard
	return b
}

// Build создаёт контейнер. Redis и tracing не поднимаются:
// builder предназначен для тестов и встраивания.
func (b *ContainerBuilder) Build(ctx context.Context) (*Container, error) {
	c := New(b.cfg)

	if b.logger != nil {
		c.logger = b.logger
	} else {
		c.logger = c.initLogger()
	}

	switch {
	case b.pool != nil:
		c.pool = b.pool
	case b.store != nil:
		c.store = b.store
	case b.cfg.Database.InMemory:
		c.store = memory.NewStore()
	default:
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	}

	c.eventPublisher = b.eventPublisher
	c.initRepositories()

	c.deliveryGuard = b.deliveryGuard
	if c.deliveryGuard == nil {
		c.deliveryGuard = memory.NewDeliveryGuard()
	}

	c.initUseCases()
	c.initHTTPServer()

	return c, nil
}

// ============================================
// Health Check
// ============================================

// HealthStatus - статус здоровья приложения.
type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// Health возвращает статус здоровья приложения.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:  "healthy",
		Version: c.config.App.Version,
		Checks:  make(map[string]string),
	}

	for name, check := range c.healthChecks() {
		if err := check(ctx); err != nil {
			status.Status = "unhealthy"
			status.Checks[name] = "error: " + err.Error()
		} else {
			status.Checks[name] = "ok"
		}
	}

	return status
}
