//go:build integration

// Package postgres - интеграционные тесты для PostgreSQL repositories с testcontainers.
//
// Запуск тестов:
//
//	go test -tags=integration ./internal/infrastructure/persistence/postgres/...
//
// Требования:
//   - Docker запущен
package postgres

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/application/usecases/order"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	domainErrors "github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/events"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

// ============================================
// Test Helpers
// ============================================

// testContainer хранит контейнер и pool для тестов.
type testContainer struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

// Shared container for all tests
var sharedTestContainer *testContainer

// setupSharedTestDB создаёт или возвращает переиспользуемый PostgreSQL контейнер.
func setupSharedTestDB(t *testing.T) *testContainer {
	t.Helper()
	if sharedTestContainer != nil {
		cleanupTables(t, sharedTestContainer.pool)
		return sharedTestContainer
	}

	ctx := context.Background()
	migrationsPath := filepath.Join("..", "..", "..", "..", "migrations")

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "000001_create_users.up.sql"),
			filepath.Join(migrationsPath, "000002_create_catalog_and_orders.up.sql"),
			filepath.Join(migrationsPath, "000003_create_transactions.up.sql"),
			filepath.Join(migrationsPath, "000004_create_outbox.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	sharedTestContainer = &testContainer{container: container, pool: pool}
	return sharedTestContainer
}

// cleanupTables очищает все таблицы для следующего теста.
func cleanupTables(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	tables := []string{"outbox", "transactions", "order_details", "orders", "matches", "factories", "customers", "users"}
	for _, table := range tables {
		if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", table, err)
		}
	}
}

type seed struct {
	buyer    *entities.User
	customer *entities.Customer
	seller   *entities.User
	factory  *entities.Factory
	product  *entities.Match
}

func seedMarket(t *testing.T, pool *pgxpool.Pool, buyerBalance string) seed {
	t.Helper()
	ctx := context.Background()

	buyer, err := entities.NewUser(uuid.NewString()+"@buyer.test", entities.RoleCustomer)
	require.NoError(t, err)
	if amount := valueobjects.MustMoney(buyerBalance); amount.IsPositive() {
		require.NoError(t, buyer.Credit(amount))
	}
	seller, err := entities.NewUser(uuid.NewString()+"@seller.test", entities.RoleFactory)
	require.NoError(t, err)

	users := NewUserRepository(pool)
	require.NoError(t, users.Save(ctx, buyer))
	require.NoError(t, users.Save(ctx, seller))

	customer, err := entities.NewCustomer(buyer.ID(), "Tran Thi B", "", "", buyer.Email())
	require.NoError(t, err)
	require.NoError(t, NewCustomerRepository(pool).Save(ctx, customer))
	buyer.LinkCustomer(customer.ID())
	require.NoError(t, users.Save(ctx, buyer))

	factory, err := entities.NewFactory(seller.ID(), "Seller Co")
	require.NoError(t, err)
	require.NoError(t, NewFactoryRepository(pool).Save(ctx, factory))
	seller.LinkFactory(factory.ID())
	require.NoError(t, users.Save(ctx, seller))

	product, err := entities.NewMatch(factory.ID(), "Widget", valueobjects.MustMoney("150"), 5)
	require.NoError(t, err)
	require.NoError(t, NewMatchRepository(pool).Save(ctx, product))

	return seed{buyer: buyer, customer: customer, seller: seller, factory: factory, product: product}
}

// ============================================
// UserRepository Tests
// ============================================

func TestUserRepository_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	repo := NewUserRepository(tc.pool)
	ctx := context.Background()

	t.Run("SaveAndFind", func(t *testing.T) {
		user, err := entities.NewUser("find@example.com", entities.RoleAdmin)
		require.NoError(t, err)
		require.NoError(t, user.Credit(valueobjects.MustMoney("12.34")))
		require.NoError(t, repo.Save(ctx, user))

		loaded, err := repo.FindByID(ctx, user.ID())
		require.NoError(t, err)
		assert.Equal(t, "12.34", loaded.Balance().String())
		assert.Equal(t, entities.RoleAdmin, loaded.Role())
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		u1, _ := entities.NewUser("duplicate@example.com", entities.RoleCustomer)
		require.NoError(t, repo.Save(ctx, u1))

		u2, _ := entities.NewUser("duplicate@example.com", entities.RoleCustomer)
		err := repo.Save(ctx, u2)
		assert.True(t, domainErrors.IsInvalidState(err))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.True(t, domainErrors.IsNotFound(err))
	})
}

// ============================================
// OrderRepository Tests
// ============================================

func TestOrderRepository_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	s := seedMarket(t, tc.pool, "0")
	repo := NewOrderRepository(tc.pool)
	ctx := context.Background()

	newOrder := func() *entities.Order {
		o, err := entities.NewOrder(s.customer.ID(), entities.ShippingInfo{Address: "HCMC"},
			entities.PaymentBankTransfer, "first", []entities.OrderLine{{
				MatchID: s.product.ID(), FactoryID: s.factory.ID(), Quantity: 2, Price: s.product.Price(),
			}})
		require.NoError(t, err)
		return o
	}

	o := newOrder()
	require.NoError(t, repo.Save(ctx, o))

	loaded, err := repo.FindByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, "300.00", loaded.TotalPrice().String())
	require.Len(t, loaded.Details(), 1)
	assert.Equal(t, 2, loaded.Details()[0].Quantity())
	assert.Equal(t, entities.OrderStatusPending, loaded.Status())

	require.NoError(t, loaded.TransitionTo(entities.OrderStatusPaid))
	loaded.AppendNote("paid")
	require.NoError(t, repo.Save(ctx, loaded))

	again, err := repo.FindByID(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.OrderStatusPaid, again.Status())
	assert.Equal(t, "first | paid", again.Note())
	assert.Len(t, again.Details(), 1)

	second := newOrder()
	require.NoError(t, repo.Save(ctx, second))

	list, total, err := repo.ListByCustomer(ctx, s.customer.ID(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)

	require.NoError(t, repo.SoftDelete(ctx, second.ID()))
	_, err = repo.FindByID(ctx, second.ID())
	assert.True(t, domainErrors.IsNotFound(err))
	assert.True(t, domainErrors.IsNotFound(repo.SoftDelete(ctx, second.ID())))

	_, total, err = repo.ListByCustomer(ctx, s.customer.ID(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

// ============================================
// TransactionRepository + UnitOfWork Tests
// ============================================

func TestTransactionRepository_Integration_PendingUpdate(t *testing.T) {
	tc := setupSharedTestDB(t)
	s := seedMarket(t, tc.pool, "0")
	repo := NewTransactionRepository(tc.pool)
	ctx := context.Background()

	tx, err := entities.NewPendingTransfer(s.buyer.ID(), s.seller.ID(),
		valueobjects.Zero(), valueobjects.MustMoney("100"), "Bank transfer", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, tx))

	require.NoError(t, tx.Settle(valueobjects.MustMoney("100")))
	require.NoError(t, repo.Save(ctx, tx))

	loaded, err := repo.FindByID(ctx, tx.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusSuccess, loaded.Status())
	assert.Equal(t, "-100.00", loaded.AfterBalance().String())

	txs, err := repo.FindByUser(ctx, s.seller.ID())
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestUnitOfWork_Integration_Rollback(t *testing.T) {
	tc := setupSharedTestDB(t)
	uow := NewUnitOfWork(tc.pool)
	users := NewUserRepository(tc.pool)
	ctx := context.Background()

	user, _ := entities.NewUser("rollback@example.com", entities.RoleCustomer)

	err := uow.Execute(ctx, func(txCtx context.Context) error {
		require.NoError(t, users.Save(txCtx, user))
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	_, err = users.FindByID(ctx, user.ID())
	assert.True(t, domainErrors.IsNotFound(err))
}

// ============================================
// Outbox Tests
// ============================================

func TestOutboxRepository_Integration(t *testing.T) {
	tc := setupSharedTestDB(t)
	repo := NewOutboxRepository(tc.pool)
	ctx := context.Background()

	orderID := uuid.New()
	first := events.NewOrderCancelled(orderID, "changed my mind", "150.00")
	second := events.NewOrderStatusChanged(orderID, "Pending", "Cancelled", uuid.New())
	require.NoError(t, repo.PublishBatch(ctx, []events.DomainEvent{first, second}))

	records, err := repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Order", records[0].AggregateType)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`","reason":"changed my mind","refunded_total":"150.00"}`,
		string(records[0].Payload))

	require.NoError(t, repo.MarkPublished(ctx, first.EventID()))
	for i := 0; i < MaxOutboxRetries; i++ {
		require.NoError(t, repo.MarkFailed(ctx, second.EventID(), "nats down"))
	}

	records, err = repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// ============================================
// Order workflow on PostgreSQL
// ============================================

func TestOrderWorkflow_Integration_WalletPayAndCancel(t *testing.T) {
	tc := setupSharedTestDB(t)
	s := seedMarket(t, tc.pool, "200")
	ctx := context.Background()

	users := NewUserRepository(tc.pool)
	outbox := NewOutboxRepository(tc.pool)
	uow := NewUnitOfWork(tc.pool)
	ledgerService := ledger.NewService(users, NewTransactionRepository(tc.pool), outbox)

	create := order.NewCreateOrderUseCase(ledgerService, NewCustomerRepository(tc.pool), users,
		NewFactoryRepository(tc.pool), NewMatchRepository(tc.pool), NewOrderRepository(tc.pool), outbox)
	cancel := order.NewCancelOrderUseCase(ledgerService, NewCustomerRepository(tc.pool), users,
		NewFactoryRepository(tc.pool), NewMatchRepository(tc.pool), NewOrderRepository(tc.pool), outbox)

	var created *dtos.OrderDTO
	err := uow.Execute(ctx, func(txCtx context.Context) error {
		var err error
		created, err = create.Execute(txCtx, dtos.CreateOrderCommand{
			CustomerID:    s.customer.ID().String(),
			PaymentMethod: string(entities.PaymentWalletBalance),
			Items:         []dtos.OrderItemInput{{MatchID: s.product.ID().String(), Quantity: 1}},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Paid", created.Status)

	balance := func(id uuid.UUID) string {
		u, err := users.FindByID(ctx, id)
		require.NoError(t, err)
		return u.Balance().String()
	}
	assert.Equal(t, "50.00", balance(s.buyer.ID()))
	assert.Equal(t, "150.00", balance(s.seller.ID()))

	err = uow.Execute(ctx, func(txCtx context.Context) error {
		_, err := cancel.Execute(txCtx, dtos.CancelOrderCommand{
			OrderID:    created.ID,
			CustomerID: s.customer.ID().String(),
		})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "200.00", balance(s.buyer.ID()))
	assert.Equal(t, "0.00", balance(s.seller.ID()))

	records, err := outbox.FindUnpublished(ctx, 100)
	require.NoError(t, err)
	types := make([]string, 0, len(records))
	for _, r := range records {
		types = append(types, r.EventType)
	}
	sort.Strings(types)
	assert.Contains(t, types, events.EventTypeOrderPaid)
	assert.Contains(t, types, events.EventTypeOrderCancelled)
}
