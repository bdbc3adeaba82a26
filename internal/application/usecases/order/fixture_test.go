package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
	"github.com/Haleralex/marketbridge/internal/infrastructure/persistence/memory"
)

type buyer struct {
	user     *entities.User
	customer *entities.Customer
}

type seller struct {
	user    *entities.User
	factory *entities.Factory
}

type fixture struct {
	t      *testing.T
	store  *memory.Store
	ledger *ledger.Service

	create   *CreateOrderUseCase
	cancel   *CancelOrderUseCase
	update   *UpdateOrderStatusUseCase
	recon    *ReconcilePaymentUseCase
	get      *GetOrderUseCase
	list     *ListOrdersUseCase
	orderTxs *GetOrderTransactionsUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	ledgerService := ledger.NewService(store.Users(), store.Transactions(), store.Publisher())

	f := &fixture{t: t, store: store, ledger: ledgerService}
	f.create = NewCreateOrderUseCase(ledgerService, store.Customers(), store.Users(), store.Factories(),
		store.Matches(), store.Orders(), store.Publisher())
	f.cancel = NewCancelOrderUseCase(ledgerService, store.Customers(), store.Users(), store.Factories(),
		store.Matches(), store.Orders(), store.Publisher())
	f.update = NewUpdateOrderStatusUseCase(ledgerService, store.Customers(), store.Users(), store.Factories(),
		store.Matches(), store.Orders(), store.Publisher())
	f.recon = NewReconcilePaymentUseCase(ledgerService, store.Customers(), store.Users(), store.Factories(),
		store.Matches(), store.Orders(), store.Publisher())
	f.get = NewGetOrderUseCase(store.Orders(), store.Customers(), store.Users())
	f.list = NewListOrdersUseCase(store.Orders(), store.Customers())
	f.orderTxs = NewGetOrderTransactionsUseCase(ledgerService, store.Orders(), store.Users())
	return f
}

func (f *fixture) user(role entities.UserRole, balance string) *entities.User {
	f.t.Helper()
	u, err := entities.NewUser(uuid.NewString()+"@example.com", role)
	require.NoError(f.t, err)
	if amount := valueobjects.MustMoney(balance); amount.IsPositive() {
		require.NoError(f.t, u.Credit(amount))
	}
	return u
}

func (f *fixture) buyer(balance string) buyer {
	f.t.Helper()
	ctx := context.Background()
	u := f.user(entities.RoleCustomer, balance)
	c, err := entities.NewCustomer(u.ID(), "Nguyen Van A", "0900000000", "Hanoi", u.Email())
	require.NoError(f.t, err)
	u.LinkCustomer(c.ID())
	require.NoError(f.t, f.store.Users().Save(ctx, u))
	require.NoError(f.t, f.store.Customers().Save(ctx, c))
	return buyer{user: u, customer: c}
}

func (f *fixture) seller(balance string) seller {
	f.t.Helper()
	ctx := context.Background()
	u := f.user(entities.RoleFactory, balance)
	fac, err := entities.NewFactory(u.ID(), "Factory "+u.ID().String()[:8])
	require.NoError(f.t, err)
	u.LinkFactory(fac.ID())
	require.NoError(f.t, f.store.Users().Save(ctx, u))
	require.NoError(f.t, f.store.Factories().Save(ctx, fac))
	return seller{user: u, factory: fac}
}

func (f *fixture) admin() *entities.User {
	f.t.Helper()
	u := f.user(entities.RoleAdmin, "0")
	require.NoError(f.t, f.store.Users().Save(context.Background(), u))
	return u
}

func (f *fixture) product(s seller, price string, qty int) *entities.Match {
	f.t.Helper()
	m, err := entities.NewMatch(s.factory.ID(), "Product", valueobjects.MustMoney(price), qty)
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.Matches().Save(context.Background(), m))
	return m
}

func (f *fixture) balance(userID uuid.UUID) string {
	f.t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), userID)
	require.NoError(f.t, err)
	return b.String()
}

func (f *fixture) stock(matchID uuid.UUID) int {
	f.t.Helper()
	m, err := f.store.Matches().FindByID(context.Background(), matchID)
	require.NoError(f.t, err)
	return m.Quantity()
}

func (f *fixture) order(id string) *entities.Order {
	f.t.Helper()
	o, err := f.store.Orders().FindByID(context.Background(), uuid.MustParse(id))
	require.NoError(f.t, err)
	return o
}

func (f *fixture) transactions(orderID string) []*entities.Transaction {
	f.t.Helper()
	txs, err := f.ledger.GetOrderTransactions(context.Background(), uuid.MustParse(orderID))
	require.NoError(f.t, err)
	return txs
}

// run executes a command the way the command pipeline does: in one unit of work.
func run[C, R any](f *fixture, exec func(context.Context, C) (R, error), cmd C) (R, error) {
	var result R
	err := f.store.UnitOfWork().Execute(context.Background(), func(ctx context.Context) error {
		var err error
		result, err = exec(ctx, cmd)
		return err
	})
	return result, err
}

func (f *fixture) placeOrder(b buyer, method entities.PaymentMethod, items ...dtos.OrderItemInput) (*dtos.OrderDTO, error) {
	return run(f, f.create.Execute, dtos.CreateOrderCommand{
		CustomerID:      b.customer.ID().String(),
		ShippingAddress: "12 Tran Hung Dao",
		PaymentMethod:   string(method),
		Items:           items,
	})
}

func item(m *entities.Match, qty int) dtos.OrderItemInput {
	return dtos.OrderItemInput{MatchID: m.ID().String(), Quantity: qty}
}

// secondFactory registers another factory owned by the same user as s.
func (f *fixture) secondFactory(s seller) seller {
	f.t.Helper()
	fac, err := entities.NewFactory(s.user.ID(), "Outlet "+s.user.ID().String()[:8])
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.Factories().Save(context.Background(), fac))
	return seller{user: s.user, factory: fac}
}
