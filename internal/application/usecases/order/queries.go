package order

import (
	"context"
	"fmt"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ============================================
// Get Order
// ============================================

// GetOrderUseCase возвращает заказ покупателю, продавцу позиции или админу.
type GetOrderUseCase struct {
	orderRepo    ports.OrderRepository
	customerRepo ports.CustomerRepository
	userRepo     ports.UserRepository
}

// NewGetOrderUseCase создаёт новый use case.
func NewGetOrderUseCase(
	orderRepo ports.OrderRepository,
	customerRepo ports.CustomerRepository,
	userRepo ports.UserRepository,
) *GetOrderUseCase {
	return &GetOrderUseCase{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		userRepo:     userRepo,
	}
}

// Execute выполняет запрос.
func (uc *GetOrderUseCase) Execute(ctx context.Context, query dtos.GetOrderQuery) (*dtos.OrderDTO, error) {
	orderID, err := parseID("order_id", query.OrderID)
	if err != nil {
		return nil, err
	}
	actorID, err := parseID("user_id", query.ActorUserID)
	if err != nil {
		return nil, err
	}

	actor, err := uc.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, errors.Forbidden(fmt.Sprintf("user %s cannot view order %s", actorID, orderID))
	}

	var buyerName string
	if customer, err := uc.customerRepo.FindByID(ctx, order.CustomerID()); err == nil {
		buyerName = customer.FullName()
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	dto := dtos.ToOrderDTO(order, buyerName)
	return &dto, nil
}

// ============================================
// List Orders
// ============================================

// ListOrdersUseCase возвращает страницу заказов покупателя, новые первыми.
type ListOrdersUseCase struct {
	orderRepo    ports.OrderRepository
	customerRepo ports.CustomerRepository
}

// NewListOrdersUseCase создаёт новый use case.
func NewListOrdersUseCase(orderRepo ports.OrderRepository, customerRepo ports.CustomerRepository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orderRepo: orderRepo, customerRepo: customerRepo}
}

// Execute выполняет запрос.
func (uc *ListOrdersUseCase) Execute(ctx context.Context, query dtos.ListOrdersQuery) (*dtos.OrderListDTO, error) {
	customerID, err := parseID("customer_id", query.CustomerID)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	customer, err := uc.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	orders, total, err := uc.orderRepo.ListByCustomer(ctx, customerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := &dtos.OrderListDTO{
		Orders:     make([]dtos.OrderDTO, 0, len(orders)),
		TotalCount: total,
		Offset:     offset,
		Limit:      limit,
	}
	for _, o := range orders {
		result.Orders = append(result.Orders, dtos.ToOrderDTO(o, customer.FullName()))
	}
	return result, nil
}

// ============================================
// Get Order Transactions
// ============================================

// GetOrderTransactionsUseCase возвращает записи ledger'а по заказу.
type GetOrderTransactionsUseCase struct {
	ledger    *ledger.Service
	orderRepo ports.OrderRepository
	userRepo  ports.UserRepository
}

// NewGetOrderTransactionsUseCase создаёт новый use case.
func NewGetOrderTransactionsUseCase(
	ledgerService *ledger.Service,
	orderRepo ports.OrderRepository,
	userRepo ports.UserRepository,
) *GetOrderTransactionsUseCase {
	return &GetOrderTransactionsUseCase{
		ledger:    ledgerService,
		orderRepo: orderRepo,
		userRepo:  userRepo,
	}
}

// Execute выполняет запрос.
func (uc *GetOrderTransactionsUseCase) Execute(ctx context.Context, query dtos.GetOrderTransactionsQuery) (*dtos.TransactionListDTO, error) {
	orderID, err := parseID("order_id", query.OrderID)
	if err != nil {
		return nil, err
	}
	actorID, err := parseID("user_id", query.ActorUserID)
	if err != nil {
		return nil, err
	}

	actor, err := uc.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	order, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, errors.Forbidden(fmt.Sprintf("user %s cannot view order %s", actorID, orderID))
	}

	txs, err := uc.ledger.GetOrderTransactions(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order transactions: %w", err)
	}

	return dtos.ToTransactionListDTO(txs), nil
}
