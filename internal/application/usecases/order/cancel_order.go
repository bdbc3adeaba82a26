package order

import (
	"context"
	"fmt"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/events"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// CancelOrderUseCase - отмена заказа покупателем.
//
// Сценарий:
// 1. Загрузить заказ (NotFound), проверить владельца (Forbidden)
// 2. Проверить, что статус Pending, Paid или Processing (InvalidState)
// 3. Загрузить учётную запись покупателя (NotFound)
// 4. Вернуть деньги продавцов (одна обратная запись на продавца), вернуть остатки
// 5. Статус Cancelled, причина дописывается в note через " | "
type CancelOrderUseCase struct {
	settlement
	orderRepo      ports.OrderRepository
	eventPublisher ports.EventPublisher
}

// NewCancelOrderUseCase создаёт новый use case.
func NewCancelOrderUseCase(
	ledgerService *ledger.Service,
	customerRepo ports.CustomerRepository,
	userRepo ports.UserRepository,
	factoryRepo ports.FactoryRepository,
	matchRepo ports.MatchRepository,
	orderRepo ports.OrderRepository,
	eventPublisher ports.EventPublisher,
) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		settlement: settlement{
			ledger:       ledgerService,
			customerRepo: customerRepo,
			userRepo:     userRepo,
			factoryRepo:  factoryRepo,
			matchRepo:    matchRepo,
		},
		orderRepo:      orderRepo,
		eventPublisher: eventPublisher,
	}
}

// Execute выполняет отмену.
func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd dtos.CancelOrderCommand) (*dtos.OrderDTO, error) {
	orderID, err := parseID("order_id", cmd.OrderID)
	if err != nil {
		return nil, err
	}
	customerID, err := parseID("customer_id", cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	order, err := uc.orderRepo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.BelongsTo(customerID) {
		return nil, errors.Forbidden(fmt.Sprintf("order %s does not belong to the requester", orderID))
	}
	if !order.Status().IsCancellable() {
		return nil, errors.InvalidState(errors.CodeNotCancellable,
			fmt.Sprintf("order %s in status %s cannot be cancelled", orderID, order.Status()))
	}

	customer, buyer, err := uc.resolveBuyer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	from := order.Status()
	refunded, err := uc.unwind(ctx, order, buyer.ID())
	if err != nil {
		return nil, err
	}

	if err := order.Cancel(cmd.Reason); err != nil {
		return nil, err
	}
	if err := uc.orderRepo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	if err := uc.eventPublisher.Publish(ctx, events.NewOrderCancelled(orderID, cmd.Reason, refunded.String())); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.RecordTransition(from.String(), order.Status().String())

	dto := dtos.ToOrderDTO(order, customer.FullName())
	return &dto, nil
}
