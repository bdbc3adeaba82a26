package order

import (
	"context"
	"fmt"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/events"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// UpdateOrderStatusUseCase - ручная смена статуса продавцом или админом.
//
// Переход проверяется таблицей entities.CanTransition. Переход в Cancelled
// выполняет те же возвраты и возврат остатков, что и отмена покупателем.
// PaymentFailed выставляется только сверкой платежа.
type UpdateOrderStatusUseCase struct {
	settlement
	orderRepo      ports.OrderRepository
	eventPublisher ports.EventPublisher
}

// NewUpdateOrderStatusUseCase создаёт новый use case.
func NewUpdateOrderStatusUseCase(
	ledgerService *ledger.Service,
	customerRepo ports.CustomerRepository,
	userRepo ports.UserRepository,
	factoryRepo ports.FactoryRepository,
	matchRepo ports.MatchRepository,
	orderRepo ports.OrderRepository,
	eventPublisher ports.EventPublisher,
) *UpdateOrderStatusUseCase {
	return &UpdateOrderStatusUseCase{
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

// Execute выполняет смену статуса.
func (uc *UpdateOrderStatusUseCase) Execute(ctx context.Context, cmd dtos.UpdateOrderStatusCommand) (*dtos.OrderDTO, error) {
	orderID, err := parseID("order_id", cmd.OrderID)
	if err != nil {
		return nil, err
	}
	actorID, err := parseID("user_id", cmd.ActorUserID)
	if err != nil {
		return nil, err
	}
	target, err := entities.ParseOrderStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	if target == entities.OrderStatusPaymentFailed {
		return nil, errors.NewValidationError("status", "PaymentFailed is set only by payment reconciliation")
	}

	actor, err := uc.userRepo.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	order, err := uc.orderRepo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, order) {
		return nil, errors.Forbidden(fmt.Sprintf("user %s cannot manage order %s", actorID, orderID))
	}

	from := order.Status()
	if err := entities.CanTransition(from, target); err != nil {
		return nil, err
	}

	customer, buyer, err := uc.resolveBuyer(ctx, order.CustomerID())
	if err != nil {
		return nil, err
	}

	if from == target {
		dto := dtos.ToOrderDTO(order, customer.FullName())
		return &dto, nil
	}

	if target == entities.OrderStatusCancelled {
		refunded, err := uc.unwind(ctx, order, buyer.ID())
		if err != nil {
			return nil, err
		}
		if err := uc.eventPublisher.Publish(ctx, events.NewOrderCancelled(orderID, cmd.Note, refunded.String())); err != nil {
			return nil, fmt.Errorf("failed to publish event: %w", err)
		}
	}

	if err := order.TransitionTo(target); err != nil {
		return nil, err
	}
	order.AppendNote(cmd.Note)

	if err := uc.orderRepo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	if err := uc.eventPublisher.Publish(ctx,
		events.NewOrderStatusChanged(orderID, from.String(), target.String(), actorID)); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.RecordTransition(from.String(), target.String())

	dto := dtos.ToOrderDTO(order, customer.FullName())
	return &dto, nil
}
