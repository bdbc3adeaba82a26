package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/events"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// ReconcilePaymentUseCase сверяет входящий банковский перевод (webhook SePay)
// с суммой заказа.
//
// - Переходит только заказ в статусе Pending. Любой другой статус - успех
//   с already_processed = true и без изменений (повторная доставка webhook'а).
// - Совпадение (с точностью до 2 знаков): заказ Paid, Pending запись каждого
//   продавца (по id пользователя-получателя) становится Success на сумму
//   позиций продавца, продавцу зачисляются деньги.
// - Расхождение: заказ PaymentFailed, Pending записи Failed, остатки возвращаются.
type ReconcilePaymentUseCase struct {
	settlement
	orderRepo      ports.OrderRepository
	eventPublisher ports.EventPublisher
}

// NewReconcilePaymentUseCase создаёт новый use case.
func NewReconcilePaymentUseCase(
	ledgerService *ledger.Service,
	customerRepo ports.CustomerRepository,
	userRepo ports.UserRepository,
	factoryRepo ports.FactoryRepository,
	matchRepo ports.MatchRepository,
	orderRepo ports.OrderRepository,
	eventPublisher ports.EventPublisher,
) *ReconcilePaymentUseCase {
	return &ReconcilePaymentUseCase{
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

// Execute выполняет сверку.
func (uc *ReconcilePaymentUseCase) Execute(ctx context.Context, cmd dtos.ReconcilePaymentCommand) (*dtos.PaymentReconciliationDTO, error) {
	orderID, err := parseID("order_id", cmd.OrderID)
	if err != nil {
		return nil, err
	}
	received, err := valueobjects.NewMoney(cmd.TransferAmount)
	if err != nil {
		return nil, errors.NewValidationError("transfer_amount", err.Error())
	}

	// Блокировка строки сериализует параллельные доставки по одному заказу
	order, err := uc.orderRepo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.IsPending() {
		metrics.RecordReconciliation("already_processed")
		return &dtos.PaymentReconciliationDTO{
			OrderID:          orderID.String(),
			Status:           order.Status().String(),
			AlreadyProcessed: true,
		}, nil
	}

	txs, err := uc.ledger.GetOrderTransactions(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order transactions: %w", err)
	}

	matched := order.TotalPrice().EqualsRounded(received)

	var event events.DomainEvent
	if matched {
		if err := uc.settle(ctx, order, txs); err != nil {
			return nil, err
		}
		event = events.NewOrderPaid(orderID, received.String(), cmd.GatewayTransferID)
		metrics.RecordReconciliation("matched")
	} else {
		if err := uc.reject(ctx, order, txs, received); err != nil {
			return nil, err
		}
		event = events.NewOrderPaymentFailed(orderID, order.TotalPrice().String(), received.String())
		metrics.RecordReconciliation("mismatched")
	}

	if err := uc.orderRepo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	if err := uc.eventPublisher.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}

	return &dtos.PaymentReconciliationDTO{
		OrderID: orderID.String(),
		Status:  order.Status().String(),
		Matched: matched,
	}, nil
}

// settle переводит заказ в Paid и закрывает Pending записи владельцев продавцов.
// Владельцу без Pending записи она создаётся и закрывается в том же проходе.
func (uc *ReconcilePaymentUseCase) settle(ctx context.Context, order *entities.Order, txs []*entities.Transaction) error {
	pendingByReceiver := make(map[uuid.UUID][]*entities.Transaction)
	for _, tx := range txs {
		if tx.IsPending() {
			pendingByReceiver[tx.ReceiverID()] = append(pendingByReceiver[tx.ReceiverID()], tx)
		}
	}

	owners, err := uc.totalsByOwner(ctx, order)
	if err != nil {
		return err
	}

	var buyerUserID uuid.UUID
	orderID := order.ID()

	for _, owner := range owners {
		var tx *entities.Transaction
		pending := pendingByReceiver[owner.userID]
		if len(pending) > 0 {
			tx = pending[0]
		} else {
			if buyerUserID == uuid.Nil {
				_, buyer, err := uc.resolveBuyer(ctx, order.CustomerID())
				if err != nil {
					return err
				}
				buyerUserID = buyer.ID()
			}
			tx, err = uc.ledger.RecordPendingTransfer(ctx, buyerUserID, owner.userID, owner.total,
				fmt.Sprintf("Bank transfer for order %s", orderID), &orderID)
			if err != nil {
				return err
			}
		}

		if err := uc.ledger.SettlePendingTransfer(ctx, tx, owner.total); err != nil {
			return err
		}
		// лишние Pending записи того же владельца покрыты суммой выше
		for _, extra := range pending[min(1, len(pending)):] {
			if err := uc.ledger.FailPendingTransfer(ctx, extra); err != nil {
				return err
			}
		}
	}

	return order.TransitionTo(entities.OrderStatusPaid)
}

// reject переводит заказ в PaymentFailed, отменяет Pending записи и возвращает остатки.
func (uc *ReconcilePaymentUseCase) reject(ctx context.Context, order *entities.Order, txs []*entities.Transaction, received valueobjects.Money) error {
	for _, tx := range txs {
		if tx.IsPending() {
			if err := uc.ledger.FailPendingTransfer(ctx, tx); err != nil {
				return err
			}
		}
	}

	if err := uc.restock(ctx, order); err != nil {
		return err
	}

	if err := order.TransitionTo(entities.OrderStatusPaymentFailed); err != nil {
		return err
	}
	order.AppendNote(fmt.Sprintf("payment mismatch: expected %s, received %s", order.TotalPrice(), received))
	return nil
}
