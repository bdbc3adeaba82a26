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

// CreateOrderUseCase - use case для создания заказа.
//
// Сценарий:
// 1. Загрузить покупателя и его учётную запись
// 2. Для каждой позиции загрузить товар, зафиксировать цену каталога, зарезервировать остаток
// 3. Посчитать итог и сгруппировать позиции по продавцам
// 4. Для оплаты с кошелька проверить баланс ДО любых изменений
// 5. Сохранить заказ (Pending) с позициями
// 6. Кошелёк: одна запись ledger'а на продавца, затем статус Paid.
//    Банковский перевод: одна Pending запись на продавца, заказ ждёт webhook SePay
// 7. Опубликовать события
//
// Любая ошибка откатывает всю команду: частичного списания не бывает.
type CreateOrderUseCase struct {
	settlement
	orderRepo      ports.OrderRepository
	eventPublisher ports.EventPublisher
}

// NewCreateOrderUseCase создаёт новый use case.
func NewCreateOrderUseCase(
	ledgerService *ledger.Service,
	customerRepo ports.CustomerRepository,
	userRepo ports.UserRepository,
	factoryRepo ports.FactoryRepository,
	matchRepo ports.MatchRepository,
	orderRepo ports.OrderRepository,
	eventPublisher ports.EventPublisher,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
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

// Execute выполняет создание заказа.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd dtos.CreateOrderCommand) (*dtos.OrderDTO, error) {
	customerID, err := parseID("customer_id", cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	paymentMethod := entities.PaymentMethod(cmd.PaymentMethod)
	if !paymentMethod.IsValid() {
		return nil, errors.NewValidationError("payment_method", fmt.Sprintf("unsupported payment method %q", cmd.PaymentMethod))
	}

	// 1. Покупатель
	customer, buyer, err := uc.resolveBuyer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// 2. Товары: цена из каталога, резерв остатка
	lines, reserved, err := uc.reserveLines(ctx, cmd.Items)
	if err != nil {
		return nil, err
	}

	// 3. Заказ считает итог сам
	order, err := entities.NewOrder(customerID, entities.ShippingInfo{
		Address: cmd.ShippingAddress,
		Phone:   cmd.ShippingPhone,
		Email:   cmd.ShippingEmail,
	}, paymentMethod, cmd.Note, lines)
	if err != nil {
		return nil, err
	}

	// 4. Проверка баланса до любых изменений
	if paymentMethod.IsWallet() {
		ok, err := uc.ledger.HasSufficientBalance(ctx, buyer.ID(), order.TotalPrice())
		if err != nil {
			return nil, fmt.Errorf("failed to check balance: %w", err)
		}
		if !ok {
			return nil, errors.InsufficientFunds(buyer.ID(), order.TotalPrice(), buyer.Balance())
		}
	}

	// 5. Сохраняем остатки и заказ
	for _, m := range reserved {
		if err := uc.matchRepo.Save(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to save product: %w", err)
		}
	}
	if err := uc.orderRepo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	eventList := []events.DomainEvent{
		events.NewOrderCreated(order.ID(), customerID, order.TotalPrice().String(), string(paymentMethod), len(lines)),
	}

	// 6. Одна запись ledger'а на продавца
	if err := uc.chargeSellers(ctx, order, buyer.ID()); err != nil {
		return nil, err
	}

	if paymentMethod.IsWallet() {
		if err := order.TransitionTo(entities.OrderStatusPaid); err != nil {
			return nil, err
		}
		if err := uc.orderRepo.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
		eventList = append(eventList, events.NewOrderPaid(order.ID(), order.TotalPrice().String(), ""))
	}

	// 7. События
	if err := uc.eventPublisher.PublishBatch(ctx, eventList); err != nil {
		return nil, fmt.Errorf("failed to publish events: %w", err)
	}

	metrics.RecordOrder(string(paymentMethod), order.Status().String())

	dto := dtos.ToOrderDTO(order, customer.FullName())
	return &dto, nil
}

// reserveLines превращает позиции запроса в строки заказа.
// Повторяющийся товар загружается один раз, резерв суммируется.
func (uc *CreateOrderUseCase) reserveLines(ctx context.Context, items []dtos.OrderItemInput) ([]entities.OrderLine, []*entities.Match, error) {
	if len(items) == 0 {
		return nil, nil, errors.NewValidationError("items", "order must contain at least one item")
	}

	loaded := make(map[uuid.UUID]*entities.Match, len(items))
	var reserved []*entities.Match
	lines := make([]entities.OrderLine, 0, len(items))

	for i, item := range items {
		matchID, err := parseID(fmt.Sprintf("items[%d].match_id", i), item.MatchID)
		if err != nil {
			return nil, nil, err
		}

		match, ok := loaded[matchID]
		if !ok {
			match, err = uc.matchRepo.FindByIDForUpdate(ctx, matchID)
			if err != nil {
				return nil, nil, err
			}
			loaded[matchID] = match
			reserved = append(reserved, match)
		}

		if item.Price != "" {
			requested, err := valueobjects.NewMoney(item.Price)
			if err != nil {
				return nil, nil, errors.NewValidationError(fmt.Sprintf("items[%d].price", i), err.Error())
			}
			if !requested.Equals(match.Price()) {
				return nil, nil, errors.InvalidState(errors.CodePriceMismatch,
					fmt.Sprintf("price of product %s is %s, not %s", matchID, match.Price(), requested))
			}
		}

		if item.Quantity <= 0 {
			return nil, nil, errors.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		if err := match.Reserve(item.Quantity); err != nil {
			return nil, nil, err
		}

		lines = append(lines, entities.OrderLine{
			MatchID:   matchID,
			FactoryID: match.FactoryID(),
			Quantity:  item.Quantity,
			Price:     match.Price(),
		})
	}

	return lines, reserved, nil
}

// chargeSellers пишет по одной записи ledger'а на каждого владельца продавцов заказа.
func (uc *CreateOrderUseCase) chargeSellers(ctx context.Context, order *entities.Order, buyerUserID uuid.UUID) error {
	owners, err := uc.totalsByOwner(ctx, order)
	if err != nil {
		return err
	}
	orderID := order.ID()

	for _, owner := range owners {
		if order.PaymentMethod().IsWallet() {
			_, err = uc.ledger.CreateTransaction(ctx, buyerUserID, owner.userID, owner.total,
				fmt.Sprintf("Payment for order %s", orderID), &orderID)
		} else {
			_, err = uc.ledger.RecordPendingTransfer(ctx, buyerUserID, owner.userID, owner.total,
				fmt.Sprintf("Bank transfer for order %s", orderID), &orderID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
