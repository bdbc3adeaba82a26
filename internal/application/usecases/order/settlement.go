// Package order содержит use cases заказов: создание, сверку платежа SePay,
// отмену, ручную смену статуса и запросы.
package order

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/application/usecases/ledger"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// refundableStatuses - статусы, в которых оплаченный с кошелька заказ
// возвращает деньги при отмене. Shipped достижим только ручной отменой.
var refundableStatuses = map[entities.OrderStatus]bool{
	entities.OrderStatusPaid:       true,
	entities.OrderStatusProcessing: true,
	entities.OrderStatusShipped:    true,
}

// settlement - денежная и складская часть заказа, общая для нескольких use cases.
type settlement struct {
	ledger       *ledger.Service
	customerRepo ports.CustomerRepository
	userRepo     ports.UserRepository
	factoryRepo  ports.FactoryRepository
	matchRepo    ports.MatchRepository
}

// resolveBuyer загружает профиль покупателя и его учётную запись.
func (s *settlement) resolveBuyer(ctx context.Context, customerID uuid.UUID) (*entities.Customer, *entities.User, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.userRepo.FindByID(ctx, customer.UserID())
	if err != nil {
		return nil, nil, err
	}
	return customer, user, nil
}

// sellerOwner возвращает id пользователя, владеющего продавцом.
func (s *settlement) sellerOwner(ctx context.Context, factoryID uuid.UUID) (uuid.UUID, error) {
	factory, err := s.factoryRepo.FindByID(ctx, factoryID)
	if err != nil {
		return uuid.Nil, err
	}
	return factory.OwnerUserID(), nil
}

// ownerTotal - сумма заказа, причитающаяся одному пользователю-продавцу.
type ownerTotal struct {
	userID uuid.UUID
	total  valueobjects.Money
}

// totalsByOwner сводит суммы продавцов заказа к их владельцам.
// Один пользователь может владеть несколькими продавцами: такие суммы
// складываются, и на владельца приходится одна запись ledger'а.
// Порядок - по первому появлению продавца в заказе; нулевые суммы пропускаются.
func (s *settlement) totalsByOwner(ctx context.Context, order *entities.Order) ([]ownerTotal, error) {
	totals := order.TotalsBySeller()
	index := make(map[uuid.UUID]int)
	var owners []ownerTotal

	for _, factoryID := range order.SellerIDs() {
		total := totals[factoryID]
		if !total.IsPositive() {
			continue // бесплатные позиции не создают записей
		}
		userID, err := s.sellerOwner(ctx, factoryID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			owners[i].total = owners[i].total.Add(total)
			continue
		}
		index[userID] = len(owners)
		owners = append(owners, ownerTotal{userID: userID, total: total})
	}
	return owners, nil
}

// unwind откатывает деньги и остатки заказа перед отменой:
//   - Pending записи (банковский перевод) переводятся в Failed;
//   - для заказа, оплаченного с кошелька, каждому продавцу создаётся одна
//     обратная запись продавец → покупатель на сумму его платежей;
//   - остатки товаров возвращаются.
//
// Суммы возвратов считаются до первой записи. Ошибка любого возврата
// откатывает всю транзакцию команды. Возвращает сумму возвратов.
func (s *settlement) unwind(ctx context.Context, order *entities.Order, buyerUserID uuid.UUID) (valueobjects.Money, error) {
	txs, err := s.ledger.GetOrderTransactions(ctx, order.ID())
	if err != nil {
		return valueobjects.Money{}, fmt.Errorf("failed to load order transactions: %w", err)
	}

	for _, tx := range txs {
		if tx.IsPending() {
			if err := s.ledger.FailPendingTransfer(ctx, tx); err != nil {
				return valueobjects.Money{}, err
			}
		}
	}

	refunded := valueobjects.Zero()
	if order.PaymentMethod().IsWallet() && refundableStatuses[order.Status()] {
		owed := make(map[uuid.UUID]valueobjects.Money)
		for _, tx := range txs {
			if tx.IsSuccess() && tx.SenderID() == buyerUserID && tx.ReceiverID() != buyerUserID {
				owed[tx.ReceiverID()] = owed[tx.ReceiverID()].Add(tx.Amount())
			}
		}

		sellers := make([]uuid.UUID, 0, len(owed))
		for id := range owed {
			sellers = append(sellers, id)
		}
		sort.Slice(sellers, func(i, j int) bool { return sellers[i].String() < sellers[j].String() })

		orderID := order.ID()
		for _, seller := range sellers {
			if _, err := s.ledger.CreateTransaction(ctx, seller, buyerUserID, owed[seller],
				fmt.Sprintf("Refund for order %s", orderID), &orderID); err != nil {
				return valueobjects.Money{}, err
			}
			metrics.RefundsTotal.Inc()
			refunded = refunded.Add(owed[seller])
		}
	}

	if err := s.restock(ctx, order); err != nil {
		return valueobjects.Money{}, err
	}

	return refunded, nil
}

// restock возвращает заказанное количество на склад.
func (s *settlement) restock(ctx context.Context, order *entities.Order) error {
	for _, d := range order.Details() {
		match, err := s.matchRepo.FindByIDForUpdate(ctx, d.MatchID())
		if err != nil {
			if errors.IsNotFound(err) {
				// товар удалён из каталога, возвращать некуда
				continue
			}
			return err
		}
		match.Restock(d.Quantity())
		if err := s.matchRepo.Save(ctx, match); err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
	}
	return nil
}

// ============================================
// Access rules
// ============================================

// canView: покупатель заказа, продавец хотя бы одной позиции или админ.
func canView(actor *entities.User, order *entities.Order) bool {
	if canManage(actor, order) {
		return true
	}
	if cid := actor.CustomerID(); cid != nil && order.BelongsTo(*cid) {
		return true
	}
	return false
}

// canManage: админ или продавец хотя бы одной позиции.
func canManage(actor *entities.User, order *entities.Order) bool {
	if actor.IsAdmin() {
		return true
	}
	if fid := actor.FactoryID(); fid != nil && order.HasSeller(*fid) {
		return true
	}
	return false
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, errors.NewValidationError(field, "invalid ID format")
	}
	return id, nil
}
