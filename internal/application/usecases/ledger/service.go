// Package ledger содержит Transaction Service и use cases кошелька.
//
// Service - единственное место, где меняются балансы пользователей.
// Его методы, изменяющие состояние, должны вызываться внутри UnitOfWork:
// блокировки строк и атомарность обеспечивает транзакция вызывающего.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/events"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// Service - Transaction Service.
type Service struct {
	userRepo        ports.UserRepository
	transactionRepo ports.TransactionRepository
	eventPublisher  ports.EventPublisher
}

// NewService создаёт Transaction Service.
func NewService(
	userRepo ports.UserRepository,
	transactionRepo ports.TransactionRepository,
	eventPublisher ports.EventPublisher,
) *Service {
	return &Service{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		eventPublisher:  eventPublisher,
	}
}

// CreateTransaction переводит amount от sender к receiver и пишет запись
// со статусом Success и типом Transfer.
//
// Не идемпотентна: повторный вызов создаёт вторую запись и второй раз
// двигает балансы. Вызывающий гарантирует at-most-once.
//
// Ошибки: ValidationError (amount <= 0, sender == receiver), NotFound,
// InsufficientFunds. При ошибке балансы не меняются.
func (s *Service) CreateTransaction(
	ctx context.Context,
	senderID, receiverID uuid.UUID,
	amount valueobjects.Money,
	description string,
	orderID *uuid.UUID,
) (*entities.Transaction, error) {
	if err := validateTransfer(senderID, receiverID, amount); err != nil {
		return nil, err
	}

	sender, receiver, err := s.lockPair(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	if !sender.HasSufficientBalance(amount) {
		return nil, errors.InsufficientFunds(sender.ID(), amount, sender.Balance())
	}

	// Снимок баланса берётся до списания
	tx, err := entities.NewTransfer(sender.ID(), receiver.ID(), sender.Balance(), amount, description, orderID)
	if err != nil {
		return nil, err
	}

	if err := sender.Debit(amount); err != nil {
		return nil, err
	}
	if err := receiver.Credit(amount); err != nil {
		return nil, err
	}

	if err := s.userRepo.Save(ctx, sender); err != nil {
		return nil, fmt.Errorf("failed to save sender: %w", err)
	}
	if err := s.userRepo.Save(ctx, receiver); err != nil {
		return nil, fmt.Errorf("failed to save receiver: %w", err)
	}
	if err := s.transactionRepo.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	if err := s.publishCreated(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// RecordPendingTransfer пишет Pending запись без движения балансов.
// Используется для заказов с оплатой банковским переводом.
func (s *Service) RecordPendingTransfer(
	ctx context.Context,
	senderID, receiverID uuid.UUID,
	amount valueobjects.Money,
	description string,
	orderID *uuid.UUID,
) (*entities.Transaction, error) {
	if err := validateTransfer(senderID, receiverID, amount); err != nil {
		return nil, err
	}

	sender, err := s.userRepo.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.FindByID(ctx, receiverID); err != nil {
		return nil, err
	}

	tx, err := entities.NewPendingTransfer(senderID, receiverID, sender.Balance(), amount, description, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.transactionRepo.Save(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	if err := s.publishCreated(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// SettlePendingTransfer переводит Pending запись в Success с итоговой суммой
// и зачисляет её получателю. Деньги пришли извне (банковский перевод),
// поэтому баланс отправителя не меняется.
func (s *Service) SettlePendingTransfer(ctx context.Context, tx *entities.Transaction, amount valueobjects.Money) error {
	receiver, err := s.userRepo.FindByIDForUpdate(ctx, tx.ReceiverID())
	if err != nil {
		return err
	}

	if err := tx.Settle(amount); err != nil {
		return err
	}
	if err := receiver.Credit(amount); err != nil {
		return err
	}

	if err := s.userRepo.Save(ctx, receiver); err != nil {
		return fmt.Errorf("failed to save receiver: %w", err)
	}
	if err := s.transactionRepo.Save(ctx, tx); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	metrics.RecordLedgerEntry(string(tx.Status()), tx.Amount().Decimal().InexactFloat64())
	return s.eventPublisher.Publish(ctx,
		events.NewTransactionSettled(tx.ID(), string(tx.Status()), tx.Amount().String()))
}

// FailPendingTransfer переводит Pending запись в Failed.
func (s *Service) FailPendingTransfer(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Fail(); err != nil {
		return err
	}
	if err := s.transactionRepo.Save(ctx, tx); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	metrics.RecordLedgerEntry(string(tx.Status()), 0)
	return s.eventPublisher.Publish(ctx,
		events.NewTransactionSettled(tx.ID(), string(tx.Status()), tx.Amount().String()))
}

// HasSufficientBalance возвращает false, если пользователь не найден
// или его баланс меньше amount. Ошибка возвращается только при сбое хранилища.
func (s *Service) HasSufficientBalance(ctx context.Context, userID uuid.UUID, amount valueobjects.Money) (bool, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.HasSufficientBalance(amount), nil
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (valueobjects.Money, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return valueobjects.Money{}, err
	}
	return user.Balance(), nil
}

// GetUserTransactions возвращает записи, где пользователь отправитель или получатель.
// NotFound, если пользователя нет.
func (s *Service) GetUserTransactions(ctx context.Context, userID uuid.UUID) ([]*entities.Transaction, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.transactionRepo.FindByUser(ctx, userID)
}

// GetOrderTransactions возвращает записи заказа. Пустой список не ошибка.
func (s *Service) GetOrderTransactions(ctx context.Context, orderID uuid.UUID) ([]*entities.Transaction, error) {
	txs, err := s.transactionRepo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*entities.Transaction{}
	}
	return txs, nil
}

// lockPair блокирует обоих пользователей в порядке id, чтобы встречные
// переводы не взаимоблокировались.
func (s *Service) lockPair(ctx context.Context, senderID, receiverID uuid.UUID) (*entities.User, *entities.User, error) {
	first, second := senderID, receiverID
	if second.String() < first.String() {
		first, second = second, first
	}

	a, err := s.userRepo.FindByIDForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.userRepo.FindByIDForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if a.ID() == senderID {
		return a, b, nil
	}
	return b, a, nil
}

func (s *Service) publishCreated(ctx context.Context, tx *entities.Transaction) error {
	metrics.RecordLedgerEntry(string(tx.Status()), tx.Amount().Decimal().InexactFloat64())
	return s.eventPublisher.Publish(ctx, events.NewTransactionCreated(
		tx.ID(), tx.SenderID(), tx.ReceiverID(), tx.Amount().String(), string(tx.Status()), tx.OrderID(),
	))
}

func validateTransfer(senderID, receiverID uuid.UUID, amount valueobjects.Money) error {
	if !amount.IsPositive() {
		return errors.NewValidationError("amount", "amount must be positive")
	}
	if senderID == receiverID {
		return errors.NewValidationError("receiver_id", "sender and receiver must differ")
	}
	return nil
}
