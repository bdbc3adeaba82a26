package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
)

// GetBalanceUseCase - баланс кошелька текущего пользователя.
type GetBalanceUseCase struct {
	ledger *Service
}

// NewGetBalanceUseCase создаёт новый use case.
func NewGetBalanceUseCase(ledger *Service) *GetBalanceUseCase {
	return &GetBalanceUseCase{ledger: ledger}
}

// Execute возвращает баланс.
func (uc *GetBalanceUseCase) Execute(ctx context.Context, query dtos.GetBalanceQuery) (*dtos.BalanceDTO, error) {
	userID, err := uuid.Parse(query.UserID)
	if err != nil {
		return nil, errors.NewValidationError("user_id", "invalid user ID format")
	}

	balance, err := uc.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dtos.BalanceDTO{UserID: userID.String(), Balance: balance.String()}, nil
}

// GetUserTransactionsUseCase - записи ledger'а текущего пользователя.
type GetUserTransactionsUseCase struct {
	ledger *Service
}

// NewGetUserTransactionsUseCase создаёт новый use case.
func NewGetUserTransactionsUseCase(ledger *Service) *GetUserTransactionsUseCase {
	return &GetUserTransactionsUseCase{ledger: ledger}
}

// Execute возвращает записи, где пользователь отправитель или получатель.
func (uc *GetUserTransactionsUseCase) Execute(ctx context.Context, query dtos.GetUserTransactionsQuery) (*dtos.TransactionListDTO, error) {
	userID, err := uuid.Parse(query.UserID)
	if err != nil {
		return nil, errors.NewValidationError("user_id", "invalid user ID format")
	}

	txs, err := uc.ledger.GetUserTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return dtos.ToTransactionListDTO(txs), nil
}
