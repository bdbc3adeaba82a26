package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/application/dtos"
	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

// TransferFundsUseCase - перевод с кошелька текущего пользователя другому пользователю.
//
// Транзакцию открывает pipeline.Transactional в контейнере.
type TransferFundsUseCase struct {
	ledger *Service
}

// NewTransferFundsUseCase создаёт новый use case.
func NewTransferFundsUseCase(ledger *Service) *TransferFundsUseCase {
	return &TransferFundsUseCase{ledger: ledger}
}

// Execute выполняет перевод.
func (uc *TransferFundsUseCase) Execute(ctx context.Context, cmd dtos.TransferFundsCommand) (*dtos.TransactionDTO, error) {
	senderID, err := uuid.Parse(cmd.SenderID)
	if err != nil {
		return nil, errors.NewValidationError("sender_id", "invalid user ID format")
	}
	receiverID, err := uuid.Parse(cmd.ReceiverID)
	if err != nil {
		return nil, errors.NewValidationError("receiver_id", "invalid user ID format")
	}
	amount, err := valueobjects.NewMoney(cmd.Amount)
	if err != nil {
		return nil, errors.NewValidationError("amount", err.Error())
	}

	description := cmd.Description
	if description == "" {
		description = "Wallet transfer"
	}

	tx, err := uc.ledger.CreateTransaction(ctx, senderID, receiverID, amount, description, nil)
	if err != nil {
		return nil, err
	}

	dto := dtos.ToTransactionDTO(tx)
	return &dto, nil
}
