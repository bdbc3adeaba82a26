// Package dtos - Transaction DTOs для передачи данных о записях ledger'а.
package dtos

import "time"

// ============================================
// Commands (Write операции)
// ============================================

// TransferFundsCommand - перевод с кошелька текущего пользователя.
type TransferFundsCommand struct {
	SenderID    string `json:"-"` // из JWT claims
	ReceiverID  string `json:"receiver_id" validate:"required,uuid"`
	Amount      string `json:"amount" validate:"required,money_amount"`
	Description string `json:"description" validate:"max=500"`
}

// ============================================
// Queries (Read операции)
// ============================================

// GetUserTransactionsQuery - записи, где пользователь отправитель или получатель.
type GetUserTransactionsQuery struct {
	UserID string
}

// GetOrderTransactionsQuery - записи, привязанные к заказу.
type GetOrderTransactionsQuery struct {
	OrderID     string
	ActorUserID string
}

// GetBalanceQuery - баланс кошелька пользователя.
type GetBalanceQuery struct {
	UserID string
}

// ============================================
// Response DTOs
// ============================================

// TransactionDTO - представление записи ledger'а для API.
type TransactionDTO struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	CurrentBalance string    `json:"current_balance"`
	Amount         string    `json:"amount"`
	AfterBalance   string    `json:"after_balance"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	OrderID        *string   `json:"order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// TransactionListDTO - результат для списка записей.
type TransactionListDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	TotalCount   int              `json:"total_count"`
}

// BalanceDTO - баланс кошелька.
type BalanceDTO struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}
