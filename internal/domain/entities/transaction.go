// Package entities - Transaction is a ledger entry: one balance movement between
// two parties, optionally tied to an order.
package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

// TransactionType represents the kind of balance movement.
type TransactionType string

const (
	TransactionTypeTransfer TransactionType = "Transfer"
	TransactionTypeWithdraw TransactionType = "Withdraw"
	TransactionTypeDeposit  TransactionType = "Deposit"
)

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeTransfer, TransactionTypeWithdraw, TransactionTypeDeposit:
		return true
	default:
		return false
	}
}

// TransactionStatus represents the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "Success"
	TransactionStatusPending TransactionStatus = "Pending"
	TransactionStatusFailed  TransactionStatus = "Failed"
)

// IsValid checks if the transaction status is valid.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusSuccess, TransactionStatusPending, TransactionStatusFailed:
		return true
	default:
		return false
	}
}

// Transaction is logically immutable once created. The only permitted change is
// promoting a Pending entry to Success or Failed during payment reconciliation.
//
// Invariant: afterBalance == currentBalance - amount, where currentBalance is the
// sender's balance snapshot taken when the entry was created.
type Transaction struct {
	id              uuid.UUID
	senderID        uuid.UUID
	receiverID      uuid.UUID
	currentBalance  valueobjects.Money
	amount          valueobjects.Money
	afterBalance    valueobjects.Money
	description     string
	transactionType TransactionType
	status          TransactionStatus
	orderID         *uuid.UUID
	Audit
}

// NewTransfer creates a settled Transfer entry.
func NewTransfer(
	senderID, receiverID uuid.UUID,
	senderBalance, amount valueobjects.Money,
	description string,
	orderID *uuid.UUID,
) (*Transaction, error) {
	return newTransaction(senderID, receiverID, senderBalance, amount, description, orderID, TransactionStatusSuccess)
}

// NewPendingTransfer creates a Transfer entry awaiting external settlement.
func NewPendingTransfer(
	senderID, receiverID uuid.UUID,
	senderBalance, amount valueobjects.Money,
	description string,
	orderID *uuid.UUID,
) (*Transaction, error) {
	return newTransaction(senderID, receiverID, senderBalance, amount, description, orderID, TransactionStatusPending)
}

func newTransaction(
	senderID, receiverID uuid.UUID,
	senderBalance, amount valueobjects.Money,
	description string,
	orderID *uuid.UUID,
	status TransactionStatus,
) (*Transaction, error) {
	var verrs errors.ValidationErrors
	if senderID == uuid.Nil {
		verrs.Add("sender_id", "sender is required")
	}
	if receiverID == uuid.Nil {
		verrs.Add("receiver_id", "receiver is required")
	}
	if senderID != uuid.Nil && senderID == receiverID {
		verrs.Add("receiver_id", "sender and receiver must differ")
	}
	if !amount.IsPositive() {
		verrs.Add("amount", "amount must be positive")
	}
	if verrs.HasErrors() {
		return nil, verrs
	}

	return &Transaction{
		id:              uuid.New(),
		senderID:        senderID,
		receiverID:      receiverID,
		currentBalance:  senderBalance,
		amount:          amount,
		afterBalance:    senderBalance.Subtract(amount),
		description:     description,
		transactionType: TransactionTypeTransfer,
		status:          status,
		orderID:         orderID,
		Audit:           newAudit(time.Now().UTC()),
	}, nil
}

// ReconstructTransaction rebuilds a Transaction from storage.
func ReconstructTransaction(
	id, senderID, receiverID uuid.UUID,
	currentBalance, amount, afterBalance valueobjects.Money,
	description string,
	transactionType TransactionType,
	status TransactionStatus,
	orderID *uuid.UUID,
	audit Audit,
) *Transaction {
	return &Transaction{
		id:              id,
		senderID:        senderID,
		receiverID:      receiverID,
		currentBalance:  currentBalance,
		amount:          amount,
		afterBalance:    afterBalance,
		description:     description,
		transactionType: transactionType,
		status:          status,
		orderID:         orderID,
		Audit:           audit,
	}
}

func (t *Transaction) ID() uuid.UUID                      { return t.id }
func (t *Transaction) SenderID() uuid.UUID                { return t.senderID }
func (t *Transaction) ReceiverID() uuid.UUID              { return t.receiverID }
func (t *Transaction) CurrentBalance() valueobjects.Money { return t.currentBalance }
func (t *Transaction) Amount() valueobjects.Money         { return t.amount }
func (t *Transaction) AfterBalance() valueobjects.Money   { return t.afterBalance }
func (t *Transaction) Description() string                { return t.description }
func (t *Transaction) Type() TransactionType              { return t.transactionType }
func (t *Transaction) Status() TransactionStatus          { return t.status }
func (t *Transaction) OrderID() *uuid.UUID                { return t.orderID }
func (t *Transaction) IsPending() bool                    { return t.status == TransactionStatusPending }
func (t *Transaction) IsSuccess() bool                    { return t.status == TransactionStatusSuccess }

// Settle promotes a Pending entry to Success with the final amount.
func (t *Transaction) Settle(amount valueobjects.Money) error {
	if !t.IsPending() {
		return errors.InvalidState(errors.CodeNotPending,
			fmt.Sprintf("transaction %s is %s, not Pending", t.id, t.status))
	}
	if !amount.IsPositive() {
		return errors.NewValidationError("amount", "amount must be positive")
	}
	t.amount = amount
	t.afterBalance = t.currentBalance.Subtract(amount)
	t.status = TransactionStatusSuccess
	t.touch()
	return nil
}

// Fail promotes a Pending entry to Failed.
func (t *Transaction) Fail() error {
	if !t.IsPending() {
		return errors.InvalidState(errors.CodeNotPending,
			fmt.Sprintf("transaction %s is %s, not Pending", t.id, t.status))
	}
	t.status = TransactionStatusFailed
	t.touch()
	return nil
}
