// Package dtos - Payment DTOs для уведомлений платёжного шлюза SePay.
package dtos

import "github.com/shopspring/decimal"

// SePayWebhookPayload - тело уведомления SePay о входящем банковском переводе.
//
// Код заказа (order id) передаётся покупателем в назначении платежа;
// SePay извлекает его в поле Code. Если Code пуст, id ищется в Content.
// Суммы читаются сразу в decimal: JSON число не проходит через float64.
type SePayWebhookPayload struct {
	ID              int64           `json:"id" binding:"required"`
	Gateway         string          `json:"gateway"`
	TransactionDate string          `json:"transactionDate"`
	AccountNumber   string          `json:"accountNumber"`
	Code            string          `json:"code"`
	Content         string          `json:"content"`
	TransferType    string          `json:"transferType"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
	Accumulated     decimal.Decimal `json:"accumulated"`
	ReferenceCode   string          `json:"referenceCode"`
	Description     string          `json:"description"`
}

// ReconcilePaymentCommand - сверка входящего платежа с суммой заказа.
type ReconcilePaymentCommand struct {
	OrderID           string `validate:"required,uuid"`
	TransferAmount    string `validate:"required,money_amount"`
	GatewayTransferID string
}

// PaymentReconciliationDTO - результат сверки.
type PaymentReconciliationDTO struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Matched          bool   `json:"matched"`
	AlreadyProcessed bool   `json:"already_processed"`
}
