// Package dtos - Mappers для конвертации domain entities в DTOs.
//
// Pattern: Mapper/Converter
// Отделяет domain representation от API representation
package dtos

import (
	"github.com/Haleralex/marketbridge/internal/domain/entities"
)

// ============================================
// Order Mappers
// ============================================

// ToOrderDTO конвертирует Order в DTO. buyerName берётся из профиля покупателя.
func ToOrderDTO(order *entities.Order, buyerName string) OrderDTO {
	shipping := order.Shipping()
	details := order.Details()

	items := make([]OrderItemDTO, len(details))
	for i, d := range details {
		items[i] = OrderItemDTO{
			ID:         d.ID().String(),
			MatchID:    d.MatchID().String(),
			FactoryID:  d.FactoryID().String(),
			Quantity:   d.Quantity(),
			Price:      d.Price().String(),
			Discount:   d.Discount().String(),
			TotalPrice: d.TotalPrice().String(),
		}
	}

	return OrderDTO{
		ID:              order.ID().String(),
		CustomerID:      order.CustomerID().String(),
		BuyerName:       buyerName,
		ShippingAddress: shipping.Address,
		ShippingPhone:   shipping.Phone,
		ShippingEmail:   shipping.Email,
		TotalPrice:      order.TotalPrice().String(),
		PaymentMethod:   string(order.PaymentMethod()),
		Status:          order.Status().String(),
		StatusCode:      int(order.Status()),
		Note:            order.Note(),
		Items:           items,
		CreatedAt:       order.CreatedAt(),
		ModifiedAt:      order.ModifiedAt(),
	}
}

// ============================================
// Transaction Mappers
// ============================================

// ToTransactionDTO конвертирует запись ledger'а в DTO.
func ToTransactionDTO(tx *entities.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             tx.ID().String(),
		SenderID:       tx.SenderID().String(),
		ReceiverID:     tx.ReceiverID().String(),
		CurrentBalance: tx.CurrentBalance().String(),
		Amount:         tx.Amount().String(),
		AfterBalance:   tx.AfterBalance().String(),
		Description:    tx.Description(),
		Type:           string(tx.Type()),
		Status:         string(tx.Status()),
		CreatedAt:      tx.CreatedAt(),
		ModifiedAt:     tx.ModifiedAt(),
	}

	if orderID := tx.OrderID(); orderID != nil {
		s := orderID.String()
		dto.OrderID = &s
	}

	return dto
}

// ToTransactionListDTO конвертирует список записей.
func ToTransactionListDTO(transactions []*entities.Transaction) *TransactionListDTO {
	result := make([]TransactionDTO, len(transactions))
	for i, tx := range transactions {
		result[i] = ToTransactionDTO(tx)
	}
	return &TransactionListDTO{Transactions: result, TotalCount: len(result)}
}
