// Package dtos - Order DTOs для передачи данных о заказах.
package dtos

import "time"

// ============================================
// Commands (Write операции)
// ============================================

// OrderItemInput - одна позиция запроса на создание заказа.
// Price опционален: если указан, он должен совпасть с ценой каталога.
type OrderItemInput struct {
	MatchID  string `json:"match_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Price    string `json:"price,omitempty" validate:"omitempty,money_amount"`
}

// CreateOrderCommand - команда для создания заказа.
type CreateOrderCommand struct {
	CustomerID      string           `json:"-"` // из JWT claims
	ShippingAddress string           `json:"shipping_address,omitempty" validate:"omitempty,max=500"`
	ShippingPhone   string           `json:"shipping_phone,omitempty" validate:"omitempty,max=32"`
	ShippingEmail   string           `json:"shipping_email,omitempty" validate:"omitempty,email"`
	PaymentMethod   string           `json:"payment_method" validate:"required,payment_method"`
	Note            string           `json:"note,omitempty" validate:"omitempty,max=1000"`
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// CancelOrderCommand - команда отмены заказа покупателем.
type CancelOrderCommand struct {
	OrderID    string `json:"-"`
	CustomerID string `json:"-"` // из JWT claims
	Reason     string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// UpdateOrderStatusCommand - ручная смена статуса (продавец или админ).
type UpdateOrderStatusCommand struct {
	OrderID     string `json:"-"`
	ActorUserID string `json:"-"` // из JWT claims
	Status      string `json:"status" validate:"required,order_status"`
	Note        string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ============================================
// Queries (Read операции)
// ============================================

// GetOrderQuery - запрос заказа по ID.
type GetOrderQuery struct {
	OrderID     string
	ActorUserID string
}

// ListOrdersQuery - заказы текущего покупателя.
type ListOrdersQuery struct {
	CustomerID string
	Offset     int `validate:"min=0"`
	Limit      int `validate:"min=0,max=100"`
}

// ============================================
// Response DTOs
// ============================================

// OrderItemDTO - позиция заказа.
type OrderItemDTO struct {
	ID         string `json:"id"`
	MatchID    string `json:"match_id"`
	FactoryID  string `json:"factory_id"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
	Discount   string `json:"discount"`
	TotalPrice string `json:"total_price"`
}

// OrderDTO - представление заказа для API.
type OrderDTO struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id"`
	BuyerName       string         `json:"buyer_name"`
	ShippingAddress string         `json:"shipping_address,omitempty"`
	ShippingPhone   string         `json:"shipping_phone,omitempty"`
	ShippingEmail   string         `json:"shipping_email,omitempty"`
	TotalPrice      string         `json:"total_price"`
	PaymentMethod   string         `json:"payment_method"`
	Status          string         `json:"status"`
	StatusCode      int            `json:"status_code"`
	Note            string         `json:"note,omitempty"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       time.Time      `json:"created_at"`
	ModifiedAt      time.Time      `json:"modified_at"`
}

// OrderListDTO - результат для списка заказов.
type OrderListDTO struct {
	Orders     []OrderDTO `json:"orders"`
	TotalCount int        `json:"total_count"`
	Offset     int        `json:"offset"`
	Limit      int        `json:"limit"`
}
