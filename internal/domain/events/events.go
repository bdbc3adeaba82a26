// Package events defines domain events that represent significant business occurrences.
// Events are immutable facts about what happened in the past.
//
// Use cases raise them inside the same unit of work as the state change; the
// outbox adapter persists them and the relay forwards them to the message bus.
package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events.
// All events must have an ID, timestamp, and type.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID // ID of the entity that raised this event
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
}

func newBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now().UTC(),
		aggregateID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID     { return e.eventID }
func (e BaseEvent) EventType() string      { return e.eventType }
func (e BaseEvent) OccurredAt() time.Time  { return e.occurredAt }
func (e BaseEvent) AggregateID() uuid.UUID { return e.aggregateID }

// Event Types (constants for type checking)
const (
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderPaid          = "order.paid"
	EventTypeOrderPaymentFailed = "order.payment_failed"
	EventTypeOrderCancelled     = "order.cancelled"
	EventTypeOrderStatusChanged = "order.status_changed"
	EventTypeTransactionCreated = "transaction.created"
	EventTypeTransactionSettled = "transaction.settled"
)

// AggregateType maps an event type to the aggregate that raised it.
func AggregateType(eventType string) string {
	switch {
	case len(eventType) > 6 && eventType[:6] == "order.":
		return "Order"
	case len(eventType) > 12 && eventType[:12] == "transaction.":
		return "Transaction"
	default:
		return "Unknown"
	}
}

// ===== Order Events =====

// OrderCreated is raised when a buyer places an order.
type OrderCreated struct {
	BaseEvent
	OrderID       uuid.UUID `json:"order_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	TotalPrice    string    `json:"total_price"`
	PaymentMethod string    `json:"payment_method"`
	ItemCount     int       `json:"item_count"`
}

func NewOrderCreated(orderID, customerID uuid.UUID, totalPrice, paymentMethod string, itemCount int) *OrderCreated {
	return &OrderCreated{
		BaseEvent:     newBaseEvent(EventTypeOrderCreated, orderID),
		OrderID:       orderID,
		CustomerID:    customerID,
		TotalPrice:    totalPrice,
		PaymentMethod: paymentMethod,
		ItemCount:     itemCount,
	}
}

// OrderPaid is raised when a bank transfer is reconciled against the order total.
type OrderPaid struct {
	BaseEvent
	OrderID         uuid.UUID `json:"order_id"`
	AmountReceived  string    `json:"amount_received"`
	GatewayTransfer string    `json:"gateway_transfer_id"`
}

func NewOrderPaid(orderID uuid.UUID, amountReceived, gatewayTransferID string) *OrderPaid {
	return &OrderPaid{
		BaseEvent:       newBaseEvent(EventTypeOrderPaid, orderID),
		OrderID:         orderID,
		AmountReceived:  amountReceived,
		GatewayTransfer: gatewayTransferID,
	}
}

// OrderPaymentFailed is raised when the received amount does not match the total.
type OrderPaymentFailed struct {
	BaseEvent
	OrderID        uuid.UUID `json:"order_id"`
	Expected       string    `json:"expected"`
	AmountReceived string    `json:"amount_received"`
}

func NewOrderPaymentFailed(orderID uuid.UUID, expected, received string) *OrderPaymentFailed {
	return &OrderPaymentFailed{
		BaseEvent:      newBaseEvent(EventTypeOrderPaymentFailed, orderID),
		OrderID:        orderID,
		Expected:       expected,
		AmountReceived: received,
	}
}

// OrderCancelled is raised after an order is cancelled and its sellers refunded.
type OrderCancelled struct {
	BaseEvent
	OrderID       uuid.UUID `json:"order_id"`
	Reason        string    `json:"reason"`
	RefundedTotal string    `json:"refunded_total"`
}

func NewOrderCancelled(orderID uuid.UUID, reason, refundedTotal string) *OrderCancelled {
	return &OrderCancelled{
		BaseEvent:     newBaseEvent(EventTypeOrderCancelled, orderID),
		OrderID:       orderID,
		Reason:        reason,
		RefundedTotal: refundedTotal,
	}
}

// OrderStatusChanged is raised on every manual status update.
type OrderStatusChanged struct {
	BaseEvent
	OrderID   uuid.UUID `json:"order_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy uuid.UUID `json:"changed_by"`
}

func NewOrderStatusChanged(orderID uuid.UUID, from, to string, changedBy uuid.UUID) *OrderStatusChanged {
	return &OrderStatusChanged{
		BaseEvent: newBaseEvent(EventTypeOrderStatusChanged, orderID),
		OrderID:   orderID,
		From:      from,
		To:        to,
		ChangedBy: changedBy,
	}
}

// ===== Transaction Events =====

// TransactionCreated is raised for every ledger entry written.
type TransactionCreated struct {
	BaseEvent
	TransactionID uuid.UUID  `json:"transaction_id"`
	SenderID      uuid.UUID  `json:"sender_id"`
	ReceiverID    uuid.UUID  `json:"receiver_id"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
}

func NewTransactionCreated(
	transactionID, senderID, receiverID uuid.UUID,
	amount, status string,
	orderID *uuid.UUID,
) *TransactionCreated {
	return &TransactionCreated{
		BaseEvent:     newBaseEvent(EventTypeTransactionCreated, transactionID),
		TransactionID: transactionID,
		SenderID:      senderID,
		ReceiverID:    receiverID,
		Amount:        amount,
		Status:        status,
		OrderID:       orderID,
	}
}

// TransactionSettled is raised when a pending entry is promoted to Success or Failed.
type TransactionSettled struct {
	BaseEvent
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
}

func NewTransactionSettled(transactionID uuid.UUID, status, amount string) *TransactionSettled {
	return &TransactionSettled{
		BaseEvent:     newBaseEvent(EventTypeTransactionSettled, transactionID),
		TransactionID: transactionID,
		Status:        status,
		Amount:        amount,
	}
}

// EventStore collects events raised while a use case runs so they can be
// published together once the state change is persisted.
type EventStore struct {
	events []DomainEvent
}

// NewEventStore creates a new event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make([]DomainEvent, 0),
	}
}

// Add appends an event to the store.
func (s *EventStore) Add(event DomainEvent) {
	s.events = append(s.events, event)
}

// GetAll returns all collected events.
func (s *EventStore) GetAll() []DomainEvent {
	return s.events
}

// Clear removes all events from the store.
func (s *EventStore) Clear() {
	s.events = make([]DomainEvent, 0)
}

// Count returns the number of events in the store.
func (s *EventStore) Count() int {
	return len(s.events)
}
