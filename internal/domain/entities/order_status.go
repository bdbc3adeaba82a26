package entities

import (
	"fmt"
	"strings"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
)

// OrderStatus is the closed set of order states. Numeric values are persisted.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusPaid
	OrderStatusProcessing
	OrderStatusShipped
	OrderStatusDelivered
	OrderStatusCancelled
	// OrderStatusPaymentFailed is terminal and reachable only through payment reconciliation.
	OrderStatusPaymentFailed
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusPending:       "Pending",
	OrderStatusPaid:          "Paid",
	OrderStatusProcessing:    "Processing",
	OrderStatusShipped:       "Shipped",
	OrderStatusDelivered:     "Delivered",
	OrderStatusCancelled:     "Cancelled",
	OrderStatusPaymentFailed: "PaymentFailed",
}

type statusTransition struct {
	from, to OrderStatus
}

// orderTransitions is the only place that decides which (from, to) pairs are legal.
// Same-status pairs are handled as no-ops by CanTransition.
var orderTransitions = map[statusTransition]bool{
	{OrderStatusPending, OrderStatusPaid}:          true,
	{OrderStatusPaid, OrderStatusProcessing}:       true,
	{OrderStatusProcessing, OrderStatusShipped}:    true,
	{OrderStatusShipped, OrderStatusDelivered}:     true,
	{OrderStatusPending, OrderStatusCancelled}:     true,
	{OrderStatusPaid, OrderStatusCancelled}:        true,
	{OrderStatusProcessing, OrderStatusCancelled}:  true,
	{OrderStatusShipped, OrderStatusCancelled}:     true,
	{OrderStatusPending, OrderStatusPaymentFailed}: true,
}

// cancellableStatuses are the states from which a buyer may cancel.
var cancellableStatuses = map[OrderStatus]bool{
	OrderStatusPending:    true,
	OrderStatusPaid:       true,
	OrderStatusProcessing: true,
}

// String returns the status text used in API responses.
func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// IsValid checks if the status is part of the enumeration.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// IsFinal returns true for states with no outgoing transitions.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusPaymentFailed
}

// IsCancellable reports whether a buyer may cancel from this state.
func (s OrderStatus) IsCancellable() bool {
	return cancellableStatuses[s]
}

// ParseOrderStatus accepts the status name (case-insensitive).
func ParseOrderStatus(name string) (OrderStatus, error) {
	for status, n := range orderStatusNames {
		if strings.EqualFold(n, name) {
			return status, nil
		}
	}
	return 0, errors.NewValidationError("status", fmt.Sprintf("unknown order status %q", name))
}

// CanTransition is the transition guard used by every status change.
// It permits forward moves along Pending→Paid→Processing→Shipped→Delivered,
// moves to Cancelled from Pending, Paid, Processing or Shipped, Pending→PaymentFailed,
// and same→same as a no-op.
func CanTransition(from, to OrderStatus) error {
	if from == to {
		return nil
	}
	if orderTransitions[statusTransition{from, to}] {
		return nil
	}
	return errors.InvalidState(errors.CodeInvalidTransition,
		fmt.Sprintf("cannot change order status from %s to %s", from, to))
}
