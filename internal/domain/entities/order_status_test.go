package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainerrors "github.com/Haleralex/marketbridge/internal/domain/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},

		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},

		{OrderStatusPending, OrderStatusProcessing, false},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusShipped, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusPaymentFailed, false},
		{OrderStatusPending, OrderStatusPaymentFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, domainerrors.IsInvalidState(err))
			assert.Equal(t, domainerrors.CodeInvalidTransition, domainerrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.from.String())
			assert.Contains(t, err.Error(), tt.to.String())
		})
	}
}

func TestCanTransition_SameStatusIsNoop(t *testing.T) {
	for status := range orderStatusNames {
		assert.NoError(t, CanTransition(status, status), status.String())
	}
}

func TestOrderStatus_IsCancellable(t *testing.T) {
	assert.True(t, OrderStatusPending.IsCancellable())
	assert.True(t, OrderStatusPaid.IsCancellable())
	assert.True(t, OrderStatusProcessing.IsCancellable())
	assert.False(t, OrderStatusShipped.IsCancellable())
	assert.False(t, OrderStatusDelivered.IsCancellable())
	assert.False(t, OrderStatusCancelled.IsCancellable())
	assert.False(t, OrderStatusPaymentFailed.IsCancellable())
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus("processing")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, s)

	_, err = ParseOrderStatus("Lost")
	assert.True(t, domainerrors.IsValidationError(err))

	assert.Equal(t, "OrderStatus(42)", OrderStatus(42).String())
	assert.False(t, OrderStatus(42).IsValid())
}
