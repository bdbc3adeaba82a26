package entities

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

func TestNewTransfer_SnapshotsBalances(t *testing.T) {
	orderID := uuid.New()
	tx, err := NewTransfer(uuid.New(), uuid.New(),
		valueobjects.MustMoney("200"), valueobjects.MustMoney("150"), "Payment for order", &orderID)
	require.NoError(t, err)

	assert.Equal(t, "200.00", tx.CurrentBalance().String())
	assert.Equal(t, "50.00", tx.AfterBalance().String())
	assert.Equal(t, TransactionTypeTransfer, tx.Type())
	assert.Equal(t, TransactionStatusSuccess, tx.Status())
	assert.Equal(t, orderID, *tx.OrderID())
}

func TestNewTransfer_Validation(t *testing.T) {
	same := uuid.New()

	tests := []struct {
		name     string
		sender   uuid.UUID
		receiver uuid.UUID
		amount   string
	}{
		{"Zero amount", uuid.New(), uuid.New(), "0"},
		{"Self transfer", same, same, "1"},
		{"Missing receiver", uuid.New(), uuid.Nil, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransfer(tt.sender, tt.receiver, valueobjects.MustMoney("10"), valueobjects.MustMoney(tt.amount), "", nil)
			assert.True(t, domainerrors.IsValidationError(err))
		})
	}
}

func TestTransaction_SettleAndFail(t *testing.T) {
	tx, err := NewPendingTransfer(uuid.New(), uuid.New(), valueobjects.MustMoney("0"), valueobjects.MustMoney("40"), "", nil)
	require.NoError(t, err)
	assert.True(t, tx.IsPending())

	require.NoError(t, tx.Settle(valueobjects.MustMoney("45")))
	assert.True(t, tx.IsSuccess())
	assert.Equal(t, "45.00", tx.Amount().String())
	assert.True(t, tx.AfterBalance().Equals(tx.CurrentBalance().Subtract(tx.Amount())))

	err = tx.Settle(valueobjects.MustMoney("45"))
	assert.Equal(t, domainerrors.CodeNotPending, domainerrors.CodeOf(err))
	assert.True(t, domainerrors.IsInvalidState(tx.Fail()))

	other, err := NewPendingTransfer(uuid.New(), uuid.New(), valueobjects.Zero(), valueobjects.MustMoney("1"), "", nil)
	require.NoError(t, err)
	require.NoError(t, other.Fail())
	assert.Equal(t, TransactionStatusFailed, other.Status())
}
