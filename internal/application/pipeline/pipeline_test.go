package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	domainerrors "github.com/Haleralex/marketbridge/internal/domain/errors"
)

type txKey struct{}

// fakeUoW records how handlers were wrapped.
type fakeUoW struct {
	executed  int
	retried   int
	committed int
	rolled    int
}

func (u *fakeUoW) Execute(ctx context.Context, fn func(context.Context) error) error {
	u.executed++
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		u.rolled++
		return err
	}
	u.committed++
	return nil
}

func (u *fakeUoW) ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error {
	u.retried = maxRetries
	return u.Execute(ctx, fn)
}

type PlaceThingCommand struct{ N int }

func TestCommandName(t *testing.T) {
	assert.Equal(t, "PlaceThingCommand", CommandName[PlaceThingCommand]())
	assert.Equal(t, "PlaceThingCommand", CommandName[*PlaceThingCommand]())
	assert.Equal(t, "int", CommandName[int]())
}

func TestTransactional_CommitsAndPassesTxContext(t *testing.T) {
	uow := &fakeUoW{}
	h := Transactional[PlaceThingCommand, int](uow, HandlerFunc[PlaceThingCommand, int](
		func(ctx context.Context, cmd PlaceThingCommand) (int, error) {
			assert.Equal(t, true, ctx.Value(txKey{}))
			return cmd.N * 2, nil
		}))

	got, err := h.Execute(context.Background(), PlaceThingCommand{N: 21})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, uow.committed)
	assert.Equal(t, 0, uow.retried)
}

func TestTransactional_RollsBackOnError(t *testing.T) {
	uow := &fakeUoW{}
	boom := domainerrors.InvalidState("", "nope")
	h := Transactional[PlaceThingCommand, *int](uow, HandlerFunc[PlaceThingCommand, *int](
		func(ctx context.Context, cmd PlaceThingCommand) (*int, error) {
			n := 1
			return &n, boom
		}))

	got, err := h.Execute(context.Background(), PlaceThingCommand{})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.Equal(t, 1, uow.rolled)
}

func TestTransactional_RetryTransient(t *testing.T) {
	uow := &fakeUoW{}
	h := Transactional[PlaceThingCommand, int](uow, HandlerFunc[PlaceThingCommand, int](
		func(ctx context.Context, cmd PlaceThingCommand) (int, error) { return 0, nil }),
		RetryTransient(3))

	_, err := h.Execute(context.Background(), PlaceThingCommand{})

	require.NoError(t, err)
	assert.Equal(t, 3, uow.retried)
}

func TestTraced_RecordsSpanAndError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	h := Traced[PlaceThingCommand, int](tp.Tracer("test"), HandlerFunc[PlaceThingCommand, int](
		func(ctx context.Context, cmd PlaceThingCommand) (int, error) {
			return 0, domainerrors.Forbidden("not yours")
		}))

	_, err := h.Execute(context.Background(), PlaceThingCommand{})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "PlaceThingCommand", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestLogged_LevelsByErrorKind(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{name: "ok", err: nil, level: ""},
		{name: "domain", err: domainerrors.NotFound("order", stringer("o-1")), level: "WARN"},
		{name: "validation", err: domainerrors.NewValidationError("amount", "bad"), level: "WARN"},
		{name: "infrastructure", err: errors.New("connection reset"), level: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

			h := Logged[PlaceThingCommand, int](logger, HandlerFunc[PlaceThingCommand, int](
				func(ctx context.Context, cmd PlaceThingCommand) (int, error) { return 0, tt.err }))
			_, _ = h.Execute(context.Background(), PlaceThingCommand{})

			if tt.level == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), "level="+tt.level)
			assert.Contains(t, buf.String(), "command=PlaceThingCommand")
		})
	}
}

type stringer string

func (s stringer) String() string { return string(s) }

type checkoutCommand struct {
	OrderID string              `json:"order_id" validate:"required,uuid"`
	Amount  string              `json:"amount" validate:"required,money_amount"`
	Method  string              `json:"payment_method" validate:"required,payment_method"`
	Status  string              `json:"status" validate:"omitempty,order_status"`
	Items   []checkoutItemInput `json:"items" validate:"required,min=1,dive"`
}

type checkoutItemInput struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func validCheckout() checkoutCommand {
	return checkoutCommand{
		OrderID: "4f3c2a8e-1b7d-4c55-9e1a-2d9b8f6a7c01",
		Amount:  "100.50",
		Method:  "BankTransfer",
		Status:  "paid",
		Items:   []checkoutItemInput{{Quantity: 2}},
	}
}

func TestValidated_PassesValidCommand(t *testing.T) {
	calls := 0
	h := Validated[checkoutCommand, int](HandlerFunc[checkoutCommand, int](
		func(ctx context.Context, cmd checkoutCommand) (int, error) {
			calls++
			return len(cmd.Items), nil
		}))

	got, err := h.Execute(context.Background(), validCheckout())

	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, calls)
}

func TestValidated_RejectsBeforeHandler(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*checkoutCommand)
		field  string
	}{
		{name: "missing order", mutate: func(c *checkoutCommand) { c.OrderID = "" }, field: "order_id"},
		{name: "bad uuid", mutate: func(c *checkoutCommand) { c.OrderID = "42" }, field: "order_id"},
		{name: "negative amount", mutate: func(c *checkoutCommand) { c.Amount = "-5" }, field: "amount"},
		{name: "amount with letters", mutate: func(c *checkoutCommand) { c.Amount = "10abc" }, field: "amount"},
		{name: "unknown method", mutate: func(c *checkoutCommand) { c.Method = "Cash" }, field: "payment_method"},
		{name: "unknown status", mutate: func(c *checkoutCommand) { c.Status = "Lost" }, field: "status"},
		{name: "no items", mutate: func(c *checkoutCommand) { c.Items = nil }, field: "items"},
		{name: "zero quantity", mutate: func(c *checkoutCommand) { c.Items[0].Quantity = 0 }, field: "items[0].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCheckout()
			tt.mutate(&cmd)

			called := false
			h := Validated[checkoutCommand, int](HandlerFunc[checkoutCommand, int](
				func(ctx context.Context, cmd checkoutCommand) (int, error) {
					called = true
					return 0, nil
				}))

			_, err := h.Execute(context.Background(), cmd)

			require.Error(t, err)
			assert.False(t, called)
			assert.True(t, domainerrors.IsValidationError(err))

			var verrs domainerrors.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidated_SkipsNonStructCommands(t *testing.T) {
	h := Validated[int, int](HandlerFunc[int, int](
		func(ctx context.Context, n int) (int, error) { return n + 1, nil }))

	got, err := h.Execute(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestCommand_ValidationSkipsTransaction(t *testing.T) {
	uow := &fakeUoW{}
	tp := sdktrace.NewTracerProvider()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	cmd := validCheckout()
	cmd.Method = ""
	h := Command[checkoutCommand, int](uow, logger, tp.Tracer("test"), HandlerFunc[checkoutCommand, int](
		func(ctx context.Context, cmd checkoutCommand) (int, error) { return 0, nil }))

	_, err := h.Execute(context.Background(), cmd)

	require.Error(t, err)
	assert.Equal(t, 0, uow.executed)
}
