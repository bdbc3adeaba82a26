package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type amount string

func (a amount) String() string { return string(a) }

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		contains []string
	}{
		{
			name:     "With underlying error",
			err:      NewDomainError("TEST_ERROR", "Test message", errors.New("underlying error")),
			contains: []string{"TEST_ERROR", "Test message", "underlying error"},
		},
		{
			name:     "Without underlying error",
			err:      NewDomainError("TEST_ERROR", "Test message", nil),
			contains: []string{"[TEST_ERROR] Test message"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestConstructors_WrapCategory(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name     string
		err      error
		category error
		code     string
		check    func(error) bool
	}{
		{"NotFound", NotFound("order", id), ErrNotFound, CodeNotFound, IsNotFound},
		{"Forbidden", Forbidden("not your order"), ErrForbidden, CodeForbidden, IsForbidden},
		{"InvalidState default code", InvalidState("", "bad"), ErrInvalidState, CodeInvalidState, IsInvalidState},
		{"InvalidState custom code", InvalidState(CodeOutOfStock, "empty"), ErrInvalidState, CodeOutOfStock, IsInvalidState},
		{"InsufficientFunds", InsufficientFunds(id, amount("10"), amount("5")), ErrInsufficientFunds, CodeInsufficientFunds, IsInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.category)
			assert.True(t, tt.check(tt.err))
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.True(t, IsDomainError(tt.err))
		})
	}
}

func TestNotFound_NamesEntityAndID(t *testing.T) {
	id := uuid.New()
	err := NotFound("product", id)

	assert.Contains(t, err.Message, "product")
	assert.Contains(t, err.Message, id.String())
}

func TestCodeOf_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("creating order: %w", Forbidden("nope"))

	assert.Equal(t, CodeForbidden, CodeOf(err))
	assert.True(t, IsForbidden(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "validation failed", errs.Error())

	errs.Add("amount", "must be positive")
	errs.Add("receiver_id", "required")

	assert.True(t, errs.HasErrors())
	assert.Equal(t, "validation failed: 2 error(s)", errs.Error())
	assert.True(t, IsValidationError(errs))
	assert.True(t, IsValidationError(fmt.Errorf("wrap: %w", NewValidationError("x", "y"))))
	assert.False(t, IsValidationError(errors.New("plain")))
}
