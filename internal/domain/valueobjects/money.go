// Package valueobjects - Money is the single monetary type used for prices,
// order totals, ledger amounts and wallet balances.
//
// SOLID Principles:
// - SRP: Money knows how to be Money (arithmetic, comparison, rounding)
// - OCP: Can extend with new operations without modifying existing code
package valueobjects

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for settlement comparisons.
const Scale = 2

// Money represents a monetary amount in the marketplace's single settlement currency.
// Backed by shopspring/decimal, so 0.1 + 0.2 == 0.3.
//
// Value Object Pattern:
// - Immutable: All operations return new Money instances
// - Self-validating: constructors reject negative and malformed input
//
// Arithmetic results (Subtract) may go negative; callers that must keep
// non-negative balances check IsNegative before persisting.
type Money struct {
	amount decimal.Decimal
}

// Common domain errors for Money operations
var (
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrInvalidAmount  = errors.New("invalid amount format")
)

// NewMoney creates Money from a decimal string (e.g., "100.50").
func NewMoney(amountStr string) (Money, error) {
	d, err := decimal.NewFromString(amountStr)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amountStr)
	}
	return NewMoneyFromDecimal(d)
}

// NewMoneyFromDecimal wraps a decimal, rejecting negatives.
func NewMoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: d}, nil
}

// MustMoney is NewMoney that panics on error. Intended for constants and tests.
func MustMoney(amountStr string) Money {
	m, err := NewMoney(amountStr)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount.
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.amount
}

// String returns the amount with two fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(Scale)
}

// Round returns the amount rounded half away from zero to two fractional digits.
func (m Money) Round() Money {
	return Money{amount: m.amount.Round(Scale)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns m - other. The result may be negative.
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MultiplyInt returns m * n. Used for price x quantity.
func (m Money) MultiplyInt(n int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(n)))}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// GreaterThan returns m > other.
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// GreaterThanOrEqual returns m >= other.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

// LessThan returns m < other.
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// Equals compares numeric value, ignoring representation ("1.0" equals "1.00").
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// EqualsRounded compares both amounts after rounding to two fractional digits.
func (m Money) EqualsRounded(other Money) bool {
	return m.amount.Round(Scale).Equal(other.amount.Round(Scale))
}

// Sum adds up a list of amounts.
func Sum(amounts ...Money) Money {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
