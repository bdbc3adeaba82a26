// Package entities contains domain entities - objects with identity and lifecycle.
//
// Entities hold their state in private fields, expose getters, and change state
// only through methods that enforce business rules. Storage adapters rebuild
// them with the Reconstruct* functions, which skip validation.
package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

// UserRole decides which single persona a user acts as.
type UserRole string

const (
	RoleCustomer UserRole = "Customer"
	RoleFactory  UserRole = "Factory"
	RoleAdmin    UserRole = "Admin"
)

// IsValid checks if the role is known.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleCustomer, RoleFactory, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the wallet holder. Its balance is changed only by the ledger
// (Transaction Service), never directly by order workflows.
type User struct {
	id         uuid.UUID
	email      string
	role       UserRole
	balance    valueobjects.Money
	customerID *uuid.UUID
	factoryID  *uuid.UUID
	Audit
}

// NewUser creates a user with a zero balance.
func NewUser(email string, role UserRole) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("email", "invalid email address")
	}
	if !role.IsValid() {
		return nil, errors.NewValidationError("role", "unknown role")
	}

	return &User{
		id:      uuid.New(),
		email:   email,
		role:    role,
		balance: valueobjects.Zero(),
		Audit:   newAudit(time.Now().UTC()),
	}, nil
}

// ReconstructUser rebuilds a User from storage.
func ReconstructUser(
	id uuid.UUID,
	email string,
	role UserRole,
	balance valueobjects.Money,
	customerID, factoryID *uuid.UUID,
	audit Audit,
) *User {
	return &User{
		id:         id,
		email:      email,
		role:       role,
		balance:    balance,
		customerID: customerID,
		factoryID:  factoryID,
		Audit:      audit,
	}
}

func (u *User) ID() uuid.UUID               { return u.id }
func (u *User) Email() string               { return u.email }
func (u *User) Role() UserRole              { return u.role }
func (u *User) Balance() valueobjects.Money { return u.balance }
func (u *User) CustomerID() *uuid.UUID      { return u.customerID }
func (u *User) FactoryID() *uuid.UUID       { return u.factoryID }
func (u *User) IsAdmin() bool               { return u.role == RoleAdmin }

// LinkCustomer attaches a customer profile.
func (u *User) LinkCustomer(customerID uuid.UUID) {
	u.customerID = &customerID
	u.touch()
}

// LinkFactory attaches a seller profile.
func (u *User) LinkFactory(factoryID uuid.UUID) {
	u.factoryID = &factoryID
	u.touch()
}

// HasSufficientBalance reports balance >= amount.
func (u *User) HasSufficientBalance(amount valueobjects.Money) bool {
	return u.balance.GreaterThanOrEqual(amount)
}

// Debit withdraws amount from the balance.
func (u *User) Debit(amount valueobjects.Money) error {
	if !amount.IsPositive() {
		return errors.NewValidationError("amount", "amount must be positive")
	}
	if !u.HasSufficientBalance(amount) {
		return errors.InsufficientFunds(u.id, amount, u.balance)
	}
	u.balance = u.balance.Subtract(amount)
	u.touch()
	return nil
}

// Credit deposits amount into the balance.
func (u *User) Credit(amount valueobjects.Money) error {
	if !amount.IsPositive() {
		return errors.NewValidationError("amount", "amount must be positive")
	}
	u.balance = u.balance.Add(amount)
	u.touch()
	return nil
}
