package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
)

// Customer is the buyer profile attached to a user account.
type Customer struct {
	id       uuid.UUID
	userID   uuid.UUID
	fullName string
	phone    string
	address  string
	email    string
	Audit
}

// NewCustomer creates a buyer profile owned by userID.
func NewCustomer(userID uuid.UUID, fullName, phone, address, email string) (*Customer, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, errors.NewValidationError("full_name", "full name is required")
	}
	if userID == uuid.Nil {
		return nil, errors.NewValidationError("user_id", "owner user is required")
	}

	return &Customer{
		id:       uuid.New(),
		userID:   userID,
		fullName: fullName,
		phone:    phone,
		address:  address,
		email:    email,
		Audit:    newAudit(time.Now().UTC()),
	}, nil
}

// ReconstructCustomer rebuilds a Customer from storage.
func ReconstructCustomer(id, userID uuid.UUID, fullName, phone, address, email string, audit Audit) *Customer {
	return &Customer{
		id:       id,
		userID:   userID,
		fullName: fullName,
		phone:    phone,
		address:  address,
		email:    email,
		Audit:    audit,
	}
}

func (c *Customer) ID() uuid.UUID     { return c.id }
func (c *Customer) UserID() uuid.UUID { return c.userID }
func (c *Customer) FullName() string  { return c.fullName }
func (c *Customer) Phone() string     { return c.phone }
func (c *Customer) Address() string   { return c.address }
func (c *Customer) Email() string     { return c.email }
