package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

// Match is a product listed by a factory.
type Match struct {
	id        uuid.UUID
	factoryID uuid.UUID
	name      string
	price     valueobjects.Money
	quantity  int
	Audit
}

// NewMatch creates a product with initial stock.
func NewMatch(factoryID uuid.UUID, name string, price valueobjects.Money, quantity int) (*Match, error) {
	var verrs errors.ValidationErrors
	if factoryID == uuid.Nil {
		verrs.Add("factory_id", "factory is required")
	}
	if strings.TrimSpace(name) == "" {
		verrs.Add("name", "product name is required")
	}
	if quantity < 0 {
		verrs.Add("quantity", "stock cannot be negative")
	}
	if verrs.HasErrors() {
		return nil, verrs
	}

	return &Match{
		id:        uuid.New(),
		factoryID: factoryID,
		name:      strings.TrimSpace(name),
		price:     price,
		quantity:  quantity,
		Audit:     newAudit(time.Now().UTC()),
	}, nil
}

// ReconstructMatch rebuilds a Match from storage.
func ReconstructMatch(id, factoryID uuid.UUID, name string, price valueobjects.Money, quantity int, audit Audit) *Match {
	return &Match{
		id:        id,
		factoryID: factoryID,
		name:      name,
		price:     price,
		quantity:  quantity,
		Audit:     audit,
	}
}

func (m *Match) ID() uuid.UUID             { return m.id }
func (m *Match) FactoryID() uuid.UUID      { return m.factoryID }
func (m *Match) Name() string              { return m.name }
func (m *Match) Price() valueobjects.Money { return m.price }
func (m *Match) Quantity() int             { return m.quantity }

// Reserve decrements stock for an order line.
func (m *Match) Reserve(qty int) error {
	if qty <= 0 {
		return errors.NewValidationError("quantity", "quantity must be positive")
	}
	if m.quantity < qty {
		return errors.InvalidState(errors.CodeOutOfStock,
			fmt.Sprintf("product %s has %d in stock, requested %d", m.id, m.quantity, qty))
	}
	m.quantity -= qty
	m.touch()
	return nil
}

// Restock returns previously reserved units.
func (m *Match) Restock(qty int) {
	if qty <= 0 {
		return
	}
	m.quantity += qty
	m.touch()
}
