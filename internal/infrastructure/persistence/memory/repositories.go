package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	domainerrors "github.com/Haleralex/marketbridge/internal/domain/errors"
)

// Compile-time checks
var (
	_ ports.UserRepository        = (*UserRepository)(nil)
	_ ports.CustomerRepository    = (*CustomerRepository)(nil)
	_ ports.FactoryRepository     = (*FactoryRepository)(nil)
	_ ports.MatchRepository       = (*MatchRepository)(nil)
	_ ports.OrderRepository       = (*OrderRepository)(nil)
	_ ports.TransactionRepository = (*TransactionRepository)(nil)
)

// ============================================
// Users
// ============================================

type UserRepository struct{ store *Store }

func (r *UserRepository) Save(ctx context.Context, user *entities.User) error {
	r.store.write(func(st *state) { st.users[user.ID()] = *user })
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var (
		u  entities.User
		ok bool
	)
	r.store.read(func(st *state) { u, ok = st.users[id] })
	if !ok || u.IsDeleted() {
		return nil, domainerrors.NotFound("user", id)
	}
	return &u, nil
}

// FindByIDForUpdate - транзакции уже сериализованы UnitOfWork.
func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	return r.FindByID(ctx, id)
}

// ============================================
// Customers
// ============================================

type CustomerRepository struct{ store *Store }

func (r *CustomerRepository) Save(ctx context.Context, customer *entities.Customer) error {
	r.store.write(func(st *state) { st.customers[customer.ID()] = *customer })
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Customer, error) {
	var (
		c  entities.Customer
		ok bool
	)
	r.store.read(func(st *state) { c, ok = st.customers[id] })
	if !ok || c.IsDeleted() {
		return nil, domainerrors.NotFound("customer", id)
	}
	return &c, nil
}

func (r *CustomerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.Customer, error) {
	var found *entities.Customer
	r.store.read(func(st *state) {
		for _, c := range st.customers {
			if c.UserID() == userID && !c.IsDeleted() {
				c := c
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, domainerrors.NotFound("customer for user", userID)
	}
	return found, nil
}

// ============================================
// Factories
// ============================================

type FactoryRepository struct{ store *Store }

func (r *FactoryRepository) Save(ctx context.Context, factory *entities.Factory) error {
	r.store.write(func(st *state) { st.factories[factory.ID()] = *factory })
	return nil
}

func (r *FactoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Factory, error) {
	var (
		f  entities.Factory
		ok bool
	)
	r.store.read(func(st *state) { f, ok = st.factories[id] })
	if !ok || f.IsDeleted() {
		return nil, domainerrors.NotFound("factory", id)
	}
	return &f, nil
}

// ============================================
// Matches
// ============================================

type MatchRepository struct{ store *Store }

func (r *MatchRepository) Save(ctx context.Context, match *entities.Match) error {
	r.store.write(func(st *state) { st.matches[match.ID()] = *match })
	return nil
}

func (r *MatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Match, error) {
	var (
		m  entities.Match
		ok bool
	)
	r.store.read(func(st *state) { m, ok = st.matches[id] })
	if !ok || m.IsDeleted() {
		return nil, domainerrors.NotFound("product", id)
	}
	return &m, nil
}

func (r *MatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Match, error) {
	return r.FindByID(ctx, id)
}

// SoftDelete помечает товар удалённым (используется тестами каталога).
func (r *MatchRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	var err error
	r.store.write(func(st *state) {
		m, ok := st.matches[id]
		if !ok || m.IsDeleted() {
			err = domainerrors.NotFound("product", id)
			return
		}
		m.MarkDeleted(time.Now().UTC())
		st.matches[id] = m
	})
	return err
}

// ============================================
// Orders
// ============================================

type OrderRepository struct{ store *Store }

func (r *OrderRepository) Save(ctx context.Context, order *entities.Order) error {
	r.store.write(func(st *state) { st.orders[order.ID()] = *order })
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	var (
		o  entities.Order
		ok bool
	)
	r.store.read(func(st *state) { o, ok = st.orders[id] })
	if !ok || o.IsDeleted() {
		return nil, domainerrors.NotFound("order", id)
	}
	return &o, nil
}

func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, offset, limit int) ([]*entities.Order, int, error) {
	var list []*entities.Order
	r.store.read(func(st *state) {
		for _, o := range st.orders {
			if o.CustomerID() == customerID && !o.IsDeleted() {
				o := o
				list = append(list, &o)
			}
		}
	})

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt().After(list[j].CreatedAt()) })

	total := len(list)
	if offset >= total {
		return []*entities.Order{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return list[offset:end], total, nil
}

func (r *OrderRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	var err error
	r.store.write(func(st *state) {
		o, ok := st.orders[id]
		if !ok || o.IsDeleted() {
			err = domainerrors.NotFound("order", id)
			return
		}
		o.MarkDeleted(time.Now().UTC())
		st.orders[id] = o
	})
	return err
}

// ============================================
// Transactions
// ============================================

type TransactionRepository struct{ store *Store }

func (r *TransactionRepository) Save(ctx context.Context, tx *entities.Transaction) error {
	r.store.write(func(st *state) {
		if _, exists := st.transactions[tx.ID()]; !exists {
			st.txOrder = append(st.txOrder, tx.ID())
		}
		st.transactions[tx.ID()] = *tx
	})
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	var (
		t  entities.Transaction
		ok bool
	)
	r.store.read(func(st *state) { t, ok = st.transactions[id] })
	if !ok || t.IsDeleted() {
		return nil, domainerrors.NotFound("transaction", id)
	}
	return &t, nil
}

func (r *TransactionRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Transaction, error) {
	return r.filter(func(t *entities.Transaction) bool {
		return t.SenderID() == userID || t.ReceiverID() == userID
	}), nil
}

func (r *TransactionRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*entities.Transaction, error) {
	return r.filter(func(t *entities.Transaction) bool {
		return t.OrderID() != nil && *t.OrderID() == orderID
	}), nil
}

func (r *TransactionRepository) filter(keep func(*entities.Transaction) bool) []*entities.Transaction {
	result := make([]*entities.Transaction, 0)
	r.store.read(func(st *state) {
		for _, id := range st.txOrder {
			t := st.transactions[id]
			if !t.IsDeleted() && keep(&t) {
				result = append(result, &t)
			}
		}
	})
	return result
}
