// Package postgres - репозитории профилей покупателей, продавцов и товаров.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
)

var (
	_ ports.CustomerRepository = (*CustomerRepository)(nil)
	_ ports.FactoryRepository  = (*FactoryRepository)(nil)
	_ ports.MatchRepository    = (*MatchRepository)(nil)
)

// ============================================
// Customers
// ============================================

// CustomerRepository реализует ports.CustomerRepository.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository создаёт новый CustomerRepository.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

const customerColumns = `id, user_id, full_name, phone, address, email, is_deleted, created_at, modified_at`

func (r *CustomerRepository) Save(ctx context.Context, c *entities.Customer) error {
	q := getQuerier(ctx, r.pool)

	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			email = EXCLUDED.email,
			is_deleted = EXCLUDED.is_deleted,
			modified_at = EXCLUDED.modified_at
	`

	_, err := q.Exec(ctx, query,
		c.ID(), c.UserID(), c.FullName(), c.Phone(), c.Address(), c.Email(),
		c.IsDeleted(), c.CreatedAt(), c.ModifiedAt(),
	)
	if err != nil {
		return wrapDBError("save customer", err)
	}
	return nil
}

func scanCustomer(row scanner) (*entities.Customer, error) {
	var (
		id, userID                      uuid.UUID
		fullName, phone, address, email string
		isDeleted                       bool
		createdAt, modifiedAt           time.Time
	)
	if err := row.Scan(&id, &userID, &fullName, &phone, &address, &email, &isDeleted, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}
	return entities.ReconstructCustomer(id, userID, fullName, phone, address, email,
		entities.ReconstructAudit(isDeleted, createdAt, modifiedAt)), nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Customer, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND NOT is_deleted`

	c, err := scanCustomer(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "customer", id, "find customer by id")
	}
	return c, nil
}

func (r *CustomerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*entities.Customer, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = $1 AND NOT is_deleted`

	c, err := scanCustomer(q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFoundOr(err, "customer", userID, "find customer by user")
	}
	return c, nil
}

// ============================================
// Factories
// ============================================

// FactoryRepository реализует ports.FactoryRepository.
type FactoryRepository struct {
	pool *pgxpool.Pool
}

// NewFactoryRepository создаёт новый FactoryRepository.
func NewFactoryRepository(pool *pgxpool.Pool) *FactoryRepository {
	return &FactoryRepository{pool: pool}
}

func (r *FactoryRepository) Save(ctx context.Context, f *entities.Factory) error {
	q := getQuerier(ctx, r.pool)

	query := `
		INSERT INTO factories (id, owner_user_id, name, is_deleted, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_deleted = EXCLUDED.is_deleted,
			modified_at = EXCLUDED.modified_at
	`

	_, err := q.Exec(ctx, query, f.ID(), f.OwnerUserID(), f.Name(), f.IsDeleted(), f.CreatedAt(), f.ModifiedAt())
	if err != nil {
		return wrapDBError("save factory", err)
	}
	return nil
}

func (r *FactoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Factory, error) {
	q := getQuerier(ctx, r.pool)

	query := `
		SELECT id, owner_user_id, name, is_deleted, created_at, modified_at
		FROM factories WHERE id = $1 AND NOT is_deleted
	`

	var (
		factoryID, ownerID    uuid.UUID
		name                  string
		isDeleted             bool
		createdAt, modifiedAt time.Time
	)
	err := q.QueryRow(ctx, query, id).Scan(&factoryID, &ownerID, &name, &isDeleted, &createdAt, &modifiedAt)
	if err != nil {
		return nil, notFoundOr(err, "factory", id, "find factory by id")
	}

	return entities.ReconstructFactory(factoryID, ownerID, name,
		entities.ReconstructAudit(isDeleted, createdAt, modifiedAt)), nil
}

// ============================================
// Matches (товары)
// ============================================

// MatchRepository реализует ports.MatchRepository.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository создаёт новый MatchRepository.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

const matchColumns = `id, factory_id, name, price, quantity, is_deleted, created_at, modified_at`

func (r *MatchRepository) Save(ctx context.Context, m *entities.Match) error {
	q := getQuerier(ctx, r.pool)

	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			is_deleted = EXCLUDED.is_deleted,
			modified_at = EXCLUDED.modified_at
	`

	_, err := q.Exec(ctx, query,
		m.ID(), m.FactoryID(), m.Name(), m.Price().Decimal(), m.Quantity(),
		m.IsDeleted(), m.CreatedAt(), m.ModifiedAt(),
	)
	if err != nil {
		return wrapDBError("save product", err)
	}
	return nil
}

func scanMatch(row scanner) (*entities.Match, error) {
	var (
		id, factoryID         uuid.UUID
		name                  string
		price                 decimal.Decimal
		quantity              int
		isDeleted             bool
		createdAt, modifiedAt time.Time
	)
	if err := row.Scan(&id, &factoryID, &name, &price, &quantity, &isDeleted, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}

	money, err := moneyFromDB(price)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructMatch(id, factoryID, name, money, quantity,
		entities.ReconstructAudit(isDeleted, createdAt, modifiedAt)), nil
}

func (r *MatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Match, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 AND NOT is_deleted`

	m, err := scanMatch(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "product", id, "find product by id")
	}
	return m, nil
}

// FindByIDForUpdate блокирует строку товара на время резерва/возврата остатка.
func (r *MatchRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Match, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 AND NOT is_deleted FOR UPDATE`

	m, err := scanMatch(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "product", id, "lock product")
	}
	return m, nil
}

// SoftDelete убирает товар из каталога.
func (r *MatchRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return softDelete(ctx, getQuerier(ctx, r.pool), "matches", id, "product")
}
