// Package postgres - UserRepository implementation.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
	domainErrors "github.com/Haleralex/marketbridge/internal/domain/errors"
)

// Compile-time check: UserRepository implements ports.UserRepository
var _ ports.UserRepository = (*UserRepository)(nil)

// UserRepository реализует ports.UserRepository с использованием PostgreSQL.
//
// Transaction-aware: автоматически использует транзакцию из context если есть.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository создаёт новый UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Save сохраняет пользователя (UPSERT).
func (r *UserRepository) Save(ctx context.Context, user *entities.User) error {
	q := getQuerier(ctx, r.pool)

	query := `
		INSERT INTO users (id, email, role, balance, customer_id, factory_id, is_deleted, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			balance = EXCLUDED.balance,
			customer_id = EXCLUDED.customer_id,
			factory_id = EXCLUDED.factory_id,
			is_deleted = EXCLUDED.is_deleted,
			modified_at = EXCLUDED.modified_at
	`

	_, err := q.Exec(ctx, query,
		user.ID(),
		user.Email(),
		string(user.Role()),
		user.Balance().Decimal(),
		user.CustomerID(),
		user.FactoryID(),
		user.IsDeleted(),
		user.CreatedAt(),
		user.ModifiedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_unique") {
			return domainErrors.InvalidState("EMAIL_ALREADY_EXISTS",
				fmt.Sprintf("user with email %s already exists", user.Email()))
		}
		return wrapDBError("save user", err)
	}

	return nil
}

const userColumns = `id, email, role, balance, customer_id, factory_id, is_deleted, created_at, modified_at`

// scanUser сканирует строку в domain entity User.
func scanUser(row scanner) (*entities.User, error) {
	var (
		id                    uuid.UUID
		email, role           string
		balance               decimal.Decimal
		customerID, factoryID *uuid.UUID
		isDeleted             bool
		createdAt, modifiedAt time.Time
	)

	if err := row.Scan(&id, &email, &role, &balance, &customerID, &factoryID, &isDeleted, &createdAt, &modifiedAt); err != nil {
		return nil, err
	}

	money, err := moneyFromDB(balance)
	if err != nil {
		return nil, err
	}

	return entities.ReconstructUser(
		id, email, entities.UserRole(role), money,
		customerID, factoryID,
		entities.ReconstructAudit(isDeleted, createdAt, modifiedAt),
	), nil
}

// FindByID загружает пользователя по ID.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND NOT is_deleted`

	user, err := scanUser(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "user", id, "find user by id")
	}
	return user, nil
}

// FindByIDForUpdate загружает пользователя с блокировкой строки (SELECT ... FOR UPDATE).
// Должен вызываться внутри UnitOfWork.
func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND NOT is_deleted FOR UPDATE`

	user, err := scanUser(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "user", id, "lock user")
	}
	return user, nil
}
