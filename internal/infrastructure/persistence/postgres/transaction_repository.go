// Package postgres - TransactionRepository implementation (ledger).
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

// Compile-time check
var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository реализует ports.TransactionRepository.
//
// Записи ledger'а не удаляются. После вставки меняются только status,
// amount и after_balance у Pending записи при сверке платежа.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository создаёт новый TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, sender_id, receiver_id, current_balance, amount, after_balance,
	description, transaction_type, status, order_id, is_deleted, created_at, modified_at`

// Save вставляет запись или обновляет Pending запись.
func (r *TransactionRepository) Save(ctx context.Context, tx *entities.Transaction) error {
	q := getQuerier(ctx, r.pool)

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			after_balance = EXCLUDED.after_balance,
			status = EXCLUDED.status,
			modified_at = EXCLUDED.modified_at
		WHERE transactions.status = 'Pending'
	`

	_, err := q.Exec(ctx, query,
		tx.ID(),
		tx.SenderID(),
		tx.ReceiverID(),
		tx.CurrentBalance().Decimal(),
		tx.Amount().Decimal(),
		tx.AfterBalance().Decimal(),
		tx.Description(),
		string(tx.Type()),
		string(tx.Status()),
		tx.OrderID(),
		tx.IsDeleted(),
		tx.CreatedAt(),
		tx.ModifiedAt(),
	)
	if err != nil {
		return wrapDBError("save transaction", err)
	}
	return nil
}

// scanTransaction сканирует строку в domain entity Transaction.
func scanTransaction(row scanner) (*entities.Transaction, error) {
	var (
		id, senderID, receiverID      uuid.UUID
		currentBalance, amount, after decimal.Decimal
		description, txType, status   string
		orderID                       *uuid.UUID
		isDeleted                     bool
		createdAt, modifiedAt         time.Time
	)

	err := row.Scan(
		&id, &senderID, &receiverID,
		&currentBalance, &amount, &after,
		&description, &txType, &status,
		&orderID, &isDeleted, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	money, err := moneyFromDB(amount)
	if err != nil {
		return nil, err
	}

	return entities.ReconstructTransaction(
		id, senderID, receiverID,
		signedMoneyFromDB(currentBalance), money, signedMoneyFromDB(after),
		description,
		entities.TransactionType(txType),
		entities.TransactionStatus(status),
		orderID,
		entities.ReconstructAudit(isDeleted, createdAt, modifiedAt),
	), nil
}

// FindByID загружает запись по ID.
func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND NOT is_deleted`

	tx, err := scanTransaction(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "transaction", id, "find transaction by id")
	}
	return tx, nil
}

// FindByUser возвращает записи, где пользователь отправитель или получатель (новые первыми).
func (r *TransactionRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE (sender_id = $1 OR receiver_id = $1) AND NOT is_deleted
		ORDER BY created_at DESC
	`
	return r.list(ctx, "find transactions by user", query, userID)
}

// FindByOrder возвращает записи заказа в порядке создания.
func (r *TransactionRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*entities.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE order_id = $1 AND NOT is_deleted
		ORDER BY created_at ASC
	`
	return r.list(ctx, "find transactions by order", query, orderID)
}

func (r *TransactionRepository) list(ctx context.Context, operation, query string, args ...any) ([]*entities.Transaction, error) {
	q := getQuerier(ctx, r.pool)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(operation, err)
	}
	defer rows.Close()

	txs := make([]*entities.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, wrapDBError("scan transaction row", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(operation, err)
	}
	return txs, nil
}
