// Package postgres - UnitOfWork implementation для PostgreSQL.
//
// Usage:
//
//	err := uow.Execute(ctx, func(txCtx context.Context) error {
//	    // Все операции с репозиториями используют txCtx
//	    order, _ := orderRepo.FindByIDForUpdate(txCtx, orderID)
//	    return orderRepo.Save(txCtx, order) // COMMIT
//	    // return err // ROLLBACK
//	})
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/marketbridge/internal/application/ports"
)

// Compile-time check
var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// retryBackoff - пауза перед первой повторной попыткой, удваивается.
const retryBackoff = 20 * time.Millisecond

// UnitOfWork реализует ports.UnitOfWork с PostgreSQL транзакциями.
//
// Transaction isolation: по умолчанию READ COMMITTED. Денежные инварианты
// держатся на SELECT ... FOR UPDATE, а не на уровне изоляции.
type UnitOfWork struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewUnitOfWork создаёт новый UnitOfWork.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return NewUnitOfWorkWithIsolation(pool, pgx.ReadCommitted)
}

// NewUnitOfWorkWithIsolation создаёт UnitOfWork с указанным уровнем изоляции.
func NewUnitOfWorkWithIsolation(pool *pgxpool.Pool, isolation pgx.TxIsoLevel) *UnitOfWork {
	return &UnitOfWork{
		pool: pool,
		opts: pgx.TxOptions{IsoLevel: isolation},
	}
}

// Execute выполняет функцию внутри транзакции.
//
// - fn вернула nil: COMMIT
// - fn вернула error: ROLLBACK
// - panic: ROLLBACK + re-panic
//
// Вложенный вызов переиспользует транзакцию из context.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) error {
	if hasTx(ctx) {
		return fn(ctx)
	}

	tx, err := u.pool.BeginTx(ctx, u.opts)
	if err != nil {
		return wrapDBError("begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(injectTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapDBError("commit transaction", err)
	}

	return nil
}

// ExecuteWithRetry повторяет транзакцию при deadlock, serialization failure
// и обрыве соединения. maxRetries: количество повторов (0 = без retry).
func (u *UnitOfWork) ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error {
	var lastErr error
	backoff := retryBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := u.Execute(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
