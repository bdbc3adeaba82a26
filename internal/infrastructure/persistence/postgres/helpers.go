// Package postgres - вспомогательные функции для работы с PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domainErrors "github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

// txKey - ключ для хранения транзакции в context.
type txKey struct{}

// injectTx добавляет транзакцию в context.
// Используется UnitOfWork для передачи транзакции в repositories.
func injectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// extractTx извлекает транзакцию из context.
// Возвращает nil если транзакции нет.
func extractTx(ctx context.Context) pgx.Tx {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return nil
	}
	return tx
}

// hasTx проверяет наличие транзакции в context.
func hasTx(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

// querier - абстракция для выполнения запросов.
// Позволяет использовать как pool, так и transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getQuerier возвращает транзакцию из context или pool.
func getQuerier(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return pool
}

// scanner - общий интерфейс pgx.Row и pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// PostgreSQL error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isPgError проверяет, является ли ошибка PostgreSQL ошибкой с определённым кодом.
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code
}

// isUniqueViolation проверяет нарушение UNIQUE constraint.
// constraintName - опциональное имя constraint для проверки.
func isUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	if constraintName != "" {
		return strings.Contains(pgErr.ConstraintName, constraintName)
	}
	return true
}

// isSerializationFailure проверяет ошибку сериализации (для retry).
func isSerializationFailure(err error) bool {
	return isPgError(err, pgSerializationFailure) || isPgError(err, pgDeadlockDetected)
}

// isRetryableError проверяет, можно ли повторить операцию.
// Retryable: deadlock, serialization failure, connection errors.
func isRetryableError(err error) bool {
	if isSerializationFailure(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 - Connection Exception
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}

// errorType классифицирует ошибку для метрик.
func errorType(err error) string {
	switch {
	case isUniqueViolation(err, ""):
		return "unique_violation"
	case isPgError(err, pgForeignKeyViolation):
		return "foreign_key_violation"
	case isPgError(err, pgCheckViolation):
		return "check_violation"
	case isSerializationFailure(err):
		return "serialization_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

// wrapDBError записывает метрику и оборачивает ошибку операции.
func wrapDBError(operation string, err error) error {
	metrics.RecordDBError(operation, errorType(err))
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// notFoundOr превращает pgx.ErrNoRows в NotFound, остальное - в ошибку операции.
func notFoundOr(err error, entity string, id fmt.Stringer, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domainErrors.NotFound(entity, id)
	}
	return wrapDBError(operation, err)
}

// softDelete выставляет is_deleted для строки таблицы. Строки не удаляются физически.
func softDelete(ctx context.Context, q querier, table string, id fmt.Stringer, entity string) error {
	query := `UPDATE ` + table + ` SET is_deleted = TRUE, modified_at = $2 WHERE id = $1 AND NOT is_deleted`

	result, err := q.Exec(ctx, query, id.String(), time.Now().UTC())
	if err != nil {
		return wrapDBError("soft delete "+entity, err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.NotFound(entity, id)
	}
	return nil
}

// moneyFromDB превращает NUMERIC в Money. Отрицательные суммы в таблицах
// запрещены CHECK constraint'ами.
func moneyFromDB(d decimal.Decimal) (valueobjects.Money, error) {
	m, err := valueobjects.NewMoneyFromDecimal(d)
	if err != nil {
		return valueobjects.Money{}, fmt.Errorf("invalid stored amount %s: %w", d, err)
	}
	return m, nil
}

// signedMoneyFromDB допускает отрицательное значение (after_balance Pending записи).
func signedMoneyFromDB(d decimal.Decimal) valueobjects.Money {
	if d.IsNegative() {
		abs, _ := valueobjects.NewMoneyFromDecimal(d.Neg())
		return valueobjects.Zero().Subtract(abs)
	}
	m, _ := valueobjects.NewMoneyFromDecimal(d)
	return m
}
