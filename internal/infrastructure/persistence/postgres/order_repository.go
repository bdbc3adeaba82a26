// Package postgres - OrderRepository implementation.
//
// Заказ - aggregate root: строка orders и её позиции order_details
// читаются вместе. Позиции вставляются один раз, при первом Save.
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/entities"
)

var _ ports.OrderRepository = (*OrderRepository)(nil)

// OrderRepository реализует ports.OrderRepository.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository создаёт новый OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, customer_id, shipping_address, shipping_phone, shipping_email,
	total_price, payment_method, status, note, is_deleted, created_at, modified_at`

// Save сохраняет заказ (UPSERT). Позиции пишутся только при вставке новой строки,
// в той же транзакции.
func (r *OrderRepository) Save(ctx context.Context, order *entities.Order) error {
	if !hasTx(ctx) {
		return NewUnitOfWork(r.pool).Execute(ctx, func(txCtx context.Context) error {
			return r.Save(txCtx, order)
		})
	}
	tx := extractTx(ctx)

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			note = EXCLUDED.note,
			is_deleted = EXCLUDED.is_deleted,
			modified_at = EXCLUDED.modified_at
		RETURNING (xmax = 0) AS inserted
	`

	shipping := order.Shipping()
	var inserted bool
	err := tx.QueryRow(ctx, query,
		order.ID(),
		order.CustomerID(),
		shipping.Address,
		shipping.Phone,
		shipping.Email,
		order.TotalPrice().Decimal(),
		string(order.PaymentMethod()),
		int(order.Status()),
		order.Note(),
		order.IsDeleted(),
		order.CreatedAt(),
		order.ModifiedAt(),
	).Scan(&inserted)
	if err != nil {
		return wrapDBError("save order", err)
	}

	if !inserted {
		return nil
	}

	batch := &pgx.Batch{}
	for i, d := range order.Details() {
		batch.Queue(`
			INSERT INTO order_details (id, order_id, match_id, factory_id, quantity, price, discount, total_price, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, d.ID(), d.OrderID(), d.MatchID(), d.FactoryID(), d.Quantity(),
			d.Price().Decimal(), d.Discount().Decimal(), d.TotalPrice().Decimal(), i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBError("save order details", err)
	}
	return nil
}

// FindByID загружает заказ с позициями.
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	return r.find(ctx, id, "", "find order by id")
}

// FindByIDForUpdate загружает заказ и блокирует его строку.
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	return r.find(ctx, id, " FOR UPDATE", "lock order")
}

func (r *OrderRepository) find(ctx context.Context, id uuid.UUID, lock, operation string) (*entities.Order, error) {
	q := getQuerier(ctx, r.pool)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND NOT is_deleted` + lock

	header, err := scanOrderHeader(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "order", id, operation)
	}

	details, err := r.loadDetails(ctx, q, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	return header.build(details[id]), nil
}

// ListByCustomer возвращает страницу заказов покупателя (новые первыми) и общее количество.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, offset, limit int) ([]*entities.Order, int, error) {
	q := getQuerier(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND NOT is_deleted`, customerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, wrapDBError("count orders", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`

	rows, err := q.Query(ctx, query, customerID, offset, limit)
	if err != nil {
		return nil, 0, wrapDBError("list orders", err)
	}

	var headers []orderHeader
	for rows.Next() {
		h, err := scanOrderHeader(rows)
		if err != nil {
			rows.Close()
			return nil, 0, wrapDBError("scan order row", err)
		}
		headers = append(headers, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBError("iterate order rows", err)
	}

	ids := make([]uuid.UUID, 0, len(headers))
	for _, h := range headers {
		ids = append(ids, h.id)
	}
	details, err := r.loadDetails(ctx, q, ids)
	if err != nil {
		return nil, 0, err
	}

	orders := make([]*entities.Order, 0, len(headers))
	for _, h := range headers {
		orders = append(orders, h.build(details[h.id]))
	}
	return orders, total, nil
}

// SoftDelete помечает заказ удалённым.
func (r *OrderRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return softDelete(ctx, getQuerier(ctx, r.pool), "orders", id, "order")
}

// ============================================
// Scanning
// ============================================

type orderHeader struct {
	id, customerID        uuid.UUID
	shipping              entities.ShippingInfo
	totalPrice            decimal.Decimal
	paymentMethod         string
	status                int
	note                  string
	isDeleted             bool
	createdAt, modifiedAt time.Time
}

func scanOrderHeader(row scanner) (orderHeader, error) {
	var h orderHeader
	err := row.Scan(
		&h.id,
		&h.customerID,
		&h.shipping.Address,
		&h.shipping.Phone,
		&h.shipping.Email,
		&h.totalPrice,
		&h.paymentMethod,
		&h.status,
		&h.note,
		&h.isDeleted,
		&h.createdAt,
		&h.modifiedAt,
	)
	return h, err
}

func (h orderHeader) build(details []entities.OrderDetail) *entities.Order {
	return entities.ReconstructOrder(
		h.id, h.customerID, h.shipping,
		signedMoneyFromDB(h.totalPrice),
		entities.PaymentMethod(h.paymentMethod),
		entities.OrderStatus(h.status),
		h.note,
		details,
		entities.ReconstructAudit(h.isDeleted, h.createdAt, h.modifiedAt),
	)
}

func (r *OrderRepository) loadDetails(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]entities.OrderDetail, error) {
	result := make(map[uuid.UUID][]entities.OrderDetail, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, order_id, match_id, factory_id, quantity, price, discount, total_price
		FROM order_details
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`

	rows, err := q.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, wrapDBError("load order details", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, orderID, matchID, factoryID uuid.UUID
			quantity                        int
			price, discount, total          decimal.Decimal
		)
		if err := rows.Scan(&id, &orderID, &matchID, &factoryID, &quantity, &price, &discount, &total); err != nil {
			return nil, wrapDBError("scan order detail", err)
		}
		result[orderID] = append(result[orderID], entities.ReconstructOrderDetail(
			id, orderID, matchID, factoryID, quantity,
			signedMoneyFromDB(price), signedMoneyFromDB(discount), signedMoneyFromDB(total),
		))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate order details", err)
	}
	return result, nil
}
