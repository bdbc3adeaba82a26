// Package postgres - OutboxRepository для Transactional Outbox Pattern.
//
// 1. В той же транзакции, что и бизнес-операция, событие пишется в outbox
// 2. Relay (cmd/outbox-relay) читает PENDING записи и публикует в NATS
// 3. После публикации запись помечается PUBLISHED
//
// Доставка at-least-once: consumers должны быть идемпотентными.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/domain/events"
)

// Compile-time check
var _ ports.OutboxRepository = (*OutboxRepository)(nil)
var _ ports.EventPublisher = (*OutboxRepository)(nil) // OutboxRepository также является EventPublisher

// MaxOutboxRetries - после стольких неудачных публикаций запись остаётся FAILED.
const MaxOutboxRetries = 5

// OutboxRepository реализует ports.OutboxRepository.
type OutboxRepository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewOutboxRepository создаёт новый OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool, maxRetries: MaxOutboxRetries}
}

// WithMaxRetries задаёт число попыток публикации; n <= 0 оставляет MaxOutboxRetries.
func (r *OutboxRepository) WithMaxRetries(n int) *OutboxRepository {
	if n > 0 {
		r.maxRetries = n
	}
	return r
}

// Save сохраняет событие в outbox таблицу.
func (r *OutboxRepository) Save(ctx context.Context, event events.DomainEvent) error {
	q := getQuerier(ctx, r.pool)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', $6)
	`

	_, err = q.Exec(ctx, query,
		event.EventID(),
		events.AggregateType(event.EventType()),
		event.AggregateID(),
		event.EventType(),
		payload,
		event.OccurredAt(),
	)
	if err != nil {
		return wrapDBError("save event to outbox", err)
	}

	return nil
}

// Publish реализует EventPublisher: в Outbox pattern это сохранение в БД.
func (r *OutboxRepository) Publish(ctx context.Context, event events.DomainEvent) error {
	return r.Save(ctx, event)
}

// PublishBatch реализует EventPublisher.
func (r *OutboxRepository) PublishBatch(ctx context.Context, eventsList []events.DomainEvent) error {
	for _, event := range eventsList {
		if err := r.Save(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
		}
	}
	return nil
}

// FindUnpublished возвращает PENDING записи в порядке создания.
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	q := getQuerier(ctx, r.pool)

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, created_at
		FROM outbox
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := q.Query(ctx, query, limit)
	if err != nil {
		return nil, wrapDBError("find unpublished events", err)
	}
	defer rows.Close()

	records := make([]ports.OutboxRecord, 0, limit)
	for rows.Next() {
		var rec ports.OutboxRecord
		err := rows.Scan(&rec.ID, &rec.AggregateType, &rec.AggregateID, &rec.EventType,
			&rec.Payload, &rec.RetryCount, &rec.CreatedAt)
		if err != nil {
			return nil, wrapDBError("scan outbox row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate outbox rows", err)
	}

	return records, nil
}

// MarkPublished помечает событие как опубликованное.
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	q := getQuerier(ctx, r.pool)

	query := `
		UPDATE outbox
		SET status = 'PUBLISHED', published_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := q.Exec(ctx, query, eventID, time.Now().UTC())
	if err != nil {
		return wrapDBError("mark event as published", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("event not found or already published")
	}
	return nil
}

// MarkFailed увеличивает retry_count. Запись остаётся PENDING, пока не
// исчерпан лимит попыток, затем становится FAILED.
func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID uuid.UUID, reason string) error {
	q := getQuerier(ctx, r.pool)

	query := `
		UPDATE outbox
		SET retry_count = retry_count + 1,
			last_error = $2,
			failed_at = $3,
			status = CASE WHEN retry_count + 1 >= $4 THEN 'FAILED' ELSE 'PENDING' END
		WHERE id = $1
	`

	_, err := q.Exec(ctx, query, eventID, reason, time.Now().UTC(), r.maxRetries)
	if err != nil {
		return wrapDBError("mark event as failed", err)
	}
	return nil
}

// CleanupPublished удаляет опубликованные события старше olderThan.
// Outbox - служебная таблица, soft delete к ней не применяется.
func (r *OutboxRepository) CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	q := getQuerier(ctx, r.pool)

	query := `DELETE FROM outbox WHERE status = 'PUBLISHED' AND published_at < $1`

	result, err := q.Exec(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, wrapDBError("cleanup published events", err)
	}
	return result.RowsAffected(), nil
}
