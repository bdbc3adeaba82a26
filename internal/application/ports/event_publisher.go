// Package ports - EventPublisher для публикации domain events.
//
// Pattern: Publisher/Subscriber (Observer на уровне инфраструктуры)
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/events"
)

// EventPublisher определяет контракт для публикации domain events.
//
// Реализации:
// - Database Outbox (production): событие пишется в той же транзакции,
//   что и бизнес-операция, relay потом отправляет его в NATS
// - In-memory (тесты)
type EventPublisher interface {
	// Publish публикует одно событие.
	// At-least-once delivery: consumers должны быть идемпотентными!
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch публикует несколько событий. Если одно не удалось,
	// вся batch проваливается.
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// OutboxRecord - строка outbox таблицы в том виде, в каком её читает relay.
type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	RetryCount    int
	CreatedAt     time.Time
}

// OutboxRepository - интерфейс для Transactional Outbox Pattern.
//
// 1. В той же БД-транзакции сохраняем event в таблицу outbox
// 2. Relay читает outbox и публикует в message bus
// 3. После успешной публикации помечает event как published
type OutboxRepository interface {
	// Save сохраняет событие в outbox таблицу.
	// Должно выполняться в той же транзакции, что и бизнес-операция!
	Save(ctx context.Context, event events.DomainEvent) error

	// FindUnpublished возвращает ещё не опубликованные записи.
	// Внутри транзакции строки блокируются (FOR UPDATE SKIP LOCKED),
	// поэтому несколько relay'ев не публикуют одно событие дважды.
	FindUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)

	// MarkPublished помечает событие как опубликованное.
	MarkPublished(ctx context.Context, eventID uuid.UUID) error

	// MarkFailed помечает событие как failed и увеличивает retry_count.
	MarkFailed(ctx context.Context, eventID uuid.UUID, reason string) error
}

// MessagePublisher отправляет сырое сообщение в message bus (NATS).
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error
}
