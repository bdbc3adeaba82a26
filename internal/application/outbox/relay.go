// Package outbox - relay transactional outbox → message bus.
//
// Relay забирает PENDING записи (FOR UPDATE SKIP LOCKED) в транзакции,
// публикует каждую и помечает published или failed в той же транзакции.
// Доставка at-least-once: если commit не прошёл после публикации,
// событие уйдёт повторно. Подписчики дедуплицируют по заголовку Nats-Msg-Id.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Haleralex/marketbridge/internal/application/ports"
	"github.com/Haleralex/marketbridge/internal/pkg/metrics"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
	maxBackoff          = 30 * time.Second
	cleanupInterval     = time.Hour
)

// Message headers.
const (
	HeaderMessageID   = "Nats-Msg-Id"
	HeaderEventType   = "Event-Type"
	HeaderAggregateID = "Aggregate-Id"
)

// Config - параметры relay.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	// Subject строит subject по типу события; nil - сам тип события
	Subject func(eventType string) string
	// Retention - сколько хранить опубликованные записи; 0 - не чистить
	Retention time.Duration
}

// publishedCleaner - необязательная возможность хранилища удалять
// опубликованные записи.
type publishedCleaner interface {
	CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Relay переносит события из outbox в message bus.
type Relay struct {
	uow          ports.UnitOfWork
	repo         ports.OutboxRepository
	publisher    ports.MessagePublisher
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
	subject      func(string) string
	retention    time.Duration
	lastCleanup  time.Time
}

// NewRelay создаёт relay.
func NewRelay(
	uow ports.UnitOfWork,
	repo ports.OutboxRepository,
	publisher ports.MessagePublisher,
	logger *slog.Logger,
	cfg Config,
) (*Relay, error) {
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if publisher == nil {
		return nil, errors.New("message publisher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	subject := cfg.Subject
	if subject == nil {
		subject = func(eventType string) string { return eventType }
	}

	return &Relay{
		uow:          uow,
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		batchSize:    batch,
		pollInterval: interval,
		subject:      subject,
		retention:    cfg.Retention,
	}, nil
}

// batchStats - итог одного batch'а.
type batchStats struct {
	published int
	failed    int
}

// Run обрабатывает batch'и до отмены ctx.
// Полный batch успешных публикаций означает, что в очереди могут быть ещё
// записи: следующий забирается сразу. Ошибки хранилища и неудачные публикации
// увеличивают паузу до maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.pollInterval

	for {
		if r.retention > 0 && time.Since(r.lastCleanup) >= cleanupInterval {
			r.lastCleanup = time.Now()
			if _, err := r.Cleanup(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "outbox cleanup failed", slog.String("error", err.Error()))
			}
		}

		stats, err := r.processBatch(ctx)
		backoff := err != nil || stats.failed > 0
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.ErrorContext(ctx, "outbox batch failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", wait),
			)
		case stats.failed > 0:
			r.logger.WarnContext(ctx, "outbox batch had publish failures",
				slog.Int("published", stats.published),
				slog.Int("failed", stats.failed),
				slog.Duration("retry_in", wait),
			)
		case stats.published == r.batchSize:
			wait = r.pollInterval
			continue
		default:
			wait = r.pollInterval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if backoff {
			wait = min(wait*2, maxBackoff)
		}
	}
}

// ProcessBatch публикует одну порцию записей и возвращает число опубликованных.
// Ошибка публикации отдельного события не прерывает batch: запись помечается
// failed и будет повторена, пока не исчерпан лимит попыток.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	stats, err := r.processBatch(ctx)
	return stats.published, err
}

func (r *Relay) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats

	err := r.uow.Execute(ctx, func(txCtx context.Context) error {
		stats = batchStats{}
		records, err := r.repo.FindUnpublished(txCtx, r.batchSize)
		if err != nil {
			return err
		}

		for _, rec := range records {
			ok, err := r.publish(txCtx, rec)
			if err != nil {
				return err
			}
			if ok {
				stats.published++
			} else {
				stats.failed++
			}
		}
		return nil
	})
	if err != nil {
		return batchStats{}, fmt.Errorf("failed to process outbox batch: %w", err)
	}

	return stats, nil
}

// Cleanup удаляет опубликованные записи старше retention.
// Хранилище без CleanupPublished пропускается.
func (r *Relay) Cleanup(ctx context.Context) (int64, error) {
	cleaner, ok := r.repo.(publishedCleaner)
	if !ok || r.retention <= 0 {
		return 0, nil
	}

	removed, err := cleaner.CleanupPublished(ctx, r.retention)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox: %w", err)
	}
	if removed > 0 {
		r.logger.InfoContext(ctx, "outbox cleaned up",
			slog.Int64("removed", removed),
			slog.Duration("retention", r.retention),
		)
	}
	return removed, nil
}

// publish отправляет запись и отмечает результат. false - публикация не
// удалась и запись помечена failed; ошибка - только от хранилища.
func (r *Relay) publish(ctx context.Context, rec ports.OutboxRecord) (bool, error) {
	headers := map[string]string{
		HeaderMessageID:   rec.ID.String(),
		HeaderEventType:   rec.EventType,
		HeaderAggregateID: rec.AggregateID.String(),
	}

	if err := r.publisher.Publish(ctx, r.subject(rec.EventType), rec.Payload, headers); err != nil {
		r.logger.WarnContext(ctx, "outbox publish failed",
			slog.String("event_id", rec.ID.String()),
			slog.String("event_type", rec.EventType),
			slog.Int("retry_count", rec.RetryCount),
			slog.String("error", err.Error()),
		)
		metrics.RecordOutbox(rec.EventType, "failed")
		return false, r.repo.MarkFailed(ctx, rec.ID, err.Error())
	}

	metrics.RecordOutbox(rec.EventType, "published")
	return true, r.repo.MarkPublished(ctx, rec.ID)
}
