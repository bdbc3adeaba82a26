// Package nats отправляет события outbox'а в NATS.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Haleralex/marketbridge/internal/application/ports"
)

var _ ports.MessagePublisher = (*Publisher)(nil)

// SubjectPrefix - все события публикуются в marketbridge.<event_type>.
const SubjectPrefix = "marketbridge."

// Subject возвращает subject для типа события.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// Config - настройки подключения к NATS.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Connect подключается к NATS с переподключением.
func Connect(cfg Config) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// Publisher реализует ports.MessagePublisher.
//
// Publish ждёт подтверждения сервера (flush): relay помечает запись
// опубликованной только после того, как сообщение дошло до NATS.
type Publisher struct {
	conn conn
}

// NewPublisher создаёт Publisher поверх подключения.
func NewPublisher(c conn) *Publisher {
	return &Publisher{conn: c}
}

// Publish отправляет сообщение с заголовками.
func (p *Publisher) Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", subject, err)
	}
	return nil
}
