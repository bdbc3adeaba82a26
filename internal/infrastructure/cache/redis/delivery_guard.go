// Package redis - Redis адаптеры: отметки обработанных доставок webhook'ов.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Haleralex/marketbridge/internal/application/ports"
)

var _ ports.DeliveryGuard = (*DeliveryGuard)(nil)

// Config - настройки подключения к Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient создаёт клиент и проверяет подключение.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// store - подмножество команд Redis, которое нужно guard'у.
type store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// DeliveryGuard помечает ключ доставки через SET NX с TTL.
// Первая доставка ставит ключ, повторные видят его и пропускаются.
type DeliveryGuard struct {
	store store
	ttl   time.Duration
	scope string
}

// NewDeliveryGuard создаёт guard. scope разделяет ключи разных источников.
func NewDeliveryGuard(client store, ttl time.Duration, scope string) (*DeliveryGuard, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &DeliveryGuard{store: client, ttl: ttl, scope: scope}, nil
}

func (g *DeliveryGuard) key(id string) string {
	return "marketbridge:delivery:" + g.scope + ":" + id
}

// CheckAndMark возвращает true, если ключ уже был помечен.
func (g *DeliveryGuard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("delivery id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(id), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set delivery key: %w", err)
	}
	return !set, nil
}

// Delete снимает отметку после неудачной обработки.
func (g *DeliveryGuard) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delivery id is required")
	}
	if err := g.store.Del(ctx, g.key(id)).Err(); err != nil {
		return fmt.Errorf("delete delivery key: %w", err)
	}
	return nil
}
