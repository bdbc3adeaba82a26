package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// counterStore - команды Redis для счётчика окна.
type counterStore interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// RateCounter - счётчики fixed window для HTTP rate limit, общие для всех реплик API.
type RateCounter struct {
	store counterStore
}

// NewRateCounter создаёт счётчик поверх клиента.
func NewRateCounter(client counterStore) (*RateCounter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RateCounter{store: client}, nil
}

// IncrWithTTL увеличивает счётчик и ставит TTL при первом инкременте окна.
func (r *RateCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	fullKey := "marketbridge:ratelimit:" + key
	count, err := r.store.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("incr rate counter: %w", err)
	}
	if ttl > 0 && count == 1 {
		if err := r.store.Expire(ctx, fullKey, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire rate counter: %w", err)
		}
	}
	return count, nil
}
