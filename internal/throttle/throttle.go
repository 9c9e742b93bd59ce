package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "login_attempts:"

// Limiter counts failed logins per key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "throttle.NewRedisClient"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return client, nil
}

func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	const op = "throttle.Allow"

	count, err := l.client.Get(ctx, keyPrefix+key).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}

	return underLimit(count, l.maxAttempts), nil
}

// underLimit reports whether a key with count recorded failures may try again.
func underLimit(count, maxAttempts int64) bool {
	return count < maxAttempts
}

// Fail starts the window on the first failure; later failures do not extend it.
func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	const op = "throttle.Fail"

	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, keyPrefix+key)
	pipe.ExpireNX(ctx, keyPrefix+key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	const op = "throttle.Reset"

	if err := l.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Nop is used when Redis is not configured.
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }
func (Nop) Fail(context.Context, string) error          { return nil }
func (Nop) Reset(context.Context, string) error         { return nil }
