package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bengkel/internal/config"
	"bengkel/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix    = "rate_limit:"
	revokedTokenKeyPrefix = "revoked_token:"
)

var errNilClient = errors.New("redis client is nil")

var _ domain.StateRepository = (*RedisStateRepository)(nil)

type RedisStateRepository struct {
	client *redis.Client
}

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStateRepository(client *redis.Client) *RedisStateRepository {
	return &RedisStateRepository{client: client}
}

// CheckRateLimit counts one attempt against key and reports whether the
// caller is still within limit for the current window.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	redisKey := rateLimitKeyPrefix + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

func (r *RedisStateRepository) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r.client == nil {
		return errNilClient
	}
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	n, err := r.client.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
