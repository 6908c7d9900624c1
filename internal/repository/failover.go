package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bengkel/internal/domain"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

var _ domain.StateRepository = (*FailoverStateRepository)(nil)

// FailoverStateRepository routes calls to primary and switches to fallback
// after the first primary error. The primary is retried once per
// recovery interval.
type FailoverStateRepository struct {
	primary  domain.StateRepository
	fallback domain.StateRepository
	logger   *zerolog.Logger

	isDown           atomic.Bool
	mu               sync.Mutex
	lastCheck        time.Time
	recoveryInterval time.Duration
	now              func() time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:          primary,
		fallback:         fallback,
		logger:           logger,
		recoveryInterval: defaultRecoveryInterval,
		now:              time.Now,
	}
}

func (r *FailoverStateRepository) markDown(op string, err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Str("op", op).Msg("Primary state repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

func (r *FailoverStateRepository) shouldTryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Sub(r.lastCheck) > r.recoveryInterval
}

func withFailover[T any](r *FailoverStateRepository, op string, call func(domain.StateRepository) (T, error)) (T, error) {
	if r.shouldTryPrimary() {
		wasDown := r.isDown.Load()
		v, err := call(r.primary)
		if err == nil {
			if wasDown {
				r.isDown.Store(false)
				r.logger.Info().Str("op", op).Msg("Primary state repository recovered")
			}
			return v, nil
		}
		r.markDown(op, err)
	}
	return call(r.fallback)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return withFailover(r, "check_rate_limit", func(s domain.StateRepository) (bool, error) {
		return s.CheckRateLimit(ctx, key, limit, window)
	})
}

// RevokeToken writes to the fallback as well so a revocation survives a
// later switch away from the primary.
func (r *FailoverStateRepository) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	_, err := withFailover(r, "revoke_token", func(s domain.StateRepository) (struct{}, error) {
		return struct{}{}, s.RevokeToken(ctx, tokenID, ttl)
	})
	if err != nil {
		return err
	}
	if r.isDown.Load() {
		return nil
	}
	return r.fallback.RevokeToken(ctx, tokenID, ttl)
}

func (r *FailoverStateRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := withFailover(r, "is_token_revoked", func(s domain.StateRepository) (bool, error) {
		return s.IsTokenRevoked(ctx, tokenID)
	})
	if err != nil || revoked || r.isDown.Load() {
		return revoked, err
	}
	return r.fallback.IsTokenRevoked(ctx, tokenID)
}
