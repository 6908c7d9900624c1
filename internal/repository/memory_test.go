package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository()
	clock := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	ctx := context.Background()

	t.Run("CheckRateLimit", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "login:a", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, err := repo.CheckRateLimit(ctx, "login:a", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)

		// other keys are independent
		allowed, err = repo.CheckRateLimit(ctx, "login:b", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		clock = clock.Add(2 * time.Minute)
		allowed, err = repo.CheckRateLimit(ctx, "login:a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("RevokeToken", func(t *testing.T) {
		require.NoError(t, repo.RevokeToken(ctx, "jti", time.Hour))
		revoked, err := repo.IsTokenRevoked(ctx, "jti")
		require.NoError(t, err)
		assert.True(t, revoked)

		clock = clock.Add(2 * time.Hour)
		revoked, err = repo.IsTokenRevoked(ctx, "jti")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("SweepsExpired", func(t *testing.T) {
		require.NoError(t, repo.RevokeToken(ctx, "old", time.Second))
		clock = clock.Add(time.Minute)
		require.NoError(t, repo.RevokeToken(ctx, "new", time.Hour))

		repo.mu.Lock()
		_, hasOld := repo.revoked["old"]
		_, hasNew := repo.revoked["new"]
		repo.mu.Unlock()
		assert.False(t, hasOld)
		assert.True(t, hasNew)
	})

	t.Run("ZeroTTL", func(t *testing.T) {
		require.NoError(t, repo.RevokeToken(ctx, "zero", 0))
		revoked, err := repo.IsTokenRevoked(ctx, "zero")
		require.NoError(t, err)
		assert.False(t, revoked)
	})
}
