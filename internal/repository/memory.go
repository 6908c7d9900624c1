package repository

import (
	"context"
	"sync"
	"time"

	"bengkel/internal/domain"
)

var _ domain.StateRepository = (*MemoryStateRepository)(nil)

// MemoryStateRepository is the in-process StateRepository used when redis
// is not configured or unreachable.
type MemoryStateRepository struct {
	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
	revoked    map[string]time.Time
	now        func() time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{
		rateLimits: make(map[string]*rateLimitEntry),
		revoked:    make(map[string]time.Time),
		now:        time.Now,
	}
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

func (r *MemoryStateRepository) RevokeToken(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.revoked[tokenID] = now.Add(ttl)
	r.sweepLocked(now)
	return nil
}

func (r *MemoryStateRepository) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(expiresAt) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (r *MemoryStateRepository) sweepLocked(now time.Time) {
	for id, exp := range r.revoked {
		if now.After(exp) {
			delete(r.revoked, id)
		}
	}
	for key, entry := range r.rateLimits {
		if now.After(entry.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
}
