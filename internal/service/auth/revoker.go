package auth

import (
	"context"
	"sync"
	"time"
)

// TokenRevoker tracks token IDs invalidated before their natural expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// memoryRevoker keeps revoked token IDs in process memory. It is the
// fallback when no shared store is configured; revocations do not survive a
// restart, which is acceptable because the tokens themselves are short-lived.
type memoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryRevoker returns an in-process TokenRevoker with a background
// sweep that drops expired entries.
func NewMemoryRevoker() TokenRevoker {
	r := &memoryRevoker{entries: make(map[string]time.Time)}
	go r.sweepLoop()
	return r
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	r.entries[tokenID] = time.Now().Add(ttl)
	r.mu.Unlock()
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.entries[tokenID]
	if !ok {
		return false, nil
	}
	if now.After(until) {
		delete(r.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (r *memoryRevoker) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		r.mu.Lock()
		for id, until := range r.entries {
			if now.After(until) {
				delete(r.entries, id)
			}
		}
		r.mu.Unlock()
	}
}
