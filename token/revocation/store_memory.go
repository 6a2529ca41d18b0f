package revocation

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is the single-node blacklist. Entries expire lazily when read
// and via Cleanup. Not safe for horizontally-scaled deployment: a logout on
// one instance would leave the token honored by every other.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry     // jti -> entry
	cutoffs map[string]time.Time // owner -> tokens-valid-after
	nowFunc func() time.Time
}

type entry struct {
	reason    Reason
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithNowFunc(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nowFunc = now
	}
}

func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		cutoffs: make(map[string]time.Time),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Blacklist(_ context.Context, jti, _ string, reason Reason, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = entry{reason: reason, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) IsBlacklisted(_ context.Context, jti, ownerID string, issuedAt time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[jti]; ok && e.expiresAt.After(s.nowFunc()) {
		return true, nil
	}
	if cutoff, ok := s.cutoffs[ownerID]; ok && !issuedAt.After(cutoff) {
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) BlacklistAllForOwner(_ context.Context, ownerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Keep the later cutoff if one already exists.
	if existing, ok := s.cutoffs[ownerID]; !ok || at.After(existing) {
		s.cutoffs[ownerID] = at
	}
	return nil
}

// Cleanup removes entries whose underlying token has expired anyway.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	for jti, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, jti)
		}
	}
}
