package rotation

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/pkg/errors"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps rotation state in mutex-guarded maps. It owns its backing
// maps outright; nothing outside the store ever aliases them. Suitable for a
// single-node deployment or tests only - separate instances cannot see each
// other's revocations, which reopens the replay window this store exists to
// close.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*Record
	families map[string][]string // family -> record ids
	owners   map[string][]string // owner -> record ids
	nowFunc  func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithNowFunc(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nowFunc = now
	}
}

func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[string]*Record),
		families: make(map[string][]string),
		owners:   make(map[string][]string),
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *MemoryStore) insertLocked(rec *Record) error {
	if _, exists := s.records[rec.ID]; exists {
		return errors.Errorf("refresh token id %q already exists", rec.ID)
	}
	stored := *rec
	s.records[rec.ID] = &stored
	s.families[rec.Family] = append(s.families[rec.Family], rec.ID)
	s.owners[rec.OwnerID] = append(s.owners[rec.OwnerID], rec.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, apperrors.ErrTokenNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.Revoked = true
	}
	return nil
}

func (s *MemoryStore) RevokeFamily(_ context.Context, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.families[family] {
		if rec, ok := s.records[id]; ok {
			rec.Revoked = true
		}
	}
	return nil
}

func (s *MemoryStore) RevokeAllForOwner(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.owners[ownerID] {
		if rec, ok := s.records[id]; ok {
			rec.Revoked = true
		}
	}
	return nil
}

func (s *MemoryStore) Swap(_ context.Context, presentedID string, successor *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[presentedID]
	if !ok {
		return apperrors.ErrTokenNotFound
	}
	if rec.Revoked {
		return apperrors.ErrTokenReused
	}
	// Insert the successor before flipping the revoked flag so a failed
	// insert leaves the presented token valid.
	if err := s.insertLocked(successor); err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "storing successor: %v", err)
	}
	rec.Revoked = true
	return nil
}

// Prune drops records whose TTL has elapsed. Never required for correctness
// (expiry is checked at validation time); call it periodically for hygiene.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			s.families[rec.Family] = removeID(s.families[rec.Family], id)
			s.owners[rec.OwnerID] = removeID(s.owners[rec.OwnerID], id)
			removed++
		}
	}
	return removed
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
