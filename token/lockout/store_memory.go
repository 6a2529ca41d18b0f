package lockout

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps lockout records in a mutex-guarded map with lazy window
// expiry. Single node or tests only.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	nowFunc func() time.Time
}

type memoryRecord struct {
	Record
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithStoreNowFunc(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nowFunc = now
	}
}

func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*memoryRecord),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.liveLocked(key)
	if rec == nil {
		return nil, nil
	}
	cp := rec.Record
	return &cp, nil
}

// liveLocked returns the record for key, dropping it first if its window has
// elapsed.
func (s *MemoryStore) liveLocked(key string) *memoryRecord {
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	if !rec.expiresAt.After(s.nowFunc()) {
		delete(s.records, key)
		return nil
	}
	return rec
}

func (s *MemoryStore) Incr(_ context.Context, key string, windowTTL time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	rec := s.liveLocked(key)
	if rec == nil {
		rec = &memoryRecord{
			Record:    Record{WindowStart: now},
			expiresAt: now.Add(windowTTL),
		}
		s.records[key] = rec
	}
	rec.Count++
	return rec.Count, nil
}

func (s *MemoryStore) Lock(_ context.Context, key string, until time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFunc()
	rec := s.liveLocked(key)
	if rec == nil {
		rec = &memoryRecord{Record: Record{WindowStart: now}}
		s.records[key] = rec
	}
	rec.LockedUntil = until
	rec.expiresAt = now.Add(ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
