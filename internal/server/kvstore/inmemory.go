package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/common"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryStore is a Store backed by a map, with lazy expiration on access.
// Used in tests and single-node development setups.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]*entry)}
}

func (s *InMemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *InMemoryStore) ConsumeIfUnused(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[key]; ok && !e.expired(now) {
		return false, nil
	}

	e := &entry{value: []byte("1")}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
	return true, nil
}
