package idempotency

import (
	"context"
	"sync"
	"time"

	"av-rental/internal/model"
)

type memoryEntry struct {
	session   *model.CheckoutSession
	expiresAt time.Time
}

// MemoryStore is the single-process Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryStore creates an in-process store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Begin(ctx context.Context, key string) (*model.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.session == nil {
			return nil, model.ErrCheckoutInProgress
		}
		cp := *e.session
		return &cp, nil
	}

	s.entries[key] = memoryEntry{expiresAt: now.Add(s.ttl)}
	s.sweep(now)
	return nil, nil
}

func (s *MemoryStore) Complete(ctx context.Context, key string, session *model.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.entries[key] = memoryEntry{session: &cp, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
