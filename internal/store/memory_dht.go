package store

import (
	"context"
	"sync"
	"time"
)

type dhtEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryDHT is an in-process DistributedStore. It is shared by every node of
// a simulated swarm and by tests.
type MemoryDHT struct {
	mu      sync.RWMutex
	entries map[string]map[string]dhtEntry
	now     func() time.Time
}

func NewMemoryDHT() *MemoryDHT {
	return &MemoryDHT{
		entries: make(map[string]map[string]dhtEntry),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expiry.
func (s *MemoryDHT) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryDHT) Put(ctx context.Context, key, subkey string, value []byte, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.entries[key]
	if !ok {
		sub = make(map[string]dhtEntry)
		s.entries[key] = sub
	}
	sub[subkey] = dhtEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

// Get returns the live subkeys under key. searchWidth has no effect on a
// single-process store.
func (s *MemoryDHT) Get(ctx context.Context, key string, searchWidth int) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make(map[string][]byte)
	for subkey, e := range s.entries[key] {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			continue
		}
		out[subkey] = append([]byte(nil), e.value...)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *MemoryDHT) DeleteExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, sub := range s.entries {
		for subkey, e := range sub {
			if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
				delete(sub, subkey)
				n++
			}
		}
		if len(sub) == 0 {
			delete(s.entries, key)
		}
	}
	return n, nil
}
