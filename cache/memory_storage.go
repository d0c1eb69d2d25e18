package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pilab-dev/cartbuilder/session"
)

// MemoryStorage implements session.MultiStorage using ttlcache. Values
// survive for the life of the process only.
type MemoryStorage struct {
	mu    sync.RWMutex
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStorage creates an in-memory storage. A ttl of zero keeps values
// until they are deleted; a positive ttl expires each key ttl after its last
// write. session.Store rewrites the tokens and the user together on refresh,
// so both keys of a session share one deadline.
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []byte](ttl),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	go cache.Start()

	return &MemoryStorage{cache: cache}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.cache.Get(key)
	if item == nil {
		return nil, session.ErrNotFound
	}
	return clone(item.Value()), nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, clone(value), ttlcache.DefaultTTL)
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(key)
	return nil
}

// SetMany writes all entries while holding the write lock, so readers never
// observe half of them.
func (s *MemoryStorage) SetMany(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range entries {
		s.cache.Set(k, clone(v), ttlcache.DefaultTTL)
	}
	return nil
}

func (s *MemoryStorage) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.cache.Delete(k)
	}
	return nil
}

// Len returns the number of live keys.
func (s *MemoryStorage) Len() int {
	return s.cache.Len()
}

// Close stops the expiry goroutine.
func (s *MemoryStorage) Close() error {
	s.cache.Stop()
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ session.MultiStorage = (*MemoryStorage)(nil)
