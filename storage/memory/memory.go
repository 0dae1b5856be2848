// Package memory provides an in-memory implementation of the storage
// interface using github.com/hashicorp/golang-lru/v2 for bounded caching
// with TTL support.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ggoodman/rpcparam/storage"
)

// DefaultCleanupInterval is how often expired items are swept.
const DefaultCleanupInterval = 5 * time.Minute

// Storage implements the storage.Storage interface using an LRU cache.
// Once maxItems keys are held, the least recently used one is evicted.
type Storage struct {
	mu     sync.RWMutex
	cache  *lru.Cache[string, *storage.Item]
	closed bool

	stop chan struct{}
	done chan struct{}
}

// Option customizes a Storage.
type Option func(*config)

type config struct {
	cleanupInterval time.Duration
}

// WithCleanupInterval sets how often expired items are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// New creates a new in-memory storage holding at most maxItems keys.
func New(maxItems int, opts ...Option) (*Storage, error) {
	cfg := config{cleanupInterval: DefaultCleanupInterval}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	s := &Storage{
		cache: cache,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	// Start background cleanup of expired items
	go s.cleanupExpired(cfg.cleanupInterval)

	return s, nil
}

// Get retrieves data for a specific key within the given namespace.
func (s *Storage) Get(ctx context.Context, key string, opts ...storage.Option) (*storage.Item, error) {
	options := storage.Apply(opts...)
	storageKey := buildKey(options.Namespace, key)

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, storage.ErrClosed
	}
	item, exists := s.cache.Get(storageKey)
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}

	if item.IsExpired() {
		s.mu.Lock()
		if cur, ok := s.cache.Peek(storageKey); ok && cur == item {
			s.cache.Remove(storageKey)
		}
		s.mu.Unlock()
		return nil, nil
	}

	return copyItem(item), nil
}

// Set stores data for a specific key within the given namespace.
func (s *Storage) Set(ctx context.Context, key string, data []byte, opts ...storage.Option) error {
	options := storage.Apply(opts...)
	storageKey := buildKey(options.Namespace, key)

	now := time.Now()
	item := &storage.Item{
		Data:      append([]byte(nil), data...),
		CreatedAt: now,
	}
	if options.TTL != nil {
		expiresAt := now.Add(*options.TTL)
		item.ExpiresAt = &expiresAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	if options.IfNotExists {
		if cur, ok := s.cache.Peek(storageKey); ok && !cur.IsExpired() {
			return storage.ErrExists
		}
	}
	s.cache.Add(storageKey, item)
	return nil
}

// Delete removes data within the given namespace.
func (s *Storage) Delete(ctx context.Context, opts ...storage.Option) error {
	options := storage.Apply(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	if options.Key != nil {
		s.cache.Remove(buildKey(options.Namespace, *options.Key))
		return nil
	}

	// LRU has no prefix iteration; scan the key snapshot.
	prefix := namespacePrefix(options.Namespace)
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Remove(key)
		}
	}
	return nil
}

// List returns the live keys of the namespace in lexical order.
func (s *Storage) List(ctx context.Context, opts ...storage.Option) ([]string, error) {
	options := storage.Apply(opts...)
	prefix := namespacePrefix(options.Namespace)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	var keys []string
	for _, key := range s.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if item, ok := s.cache.Peek(key); ok && !item.IsExpired() {
			keys = append(keys, key[len(prefix):])
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Len returns the number of cached keys, expired ones included until they
// are swept.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

// Close stops the cleanup loop and purges the cache.
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cache.Purge()
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return nil
}

func buildKey(namespace, key string) string {
	return namespacePrefix(namespace) + key
}

func namespacePrefix(namespace string) string {
	return "ns:" + namespace + ":key:"
}

func copyItem(it *storage.Item) *storage.Item {
	out := *it
	out.Data = append([]byte(nil), it.Data...)
	return &out
}

// cleanupExpired periodically removes expired items until Close.
func (s *Storage) cleanupExpired(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		for _, key := range s.cache.Keys() {
			if item, ok := s.cache.Peek(key); ok && item.IsExpired() {
				s.cache.Remove(key)
			}
		}
		s.mu.Unlock()
	}
}

// Compile-time interface check
var _ storage.Storage = (*Storage)(nil)
