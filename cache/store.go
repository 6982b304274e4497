package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// store holds whole entries. set replaces an entry atomically; readers see
// either the old or the new entry, never a mix. peek reads without counting
// as a use.
type store[K comparable, V any] interface {
	get(key K) (entry[V], bool)
	peek(key K) (entry[V], bool)
	set(key K, e entry[V])
	len() int
}

type mapStore[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
}

func newMapStore[K comparable, V any]() *mapStore[K, V] {
	return &mapStore[K, V]{entries: make(map[K]entry[V])}
}

func (s *mapStore[K, V]) get(key K) (entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *mapStore[K, V]) peek(key K) (entry[V], bool) {
	return s.get(key)
}

func (s *mapStore[K, V]) set(key K, e entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
}

func (s *mapStore[K, V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// lruStore bounds the number of entries. golang-lru locks internally.
type lruStore[K comparable, V any] struct {
	entries *lru.Cache[K, entry[V]]
}

func newLRUStore[K comparable, V any](size int) *lruStore[K, V] {
	entries, err := lru.New[K, entry[V]](size)
	if err != nil {
		// only returned for size <= 0, which WithMaxEntries filters out
		panic(err)
	}
	return &lruStore[K, V]{entries: entries}
}

func (s *lruStore[K, V]) get(key K) (entry[V], bool) {
	return s.entries.Get(key)
}

func (s *lruStore[K, V]) peek(key K) (entry[V], bool) {
	return s.entries.Peek(key)
}

func (s *lruStore[K, V]) set(key K, e entry[V]) {
	s.entries.Add(key, e)
}

func (s *lruStore[K, V]) len() int {
	return s.entries.Len()
}
