// Package cache keeps remote timetable data for a fixed time-to-live and
// refreshes it on demand.
//
// A Cache serves an entry while it is younger than its TTL. An absent or
// expired entry triggers a fetch; concurrent misses for the same key share a
// single fetch. A successful fetch replaces the entry wholesale, a failed one
// leaves the previous (stale) entry in place.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the value for key from the remote source.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// RetryPolicy retries a fetch that failed or returned a value Accept rejects.
// After Attempts tries the Fallback value is returned without an error and
// without being stored.
type RetryPolicy[V any] struct {
	Attempts int
	Delay    time.Duration
	Accept   func(V) bool
	Fallback func() V
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is a keyed time-to-live cache in front of a FetchFunc. It is safe for
// concurrent use.
type Cache[K comparable, V any] struct {
	name   string
	ttl    time.Duration
	fetch  FetchFunc[K, V]
	store  store[K, V]
	group  singleflight.Group
	retry  *RetryPolicy[V]
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock replaces time.Now.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) { c.now = now }
}

// WithSleep replaces the wait between retry attempts.
func WithSleep[K comparable, V any](sleep func(ctx context.Context, d time.Duration) error) Option[K, V] {
	return func(c *Cache[K, V]) { c.sleep = sleep }
}

// WithLogger sets the logger used for refresh and failure messages.
func WithLogger[K comparable, V any](logger *zap.Logger) Option[K, V] {
	return func(c *Cache[K, V]) { c.logger = logger }
}

// WithMaxEntries bounds the cache to n entries, evicting the least recently
// used one when full. n <= 0 keeps the cache unbounded.
func WithMaxEntries[K comparable, V any](n int) Option[K, V] {
	return func(c *Cache[K, V]) {
		if n > 0 {
			c.store = newLRUStore[K, V](n)
		}
	}
}

// WithRetry enables a retry policy for fetches.
func WithRetry[K comparable, V any](policy RetryPolicy[V]) Option[K, V] {
	return func(c *Cache[K, V]) {
		p := policy
		if p.Attempts < 1 {
			p.Attempts = 1
		}
		c.retry = &p
	}
}

// New creates a cache named name whose entries live for ttl.
func New[K comparable, V any](name string, ttl time.Duration, fetch FetchFunc[K, V], opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		name:   name,
		ttl:    ttl,
		fetch:  fetch,
		store:  newMapStore[K, V](),
		now:    time.Now,
		sleep:  SleepContext,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached value for key while it is fresh, otherwise
// fetches, stores and returns a new one. On fetch failure the error is
// returned and any stale entry is kept.
func (c *Cache[K, V]) GetOrFetch(ctx context.Context, key K) (V, error) {
	if e, ok := c.fresh(key); ok {
		return e.value, nil
	}

	// The flight outlives any single caller; only the HTTP client timeout
	// bounds it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(flightKey(key), func() (any, error) {
		if e, ok := c.fresh(key); ok {
			return e.value, nil
		}
		return c.refresh(flightCtx, key)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if shared {
		c.logger.Debug("joined in-flight fetch", zap.String("cache", c.name), zap.Any("key", key))
	}
	return v.(V), nil
}

// Peek returns the stored value for key and when it was fetched, ignoring
// its age. It never fetches and does not affect eviction order.
func (c *Cache[K, V]) Peek(key K) (V, time.Time, bool) {
	e, ok := c.store.peek(key)
	return e.value, e.fetchedAt, ok
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache[K, V]) Len() int {
	return c.store.len()
}

// TTL returns the time-to-live of the cache.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[K, V]) fresh(key K) (entry[V], bool) {
	e, ok := c.store.get(key)
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return entry[V]{}, false
	}
	return e, true
}

// refresh fetches key, applying the retry policy if one is set.
func (c *Cache[K, V]) refresh(ctx context.Context, key K) (V, error) {
	logger := c.logger.With(zap.String("cache", c.name), zap.Any("key", key))
	if _, fetchedAt, ok := c.Peek(key); ok {
		logger.Info("refreshing expired entry", zap.String("fetched", humanize.Time(fetchedAt)))
	} else {
		logger.Info("fetching missing entry")
	}

	if c.retry == nil {
		v, err := c.fetch(ctx, key)
		if err != nil {
			c.logFailure(logger, key, err)
			var zero V
			return zero, err
		}
		c.store.set(key, entry[V]{value: v, fetchedAt: c.now()})
		return v, nil
	}

	for attempt := 1; attempt <= c.retry.Attempts; attempt++ {
		v, err := c.fetch(ctx, key)
		switch {
		case err != nil:
			logger.Warn("fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		case c.retry.Accept != nil && !c.retry.Accept(v):
			logger.Warn("fetch attempt returned an unusable value", zap.Int("attempt", attempt))
		default:
			c.store.set(key, entry[V]{value: v, fetchedAt: c.now()})
			return v, nil
		}

		if attempt < c.retry.Attempts {
			if err := c.sleep(ctx, c.retry.Delay); err != nil {
				var zero V
				return zero, err
			}
		}
	}

	logger.Warn("giving up after retries, serving fallback", zap.Int("attempts", c.retry.Attempts))
	var fallback V
	if c.retry.Fallback != nil {
		fallback = c.retry.Fallback()
	}
	return fallback, nil
}

func (c *Cache[K, V]) logFailure(logger *zap.Logger, key K, err error) {
	if _, fetchedAt, ok := c.Peek(key); ok {
		logger.Error("refresh failed, keeping stale entry",
			zap.String("fetched", humanize.Time(fetchedAt)),
			zap.Error(err),
		)
		return
	}
	logger.Error("fetch failed", zap.Error(err))
}

// flightKey names the in-flight fetch for key. %#v quotes string fields, so
// distinct keys never share a name.
func flightKey[K comparable](key K) string {
	return fmt.Sprintf("%#v", key)
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
