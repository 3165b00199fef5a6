/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/samber/mo"
	"go.uber.org/atomic"

	"github.com/acronis/go-ttlcache/log"
	"github.com/acronis/go-ttlcache/retry"
)

// DefaultShardsNumber is the number of shards the cache is split into if Options.ShardsNumber is not set.
const DefaultShardsNumber = 16

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
	expiresAt time.Time
}

func newEntry[V any](value V, createdAt time.Time, ttl time.Duration) *entry[V] {
	return &entry[V]{value: value, createdAt: createdAt, ttl: ttl, expiresAt: createdAt.Add(ttl)}
}

// expired reports whether the entry's age strictly exceeds its TTL.
func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

func (e *entry[V]) setCreatedAt(createdAt time.Time) {
	e.createdAt = createdAt
	e.expiresAt = createdAt.Add(e.ttl)
}

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*entry[V]
}

// Cache represents a concurrency-safe in-memory cache where each entry expires after its TTL.
// Entries are distributed across shards, so operations on different keys rarely contend for the same lock.
type Cache[K comparable, V any] struct {
	shards    []*shard[K, V]
	shardMask uint64
	seed      maphash.Seed
	amount    atomic.Int64

	defaultTTL    atomic.Duration
	checkInterval atomic.Duration

	logger           log.FieldLogger
	metricsCollector MetricsCollector

	sweeper   *sweeper
	closeOnce sync.Once
}

// Options represents options for the cache.
type Options struct {
	// CheckInterval is an interval between two runs of the background sweeper.
	// If it's not set, the default TTL is used.
	CheckInterval time.Duration

	// ShardsNumber is a number of shards. It must be a power of two. DefaultShardsNumber is used if it's not set.
	ShardsNumber int

	// Name is used in log messages. If it's empty, a unique identifier is generated.
	Name string

	// Logger is used by the background sweeper. Nothing is logged if it's nil.
	Logger log.FieldLogger

	// MetricsCollector is used to collect statistics about cache usage.
	// It can be nil, in this case, metrics will be disabled.
	MetricsCollector MetricsCollector

	// SweepFailureBackoff defines delays between sweeps after a failed one.
	// By default, exponential backoff starting from DefaultSweepFailureBackoffInitialInterval is used.
	// The delay never exceeds the check interval.
	SweepFailureBackoff retry.Policy

	// GracefulStopTimeout limits how long Close waits for the background sweeper to stop.
	// Zero means waiting without a limit.
	GracefulStopTimeout time.Duration
}

// New creates a new Cache with the provided default TTL and starts the background sweeper.
// The check interval is equal to the default TTL.
func New[K comparable, V any](defaultTTL time.Duration) (*Cache[K, V], error) {
	return NewWithOpts[K, V](defaultTTL, Options{})
}

// NewWithOpts creates a new Cache with the provided default TTL and options,
// and starts the background sweeper. Close must be called to stop it.
func NewWithOpts[K comparable, V any](defaultTTL time.Duration, opts Options) (*Cache[K, V], error) {
	if defaultTTL <= 0 {
		return nil, fmt.Errorf("defaultTTL must be greater than 0")
	}
	if opts.CheckInterval < 0 {
		return nil, fmt.Errorf("checkInterval must be greater or equal to 0 (use defaultTTL)")
	}
	if opts.GracefulStopTimeout < 0 {
		return nil, fmt.Errorf("gracefulStopTimeout must be greater or equal to 0 (no limit)")
	}
	shardsNum := opts.ShardsNumber
	if shardsNum == 0 {
		shardsNum = DefaultShardsNumber
	}
	if shardsNum < 0 || shardsNum&(shardsNum-1) != 0 {
		return nil, fmt.Errorf("shardsNumber must be a power of two, got %d", shardsNum)
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.Name == "" {
		opts.Name = xid.New().String()
	}
	if opts.SweepFailureBackoff == nil {
		opts.SweepFailureBackoff = retry.NewExponentialBackoffPolicy(DefaultSweepFailureBackoffInitialInterval, 0)
	}

	c := &Cache[K, V]{
		shards:           make([]*shard[K, V], shardsNum),
		shardMask:        uint64(shardsNum - 1),
		seed:             maphash.MakeSeed(),
		logger:           opts.Logger.With(log.String("cache", opts.Name)),
		metricsCollector: opts.MetricsCollector,
	}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{items: make(map[K]*entry[V])}
	}
	c.defaultTTL.Store(defaultTTL)
	if opts.CheckInterval > 0 {
		c.checkInterval.Store(opts.CheckInterval)
	} else {
		c.checkInterval.Store(defaultTTL)
	}

	c.sweeper = newSweeper(c.RemoveExpired, c.CheckInterval, c.logger, c.metricsCollector, opts)
	c.sweeper.start()
	return c, nil
}

// Put adds a value to the cache with the default TTL.
// If the key already exists, its value is replaced and its age is reset.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, c.defaultTTL.Load())
}

// PutWithTTL adds a value to the cache with the provided TTL.
// If ttl is not positive, the default TTL is used.
func (c *Cache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL.Load()
	}
	e := newEntry(value, time.Now(), ttl)

	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		s.items[key] = e
		return
	}
	s.items[key] = e
	c.metricsCollector.SetAmount(int(c.amount.Inc()))
}

// Get returns a value from the cache by the provided key.
// Expiration is not checked here, so an entry whose TTL has elapsed is returned until it's swept.
// Use Contains when staleness matters.
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	if value, ok = c.get(key); ok {
		c.metricsCollector.IncHits()
		return value, true
	}
	c.metricsCollector.IncMisses()
	return value, false
}

// GetOption works like Get but wraps the result into mo.Option.
func (c *Cache[K, V]) GetOption(key K) mo.Option[V] {
	if value, ok := c.Get(key); ok {
		return mo.Some(value)
	}
	return mo.None[V]()
}

// Contains removes all expired entries and then reports whether the key is still in the cache.
func (c *Cache[K, V]) Contains(key K) bool {
	c.RemoveExpired()
	_, ok := c.get(key)
	return ok
}

// Remove removes a value from the cache by the provided key.
// It returns false if there was no such key.
func (c *Cache[K, V]) Remove(key K) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	c.metricsCollector.SetAmount(int(c.amount.Dec()))
	return true
}

// RemoveAll clears the cache.
// Removed entries are not counted as expirations.
func (c *Cache[K, V]) RemoveAll() {
	for _, s := range c.shards {
		s.mu.Lock()
		if n := len(s.items); n > 0 {
			s.items = make(map[K]*entry[V])
			c.metricsCollector.SetAmount(int(c.amount.Sub(int64(n))))
		}
		s.mu.Unlock()
	}
}

// RemoveExpired removes all entries whose TTL has elapsed and returns their number.
// Shards are scanned one by one, so callers working with other shards are not blocked.
func (c *Cache[K, V]) RemoveExpired() int {
	now := time.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n := 0
		for key, e := range s.items {
			if e.expired(now) {
				delete(s.items, key)
				n++
			}
		}
		if n > 0 {
			c.metricsCollector.SetAmount(int(c.amount.Sub(int64(n))))
		}
		s.mu.Unlock()
		removed += n
	}
	if removed > 0 {
		c.metricsCollector.AddExpirations(removed)
	}
	return removed
}

// RefreshCreationTime sets a new creation time for the entry,
// so it expires when its TTL elapses since createdAt.
// It returns false if there is no such key.
func (c *Cache[K, V]) RefreshCreationTime(key K, createdAt time.Time) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return false
	}
	e.setCreatedAt(createdAt)
	return true
}

// CreationTime returns the time when the entry was added or refreshed.
// Zero time is returned if there is no such key.
func (c *Cache[K, V]) CreationTime(key K) time.Time {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.items[key]; ok {
		return e.createdAt
	}
	return time.Time{}
}

// RemainingTTL returns how long the entry has to live. It's 0 for an expired but not yet swept entry.
func (c *Cache[K, V]) RemainingTTL(key K) (time.Duration, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		return 0, false
	}
	if remaining := time.Until(e.expiresAt); remaining > 0 {
		return remaining, true
	}
	return 0, true
}

// Len returns the number of entries in the cache, including expired ones which were not swept yet.
func (c *Cache[K, V]) Len() int {
	return int(c.amount.Load())
}

// DefaultTTL returns the TTL used by Put.
func (c *Cache[K, V]) DefaultTTL() time.Duration {
	return c.defaultTTL.Load()
}

// SetDefaultTTL changes the TTL for entries added after the call. Existing entries keep their TTL.
// Non-positive values are ignored.
func (c *Cache[K, V]) SetDefaultTTL(ttl time.Duration) {
	if ttl > 0 {
		c.defaultTTL.Store(ttl)
	}
}

// CheckInterval returns the interval between two runs of the background sweeper.
func (c *Cache[K, V]) CheckInterval() time.Duration {
	return c.checkInterval.Load()
}

// SetCheckInterval changes the interval between two runs of the background sweeper.
// The new value is applied after the current wait ends. Non-positive values are ignored.
func (c *Cache[K, V]) SetCheckInterval(interval time.Duration) {
	if interval > 0 {
		c.checkInterval.Store(interval)
	}
}

// SweeperStatus returns the state of the background sweeper.
func (c *Cache[K, V]) SweeperStatus() SweeperStatus {
	return c.sweeper.status()
}

// Close stops the background sweeper and waits until it finishes (see Options.GracefulStopTimeout).
// The cache remains usable, but expired entries are removed only by Contains and RemoveExpired.
// Only the first call has an effect.
func (c *Cache[K, V]) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if stopErr := c.sweeper.stop(); stopErr != nil {
			err = fmt.Errorf("stop sweeper: %w", stopErr)
		}
	})
	return err
}

// MustRegisterMetrics registers the cache metrics if its collector supports that.
// Implements service.MetricsRegisterer interface.
func (c *Cache[K, V]) MustRegisterMetrics() {
	c.sweeper.unit.MustRegisterMetrics()
}

// UnregisterMetrics cancels registration of the cache metrics.
// Implements service.MetricsRegisterer interface.
func (c *Cache[K, V]) UnregisterMetrics() {
	c.sweeper.unit.UnregisterMetrics()
}

func (c *Cache[K, V]) get(key K) (value V, ok bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		return value, false
	}
	return e.value, true
}

func (c *Cache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[maphash.Comparable(c.seed, key)&c.shardMask]
}
