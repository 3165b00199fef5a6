/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-ttlcache/service"
	"github.com/acronis/go-ttlcache/testutil"
)

func newTestCache[K comparable, V any](t *testing.T, defaultTTL time.Duration, opts Options) *Cache[K, V] {
	t.Helper()
	cache, err := NewWithOpts[K, V](defaultTTL, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cache.Close())
	})
	// The first sweep starts right away, wait for it so it doesn't interfere with entries aged by tests.
	require.Eventually(t, func() bool {
		return cache.SweeperStatus().TotalSweeps > 0
	}, time.Second, time.Millisecond)
	return cache
}

func TestNewWithOpts(t *testing.T) {
	tests := []struct {
		name       string
		defaultTTL time.Duration
		opts       Options
		wantErr    string
	}{
		{name: "zero TTL", defaultTTL: 0, wantErr: "defaultTTL must be greater than 0"},
		{name: "negative TTL", defaultTTL: -time.Second, wantErr: "defaultTTL must be greater than 0"},
		{
			name:       "negative check interval",
			defaultTTL: time.Second,
			opts:       Options{CheckInterval: -1},
			wantErr:    "checkInterval must be greater or equal to 0",
		},
		{
			name:       "negative graceful stop timeout",
			defaultTTL: time.Second,
			opts:       Options{GracefulStopTimeout: -1},
			wantErr:    "gracefulStopTimeout must be greater or equal to 0",
		},
		{
			name:       "shards number is not a power of two",
			defaultTTL: time.Second,
			opts:       Options{ShardsNumber: 12},
			wantErr:    "shardsNumber must be a power of two, got 12",
		},
		{
			name:       "negative shards number",
			defaultTTL: time.Second,
			opts:       Options{ShardsNumber: -4},
			wantErr:    "shardsNumber must be a power of two, got -4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithOpts[string, string](tt.defaultTTL, tt.opts)
			require.EqualError(t, err, tt.wantErr)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		cache := newTestCache[string, int](t, 10*time.Second, Options{})
		require.Equal(t, 10*time.Second, cache.DefaultTTL())
		require.Equal(t, 10*time.Second, cache.CheckInterval())
		require.Len(t, cache.shards, DefaultShardsNumber)
		require.Equal(t, 0, cache.Len())
	})

	t.Run("single shard", func(t *testing.T) {
		cache := newTestCache[string, int](t, time.Minute, Options{ShardsNumber: 1, CheckInterval: time.Second})
		require.Len(t, cache.shards, 1)
		require.Equal(t, time.Second, cache.CheckInterval())
		cache.Put("a", 1)
		cache.Put("b", 2)
		require.Equal(t, 2, cache.Len())
	})
}

func TestCache_PutGetRemove(t *testing.T) {
	cache, err := New[string, string](10 * time.Second)
	require.NoError(t, err)
	defer func() { require.NoError(t, cache.Close()) }()

	cache.Put("k", "v")
	require.Equal(t, 1, cache.Len())
	val, ok := cache.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", val)

	require.True(t, cache.Remove("k"))
	require.Equal(t, 0, cache.Len())
	_, ok = cache.Get("k")
	require.False(t, ok)

	require.False(t, cache.Remove("k"), "removing an absent key is a no-op")
	require.Equal(t, 0, cache.Len())
}

func TestCache_Put(t *testing.T) {
	cache := newTestCache[int, string](t, time.Hour, Options{})

	const keysNum = 100
	for i := 0; i < keysNum; i++ {
		cache.Put(i, fmt.Sprintf("value-%d", i))
	}
	require.Equal(t, keysNum, cache.Len())
	for i := 0; i < keysNum; i++ {
		val, ok := cache.Get(i)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("value-%d", i), val)
	}

	t.Run("overwrite replaces the value and resets the age", func(t *testing.T) {
		require.True(t, cache.RefreshCreationTime(1, time.Now().Add(-30*time.Minute)))
		beforePut := time.Now()
		cache.Put(1, "new value")
		require.Equal(t, keysNum, cache.Len())

		val, ok := cache.Get(1)
		require.True(t, ok)
		require.Equal(t, "new value", val)
		require.False(t, cache.CreationTime(1).Before(beforePut))
	})
}

func TestCache_PutWithTTL(t *testing.T) {
	cache := newTestCache[string, int](t, time.Hour, Options{})

	cache.PutWithTTL("short", 1, time.Second)
	cache.PutWithTTL("default", 2, 0)
	cache.PutWithTTL("negative", 3, -time.Second)

	remaining, ok := cache.RemainingTTL("short")
	require.True(t, ok)
	require.LessOrEqual(t, remaining, time.Second)

	for _, key := range []string{"default", "negative"} {
		remaining, ok = cache.RemainingTTL(key)
		require.True(t, ok)
		require.Greater(t, remaining, 59*time.Minute, key)
	}

	require.True(t, cache.RefreshCreationTime("short", time.Now().Add(-2*time.Second)))
	require.Equal(t, 1, cache.RemoveExpired())
	require.False(t, cache.Contains("short"))
	require.True(t, cache.Contains("default"))
}

func TestCache_GetOption(t *testing.T) {
	cache := newTestCache[string, int](t, time.Hour, Options{})
	cache.Put("answer", 42)

	require.Equal(t, 42, cache.GetOption("answer").MustGet())
	require.True(t, cache.GetOption("question").IsAbsent())
	require.Equal(t, -1, cache.GetOption("question").OrElse(-1))
}

func TestCache_RemoveAll(t *testing.T) {
	cache := newTestCache[string, int](t, time.Hour, Options{})

	for i, key := range []string{"a", "b", "c", "d", "e"} {
		cache.Put(key, i)
	}
	require.Equal(t, 5, cache.Len())

	cache.RemoveAll()
	require.Equal(t, 0, cache.Len())
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		_, ok := cache.Get(key)
		require.False(t, ok)
	}

	cache.RemoveAll()
	require.Equal(t, 0, cache.Len())

	cache.Put("f", 6)
	require.Equal(t, 1, cache.Len())
}

func TestCache_Contains(t *testing.T) {
	cache := newTestCache[string, string](t, time.Hour, Options{})

	require.False(t, cache.Contains("k"))
	cache.Put("k", "v")
	require.True(t, cache.Contains("k"))
	cache.Remove("k")
	require.False(t, cache.Contains("k"))

	t.Run("expired entry is removed before the check", func(t *testing.T) {
		cache.Put("stale", "v")
		require.True(t, cache.RefreshCreationTime("stale", time.Now().Add(-2*time.Hour)))

		// Get doesn't check expiration.
		_, ok := cache.Get("stale")
		require.True(t, ok)

		require.False(t, cache.Contains("stale"))
		_, ok = cache.Get("stale")
		require.False(t, ok)
		require.Equal(t, 0, cache.Len())
	})
}

func TestCache_Expiration(t *testing.T) {
	t.Run("entry expires after TTL", func(t *testing.T) {
		cache, err := New[string, string](time.Second)
		require.NoError(t, err)
		defer func() { require.NoError(t, cache.Close()) }()

		cache.Put("k", "v")
		require.True(t, cache.Contains("k"))

		time.Sleep(1100 * time.Millisecond)

		require.False(t, cache.Contains("k"))
		_, ok := cache.Get("k")
		require.False(t, ok)
	})

	t.Run("background sweeper removes expired entries", func(t *testing.T) {
		cache := newTestCache[string, string](t, 50*time.Millisecond, Options{CheckInterval: 10 * time.Millisecond})

		cache.Put("a", "1")
		cache.Put("b", "2")
		cache.PutWithTTL("long", "3", time.Hour)

		require.Eventually(t, func() bool {
			return cache.Len() == 1
		}, 2*time.Second, 10*time.Millisecond)

		_, ok := cache.Get("a")
		require.False(t, ok)
		val, ok := cache.Get("long")
		require.True(t, ok)
		require.Equal(t, "3", val)
	})

	t.Run("entry is not expired while its age equals TTL", func(t *testing.T) {
		now := time.Now()
		e := newEntry("v", now, time.Second)
		require.False(t, e.expired(now.Add(time.Second)))
		require.True(t, e.expired(now.Add(time.Second+time.Nanosecond)))
	})
}

func TestCache_RemoveExpired(t *testing.T) {
	cache := newTestCache[int, int](t, time.Hour, Options{ShardsNumber: 4})

	for i := 0; i < 10; i++ {
		cache.Put(i, i)
	}
	for i := 0; i < 10; i += 2 {
		require.True(t, cache.RefreshCreationTime(i, time.Now().Add(-time.Hour-time.Second)))
	}

	require.Equal(t, 5, cache.RemoveExpired())
	require.Equal(t, 5, cache.Len())
	for i := 0; i < 10; i++ {
		_, ok := cache.Get(i)
		require.Equal(t, i%2 == 1, ok, "key %d", i)
	}

	require.Equal(t, 0, cache.RemoveExpired())
}

func TestCache_RefreshCreationTime(t *testing.T) {
	cache := newTestCache[string, string](t, time.Hour, Options{})

	require.False(t, cache.RefreshCreationTime("absent", time.Now()))
	require.True(t, cache.CreationTime("absent").IsZero())

	cache.Put("k", "v")
	putAt := cache.CreationTime("k")
	require.False(t, putAt.IsZero())

	past := time.Now().Add(-50 * time.Minute)
	require.True(t, cache.RefreshCreationTime("k", past))
	require.True(t, cache.CreationTime("k").Equal(past))
	remaining, ok := cache.RemainingTTL("k")
	require.True(t, ok)
	require.LessOrEqual(t, remaining, 10*time.Minute)

	refreshedAt := time.Now()
	require.True(t, cache.RefreshCreationTime("k", refreshedAt))
	require.False(t, cache.CreationTime("k").Before(refreshedAt))
	remaining, ok = cache.RemainingTTL("k")
	require.True(t, ok)
	require.Greater(t, remaining, 59*time.Minute)

	val, ok := cache.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", val)
}

func TestCache_RemainingTTL(t *testing.T) {
	cache := newTestCache[string, string](t, time.Hour, Options{})

	_, ok := cache.RemainingTTL("absent")
	require.False(t, ok)

	cache.Put("k", "v")
	require.True(t, cache.RefreshCreationTime("k", time.Now().Add(-2*time.Hour)))
	remaining, ok := cache.RemainingTTL("k")
	require.True(t, ok, "expired entry stays until it's swept")
	require.Zero(t, remaining)
}

func TestCache_SetDefaultTTL(t *testing.T) {
	cache := newTestCache[string, string](t, time.Hour, Options{})

	cache.Put("old", "v")
	cache.SetDefaultTTL(time.Minute)
	require.Equal(t, time.Minute, cache.DefaultTTL())
	cache.Put("new", "v")

	remaining, ok := cache.RemainingTTL("old")
	require.True(t, ok)
	require.Greater(t, remaining, 59*time.Minute, "existing entries keep their TTL")

	remaining, ok = cache.RemainingTTL("new")
	require.True(t, ok)
	require.LessOrEqual(t, remaining, time.Minute)

	cache.SetDefaultTTL(0)
	cache.SetDefaultTTL(-time.Second)
	require.Equal(t, time.Minute, cache.DefaultTTL(), "non-positive values are ignored")
}

func TestCache_SetCheckInterval(t *testing.T) {
	cache := newTestCache[string, string](t, 100*time.Millisecond, Options{CheckInterval: time.Hour})
	require.Equal(t, time.Hour, cache.CheckInterval())

	cache.SetCheckInterval(0)
	require.Equal(t, time.Hour, cache.CheckInterval(), "non-positive values are ignored")

	cache.SetCheckInterval(10 * time.Millisecond)
	require.Equal(t, 10*time.Millisecond, cache.CheckInterval())
}

func TestCache_Close(t *testing.T) {
	t.Run("close many times", func(t *testing.T) {
		cache, err := New[string, string](time.Hour)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return cache.SweeperStatus().TotalSweeps == 1
		}, time.Second, 5*time.Millisecond)
		require.True(t, cache.SweeperStatus().Running)

		require.NoError(t, cache.Close())
		require.False(t, cache.SweeperStatus().Running)
		require.NoError(t, cache.Close())
	})

	t.Run("cache is usable after close", func(t *testing.T) {
		cache, err := New[string, string](time.Hour)
		require.NoError(t, err)
		require.NoError(t, cache.Close())

		cache.Put("k", "v")
		require.True(t, cache.Contains("k"))
		require.True(t, cache.RefreshCreationTime("k", time.Now().Add(-2*time.Hour)))
		require.Equal(t, 1, cache.RemoveExpired())
		require.Equal(t, 0, cache.Len())
	})

	t.Run("graceful stop timeout exceeded", func(t *testing.T) {
		cache, err := NewWithOpts[string, string](time.Hour, Options{
			ShardsNumber:        1,
			CheckInterval:       5 * time.Millisecond,
			GracefulStopTimeout: 50 * time.Millisecond,
		})
		require.NoError(t, err)

		// The sweeper gets stuck waiting for the shard lock.
		cache.shards[0].mu.Lock()
		time.Sleep(50 * time.Millisecond)

		closeErr := cache.Close()
		testutil.RequireErrorIsAny(t, closeErr, []error{service.ErrWorkerUnitStopTimeoutExceeded})
		require.ErrorContains(t, closeErr, "stop sweeper: ")
		require.NoError(t, cache.Close(), "only the first call has an effect")

		cache.shards[0].mu.Unlock()
		require.Eventually(t, func() bool {
			return !cache.SweeperStatus().Running
		}, time.Second, 5*time.Millisecond)
	})
}

func TestCache_Concurrency(t *testing.T) {
	const (
		workersNum = 8
		keysNum    = 500
	)

	t.Run("concurrent operations keep the store consistent", func(t *testing.T) {
		cache := newTestCache[int, int](t, time.Hour, Options{CheckInterval: time.Millisecond})

		var wg sync.WaitGroup
		for w := 0; w < workersNum; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < keysNum; i++ {
					key := w*keysNum + i
					cache.Put(key, i)
					if v, ok := cache.Get(key); assert.True(t, ok) {
						assert.Equal(t, i, v)
					}
					if i%3 == 0 {
						assert.True(t, cache.Remove(key))
					}
					if i%50 == 0 {
						cache.RemoveExpired()
						cache.SetCheckInterval(time.Duration(i+1) * time.Millisecond)
					}
				}
			}(w)
		}
		wg.Wait()

		present := 0
		for key := 0; key < workersNum*keysNum; key++ {
			if _, ok := cache.Get(key); ok {
				present++
			}
		}
		require.Equal(t, present, cache.Len())
		require.Equal(t, workersNum*(keysNum-(keysNum+2)/3), present)
	})

	t.Run("entries inserted during sweeps are not removed", func(t *testing.T) {
		cache := newTestCache[int, int](t, time.Hour, Options{ShardsNumber: 2, CheckInterval: time.Hour})

		for i := 0; i < keysNum; i++ {
			cache.Put(-i-1, i)
			require.True(t, cache.RefreshCreationTime(-i-1, time.Now().Add(-2*time.Hour)))
		}

		done := make(chan struct{})
		removedTotal := make(chan int, 1)
		go func() {
			total := 0
			for {
				select {
				case <-done:
					removedTotal <- total
					return
				default:
					total += cache.RemoveExpired()
				}
			}
		}()

		var wg sync.WaitGroup
		for w := 0; w < workersNum; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < keysNum; i++ {
					cache.Put(w*keysNum+i, i)
				}
			}(w)
		}
		wg.Wait()
		close(done)

		require.Equal(t, keysNum, <-removedTotal+cache.RemoveExpired())
		require.Equal(t, workersNum*keysNum, cache.Len())
		for key := 0; key < workersNum*keysNum; key++ {
			require.True(t, cache.Contains(key))
		}
	})
}
