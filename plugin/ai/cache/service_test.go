package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_BasicOperations(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)

	t.Run("SetAndGet", func(t *testing.T) {
		cache.Set("key1", []byte("value1"), 0)

		val, ok := cache.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, []byte("value1"), val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := cache.Get("nonexistent")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		cache.Set("key2", []byte("original"), 0)
		cache.Set("key2", []byte("updated"), 0)

		val, ok := cache.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, []byte("updated"), val)
		assert.Equal(t, 2, cache.Size())
	})
}

func TestLRUCache_Expiration(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)
	cache.Set("expiring", []byte("value"), 50*time.Millisecond)

	_, ok := cache.Get("expiring")
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	val, ok := cache.Get("expiring")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Set("key1", []byte("1"), 0)
	cache.Set("key2", []byte("2"), 0)
	cache.Set("key3", []byte("3"), 0)

	// key1 becomes most recently used, so key2 is the eviction victim.
	cache.Get("key1")
	cache.Set("key4", []byte("4"), 0)

	assert.Equal(t, 3, cache.Size())
	assert.Equal(t, uint64(1), cache.Evictions())
	_, ok := cache.Get("key2")
	assert.False(t, ok)
	_, ok = cache.Get("key1")
	assert.True(t, ok)
}

func TestLRUCache_Invalidate(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)

	t.Run("ExactMatch", func(t *testing.T) {
		cache.Set("embedding:a", []byte("1"), 0)
		cache.Set("embedding:b", []byte("2"), 0)

		assert.Equal(t, 1, cache.Invalidate("embedding:a"))
		_, ok := cache.Get("embedding:a")
		assert.False(t, ok)
		_, ok = cache.Get("embedding:b")
		assert.True(t, ok)
	})

	t.Run("WildcardPattern", func(t *testing.T) {
		cache.Clear()
		cache.Set("embedding:nomic:1", []byte("1"), 0)
		cache.Set("embedding:nomic:2", []byte("2"), 0)
		cache.Set("embedding:bge:1", []byte("3"), 0)

		assert.Equal(t, 2, cache.Invalidate("embedding:nomic:*"))
		_, ok := cache.Get("embedding:bge:1")
		assert.True(t, ok)
	})
}

func TestLRUCache_CleanupExpired(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)
	cache.Set("short", []byte("1"), 10*time.Millisecond)
	cache.Set("long", []byte("2"), time.Minute)

	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, cache.CleanupExpired())
	assert.Equal(t, 1, cache.Size())
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			cache.Set(fmt.Sprintf("k%d", n%26), []byte{byte(n)}, 0)
		}(i)
		go func(n int) {
			defer wg.Done()
			cache.Get(fmt.Sprintf("k%d", n%26))
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Size(), 10)
}

// fakeL2 records what reaches the shared tier.
type fakeL2 struct {
	mu     sync.Mutex
	values map[string][]byte
	closed bool
}

func newFakeL2() *fakeL2 {
	return &fakeL2{values: map[string][]byte{}}
}

func (f *fakeL2) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeL2) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeL2) Delete(_ context.Context, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
}

func (f *fakeL2) DeletePrefix(_ context.Context, prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.values {
		if strings.HasPrefix(k, prefix) {
			delete(f.values, k)
		}
	}
}

func (f *fakeL2) Close() error {
	f.closed = true
	return nil
}

func TestService_BasicOperations(t *testing.T) {
	svc := NewService(ServiceConfig{
		Capacity:        100,
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Hour,
	})
	defer svc.Close()

	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "key1", []byte("value1"), 0))
	val, ok := svc.Get(ctx, "key1")
	assert.True(t, ok)
	assert.Equal(t, []byte("value1"), val)

	require.NoError(t, svc.Set(ctx, "embedding:m:1", []byte("data"), 0))
	require.NoError(t, svc.Invalidate(ctx, "embedding:m:*"))
	_, ok = svc.Get(ctx, "embedding:m:1")
	assert.False(t, ok)

	stats := svc.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestService_L2(t *testing.T) {
	l2 := newFakeL2()
	svc := NewService(ServiceConfig{Capacity: 10, CleanupInterval: time.Hour, L2: l2})
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "shared", []byte("v"), 0))
	_, ok := l2.Get(ctx, "shared")
	assert.True(t, ok, "writes go through to the L2")

	l2.Set(ctx, "warm", []byte("from-l2"), 0)
	val, ok := svc.Get(ctx, "warm")
	require.True(t, ok)
	assert.Equal(t, []byte("from-l2"), val)
	assert.Equal(t, uint64(1), svc.Stats().L2Hits)
	assert.Equal(t, 2, svc.Size(), "an L2 hit is promoted into the LRU")

	require.NoError(t, svc.Invalidate(ctx, "shared"))
	_, ok = l2.Get(ctx, "shared")
	assert.False(t, ok)

	require.NoError(t, svc.Invalidate(ctx, "wa*"))
	_, ok = l2.Get(ctx, "warm")
	assert.False(t, ok)

	require.NoError(t, svc.Close())
	assert.True(t, l2.closed)
}

func TestService_CleanupExpired(t *testing.T) {
	svc := NewService(ServiceConfig{
		Capacity:        100,
		DefaultTTL:      50 * time.Millisecond,
		CleanupInterval: 30 * time.Millisecond,
	})
	defer svc.Close()

	_ = svc.Set(context.Background(), "temp", []byte("data"), 50*time.Millisecond)
	assert.Equal(t, 1, svc.Size())

	assert.Eventually(t, func() bool { return svc.Size() == 0 }, time.Second, 20*time.Millisecond)
}
