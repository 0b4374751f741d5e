package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/notesrag/internal/profile"
)

func TestGenerateCacheKey(t *testing.T) {
	key := GenerateCacheKey("embedding", "nomic-embed-text", "what is the capital of France?")
	assert.Equal(t, "embedding:nomic-embed-text:"+KeyHash("what is the capital of France?"), key)
	assert.Len(t, KeyHash("anything"), 16)
	assert.Equal(t, GenerateCacheKey("a", "b"), GenerateCacheKey("a", "b"))
	assert.NotEqual(t, GenerateCacheKey("a", "b"), GenerateCacheKey("a", "c"))
	assert.Empty(t, GenerateCacheKey())
}

func TestNilRedisCache(t *testing.T) {
	ctx := context.Background()
	c := NewNilRedisCache()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	c.Delete(ctx, "k")
	assert.NoError(t, c.Close())
}

func TestNewL2Disabled(t *testing.T) {
	l2, err := NewL2(context.Background(), &profile.Profile{})
	require.NoError(t, err)
	assert.IsType(t, &NilRedisCache{}, l2)
}

func TestRedisConfigFromProfile(t *testing.T) {
	config := RedisConfigFromProfile(&profile.Profile{RedisAddr: "redis:6379", RedisPassword: "secret", RedisDB: 2})
	assert.Equal(t, "redis:6379", config.Addr)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, 2, config.DB)
	assert.Equal(t, "notesrag:", config.KeyPrefix)
}

// TestRedisCache runs against a live server when NOTESRAG_TEST_REDIS_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("NOTESRAG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NOTESRAG_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	config := DefaultRedisConfig()
	config.Addr = addr
	config.KeyPrefix = "notesrag-test:"
	c, err := NewRedisCache(ctx, config)
	require.NoError(t, err)
	defer c.Close()

	c.Set(ctx, "embedding:a", []byte("vector-a"), time.Minute)
	c.Set(ctx, "embedding:b", []byte("vector-b"), time.Minute)

	got, ok := c.Get(ctx, "embedding:a")
	require.True(t, ok)
	assert.Equal(t, []byte("vector-a"), got)

	c.Delete(ctx, "embedding:a")
	_, ok = c.Get(ctx, "embedding:a")
	assert.False(t, ok)

	c.DeletePrefix(ctx, "embedding:")
	_, ok = c.Get(ctx, "embedding:b")
	assert.False(t, ok)
}
