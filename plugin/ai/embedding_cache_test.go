package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/ai/cache"
)

// countingEmbedder counts provider calls and returns a vector derived from the text length.
type countingEmbedder struct {
	calls      atomic.Int32
	dimensions int
	model      string
	err        error
	returnDims int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	v := make([]float32, c.dimensions)
	v[0] = float32(len(text))
	return v, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	dims := c.dimensions
	if c.returnDims > 0 {
		dims = c.returnDims
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dims)
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int { return c.dimensions }
func (c *countingEmbedder) Model() string   { return c.model }

func TestCachedEmbeddingService(t *testing.T) {
	inner := &countingEmbedder{dimensions: 4, model: "nomic-embed-text"}
	c := cache.NewService(cache.ServiceConfig{Capacity: 10, CleanupInterval: time.Hour})
	defer c.Close()
	svc := NewCachedEmbeddingService(inner, c, time.Minute)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "capital of France")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "capital of France")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = svc.Embed(ctx, "another question")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	_, err = svc.EmbedBatch(ctx, []string{"capital of France"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load(), "batches bypass the cache")

	assert.Equal(t, "nomic-embed-text", svc.Model())
	assert.Equal(t, 4, svc.Dimensions())
}

func TestCachedEmbeddingService_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{dimensions: 4, model: "m", err: errors.New("down")}
	c := cache.NewService(cache.ServiceConfig{Capacity: 10, CleanupInterval: time.Hour})
	defer c.Close()
	svc := NewCachedEmbeddingService(inner, c, 0)

	_, err := svc.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Zero(t, c.Size())
}

// invalidationCounter records Invalidate calls on top of a real cache.
type invalidationCounter struct {
	*cache.Service
	invalidated []string
}

func (c *invalidationCounter) Invalidate(ctx context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	return c.Service.Invalidate(ctx, pattern)
}

func TestCachedEmbeddingService_DropsUnreadableEntry(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{dimensions: 4, model: "m"}
	c := &invalidationCounter{Service: cache.NewService(cache.ServiceConfig{Capacity: 10, CleanupInterval: time.Hour})}
	defer c.Close()
	svc := NewCachedEmbeddingService(inner, c, time.Minute)

	key := embeddingCacheKey("m", "q")
	// A vector cached while the model produced 3 dimensions.
	require.NoError(t, c.Set(ctx, key, encodeVector([]float32{1, 2, 3}), time.Minute))

	got, err := svc.Embed(ctx, "q")
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, []string{key}, c.invalidated)

	data, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Len(t, data, 16)

	_, err = svc.Embed(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Len(t, c.invalidated, 1)
}

func TestDecodeVector(t *testing.T) {
	v := []float32{1.5, -2, 0, 3.25}
	got, ok := decodeVector(encodeVector(v), 4)
	require.True(t, ok)
	assert.Equal(t, v, got)

	_, ok = decodeVector(encodeVector(v), 3)
	assert.False(t, ok)
	_, ok = decodeVector([]byte{1, 2, 3}, 0)
	assert.False(t, ok)
}

func TestVerifyEmbeddingDimensions(t *testing.T) {
	ctx := context.Background()

	t.Run("matching", func(t *testing.T) {
		err := VerifyEmbeddingDimensions(ctx, &countingEmbedder{dimensions: 768, model: "m"}, 768)
		assert.NoError(t, err)
	})

	t.Run("empty store", func(t *testing.T) {
		err := VerifyEmbeddingDimensions(ctx, &countingEmbedder{dimensions: 768, model: "m"}, 0)
		assert.NoError(t, err)
	})

	t.Run("stored vectors differ", func(t *testing.T) {
		err := VerifyEmbeddingDimensions(ctx, &countingEmbedder{dimensions: 768, model: "m"}, 1024)
		assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeConfigurationMismatch))
	})

	t.Run("provider differs", func(t *testing.T) {
		err := VerifyEmbeddingDimensions(ctx, &countingEmbedder{dimensions: 768, returnDims: 384, model: "m"}, 0)
		assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeConfigurationMismatch))
	})

	t.Run("provider rejects with mismatch error", func(t *testing.T) {
		inner := &countingEmbedder{dimensions: 768, model: "m", err: &DimensionMismatchError{Got: 384, Want: 768}}
		err := VerifyEmbeddingDimensions(ctx, inner, 0)
		assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeConfigurationMismatch))
	})

	t.Run("provider unreachable is only a warning", func(t *testing.T) {
		err := VerifyEmbeddingDimensions(ctx, &countingEmbedder{dimensions: 768, model: "m", err: errors.New("dial tcp: refused")}, 0)
		assert.NoError(t, err)
	})
}
