package ai

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/hrygo/notesrag/plugin/ai/cache"
	storecache "github.com/hrygo/notesrag/store/cache"
)

// DefaultEmbeddingCacheTTL bounds how long a query vector is reused.
const DefaultEmbeddingCacheTTL = time.Hour

type cachedEmbeddingService struct {
	EmbeddingService
	cache cache.CacheService
	ttl   time.Duration
}

// NewCachedEmbeddingService wraps svc so that repeated Embed calls for the same text
// are served from c. Batch embedding is never cached.
func NewCachedEmbeddingService(svc EmbeddingService, c cache.CacheService, ttl time.Duration) EmbeddingService {
	if ttl <= 0 {
		ttl = DefaultEmbeddingCacheTTL
	}
	return &cachedEmbeddingService{EmbeddingService: svc, cache: c, ttl: ttl}
}

func (s *cachedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embeddingCacheKey(s.Model(), text)
	if data, ok := s.cache.Get(ctx, key); ok {
		if vector, ok := decodeVector(data, s.Dimensions()); ok {
			return vector, nil
		}
		// Written under another dimension or corrupted.
		if err := s.cache.Invalidate(ctx, key); err != nil {
			slog.Warn("failed to drop unreadable cached embedding", "model", s.Model(), "error", err)
		}
	}

	vector, err := s.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, encodeVector(vector), s.ttl); err != nil {
		slog.Warn("failed to cache query embedding", "model", s.Model(), "error", err)
	}
	return vector, nil
}

func embeddingCacheKey(model, text string) string {
	return storecache.GenerateCacheKey("embedding", model, text)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

// decodeVector rejects payloads that do not hold exactly dims floats.
func decodeVector(data []byte, dims int) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 || (dims > 0 && len(data)/4 != dims) {
		return nil, false
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, true
}
