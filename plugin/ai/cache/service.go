package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	storecache "github.com/hrygo/notesrag/store/cache"
)

// ServiceConfig configures the cache service.
type ServiceConfig struct {
	Capacity        int           // Maximum number of L1 entries (default: 1000)
	DefaultTTL      time.Duration // Default TTL for entries (default: 5 minutes)
	CleanupInterval time.Duration // Interval for expired entry cleanup (default: 1 minute)
	L2              storecache.L2 // Optional shared cache, nil disables
}

// DefaultServiceConfig returns default cache service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Capacity:        1000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Service implements CacheService with an LRU in front of an optional L2.
type Service struct {
	lru *LRUCache
	l2  storecache.L2

	hits   atomic.Uint64
	l2Hits atomic.Uint64
	misses atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupInterval time.Duration
}

// NewService creates a new cache service and starts its cleanup loop.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.L2 == nil {
		cfg.L2 = storecache.NewNilRedisCache()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		lru:             NewLRUCache(cfg.Capacity, cfg.DefaultTTL),
		l2:              cfg.L2,
		ctx:             ctx,
		cancel:          cancel,
		cleanupInterval: cfg.CleanupInterval,
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Close stops the cleanup loop and closes the L2.
func (s *Service) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.l2.Close()
}

func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := s.lru.Get(key); ok {
		s.hits.Add(1)
		return value, true
	}
	if value, ok := s.l2.Get(ctx, key); ok {
		s.l2Hits.Add(1)
		s.lru.Set(key, value, 0)
		return value, true
	}
	s.misses.Add(1)
	return nil, false
}

func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Set(key, value, ttl)
	s.l2.Set(ctx, key, value, ttl)
	return nil
}

// Invalidate removes matching entries from both tiers. Prefix patterns only reach the L2
// when it supports prefix deletion.
func (s *Service) Invalidate(ctx context.Context, pattern string) error {
	s.lru.Invalidate(pattern)
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		if p, ok := s.l2.(interface {
			DeletePrefix(ctx context.Context, prefix string)
		}); ok {
			p.DeletePrefix(ctx, prefix)
		}
		return nil
	}
	s.l2.Delete(ctx, pattern)
	return nil
}

func (s *Service) Size() int {
	return s.lru.Size()
}

func (s *Service) Stats() Stats {
	return Stats{
		Size:      s.lru.Size(),
		Hits:      s.hits.Load(),
		L2Hits:    s.l2Hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.lru.Evictions(),
	}
}

func (s *Service) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.lru.CleanupExpired()
		}
	}
}

var _ CacheService = (*Service)(nil)
