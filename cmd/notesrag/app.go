package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/notesrag/internal/profile"
	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/cache"
	"github.com/hrygo/notesrag/plugin/ai/memory"
	"github.com/hrygo/notesrag/plugin/ai/rag"
	"github.com/hrygo/notesrag/plugin/ai/timeout"
	"github.com/hrygo/notesrag/plugin/ai/vector"
	"github.com/hrygo/notesrag/server"
	"github.com/hrygo/notesrag/server/observability"
	ratelimit "github.com/hrygo/notesrag/server/middleware"
	v1 "github.com/hrygo/notesrag/server/router/api/v1"
	"github.com/hrygo/notesrag/server/runner/embedding"
	"github.com/hrygo/notesrag/server/service/note"
	"github.com/hrygo/notesrag/store"
	storecache "github.com/hrygo/notesrag/store/cache"
	"github.com/hrygo/notesrag/store/db"
)

const (
	// Ask requests per second per user, and the burst allowed on top.
	askRate  = 1
	askBurst = 5

	metricsSamples = 1000
)

type app struct {
	store  *store.Store
	cache  *cache.Service
	runner *embedding.Runner
	server *server.Server
}

// newApp opens the store, connects the AI providers and assembles the HTTP server.
func newApp(ctx context.Context, p *profile.Profile, logger *slog.Logger) (*app, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	s := store.New(dbDriver, p)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}

	a := &app{store: s}
	if err := a.wire(ctx, p, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, p *profile.Profile, logger *slog.Logger) error {
	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return errors.Wrap(err, "invalid AI configuration")
	}

	l2, err := storecache.NewL2(ctx, p)
	if err != nil {
		return errors.Wrap(err, "failed to connect redis")
	}
	cacheConfig := cache.DefaultServiceConfig()
	cacheConfig.L2 = l2
	a.cache = cache.NewService(cacheConfig)

	rawEmbedder, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		return errors.Wrap(err, "failed to create embedding service")
	}
	stored, err := a.store.GetEmbeddingDimensions(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read stored embedding dimensions")
	}
	if err := ai.VerifyEmbeddingDimensions(ctx, rawEmbedder, stored); err != nil {
		return err
	}
	embedder := ai.NewCachedEmbeddingService(rawEmbedder, a.cache, ai.DefaultEmbeddingCacheTTL)

	llm, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return errors.Wrap(err, "failed to create llm service")
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout.ProbeTimeout)
	if llm.IsAvailable(probeCtx) {
		logger.Info("llm provider reachable", "provider", aiConfig.LLM.Provider, "model", aiConfig.LLM.Model)
	} else {
		logger.Warn("llm provider unreachable, answers will degrade until it is back",
			"provider", aiConfig.LLM.Provider,
			"base_url", aiConfig.LLM.BaseURL,
		)
	}
	cancel()

	var index vector.Index
	switch p.VectorBackend {
	case profile.VectorBackendMemory:
		index, err = vector.NewChromemIndex(a.store)
		if err != nil {
			return errors.Wrap(err, "failed to create in-memory vector index")
		}
	default:
		index = vector.NewStoreIndex(a.store, aiConfig.Embedding.Model)
	}

	mem := memory.NewManager(memory.NewLLMSummarizer(llm), memory.Config{
		Window: p.MemoryWindow,
		LogCap: p.MemoryLogCap,
	})
	metrics := observability.NewMetrics(metricsSamples)
	ragService := rag.NewService(embedder, llm, index, mem, rag.Config{
		TopK:                     p.TopK,
		MaxConcurrentGenerations: p.MaxConcurrentGenerations,
		Generate: ai.GenerateOptions{
			MaxTokens:   aiConfig.LLM.MaxTokens,
			Temperature: aiConfig.LLM.Temperature,
			TopP:        aiConfig.LLM.TopP,
		},
		Observer: metrics,
	})
	indexer := rag.NewIndexer(rawEmbedder, index)
	a.runner = embedding.NewRunner(indexer, embedding.DefaultInterval, embedding.DefaultBatchSize)

	api := &v1.APIV1Service{
		Profile:     p,
		NoteService: note.NewService(a.store, indexer),
		RAGService:  ragService,
		Memory:      mem,
		LLMService:  llm,
		Embedding:   rawEmbedder,
		Metrics:     metrics,
		RateLimiter: ratelimit.NewRateLimiter(rate.Limit(askRate), askBurst),
	}
	a.server = server.NewServer(p, api, a.runner, logger)

	logger.Info("notesrag ready",
		"version", p.Version,
		"driver", p.Driver,
		"vector_backend", p.VectorBackend,
		"embedding_model", aiConfig.Embedding.Model,
		"llm_model", aiConfig.LLM.Model,
	)
	return nil
}

// Close releases the cache and the database.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}
