// Package rag answers questions from the user's notes and keeps the note index in step with note mutations.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/memory"
	"github.com/hrygo/notesrag/plugin/ai/timeout"
	"github.com/hrygo/notesrag/plugin/ai/vector"
)

const (
	DefaultUserID                   = "default"
	DefaultTopK                     = 3
	DefaultMaxConcurrentGenerations = 3
)

// Outcome classifies a finished ask.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeDegraded Outcome = "degraded"
	OutcomeNoNotes  Outcome = "no_notes"
)

// Observer is notified once per ask that produced an answer.
type Observer interface {
	ObserveAsk(outcome Outcome, elapsed time.Duration)
}

// Answer is the result of an ask. Sources is never nil.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Config tunes the orchestrator. Zero values fall back to the defaults.
type Config struct {
	TopK                     int
	MaxConcurrentGenerations int
	Generate                 ai.GenerateOptions
	Observer                 Observer
}

// Service is the question answering pipeline.
type Service struct {
	embedder ai.EmbeddingService
	llm      ai.LLMService
	index    vector.Index
	memory   *memory.Manager

	topK        int
	opts        ai.GenerateOptions
	generations *semaphore.Weighted
	observer    Observer
}

// NewService wires the pipeline.
func NewService(embedder ai.EmbeddingService, llm ai.LLMService, index vector.Index, mem *memory.Manager, cfg Config) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = DefaultMaxConcurrentGenerations
	}
	if cfg.Generate.MaxTokens <= 0 {
		cfg.Generate.MaxTokens = ai.DefaultMaxTokens
	}
	if cfg.Generate.Temperature <= 0 {
		cfg.Generate.Temperature = ai.DefaultTemperature
	}
	if cfg.Generate.TopP <= 0 {
		cfg.Generate.TopP = ai.DefaultTopP
	}
	return &Service{
		embedder:    embedder,
		llm:         llm,
		index:       index,
		memory:      mem,
		topK:        cfg.TopK,
		opts:        cfg.Generate,
		generations: semaphore.NewWeighted(int64(cfg.MaxConcurrentGenerations)),
		observer:    cfg.Observer,
	}
}

// Answer answers question from the notes most similar to it.
//
// Embedding and generation failures are not errors: they produce a fixed degraded answer and
// leave the user's memory untouched. An error is returned only for an empty question, a failed
// vector search or a cancelled context, and in every such case nothing is recorded.
func (s *Service) Answer(ctx context.Context, question, userID string) (*Answer, error) {
	start := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, aierrors.InvalidArgument("question is required")
	}
	if userID == "" {
		userID = DefaultUserID
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count note vectors: %w", err)
	}
	if count == 0 {
		return s.finish(OutcomeNoNotes, start, NoNotesAnswer), nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	queryVector, err := s.embedder.Embed(embedCtx, question)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, aierrors.ContextCanceled(ctxErr)
		}
		slog.WarnContext(ctx, "question embedding failed",
			"code", aierrors.ErrCodeEmbeddingUnavailable,
			"user_id", userID,
			"error", err,
		)
		return s.finish(OutcomeDegraded, start, EmbeddingFailedAnswer), nil
	}

	var (
		results []vector.Result
		recent  []memory.Turn
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results, err = s.index.Search(gctx, queryVector, s.topK)
		return err
	})
	g.Go(func() error {
		recent = s.memory.Recent(userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, aierrors.ContextCanceled(ctxErr)
		}
		return nil, fmt.Errorf("search notes: %w", err)
	}
	if len(results) == 0 {
		return s.finish(OutcomeNoNotes, start, NoNotesAnswer), nil
	}

	text, err := s.generate(ctx, BuildMessages(question, results, recent))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, aierrors.ContextCanceled(ctxErr)
		}
		slog.WarnContext(ctx, "answer generation failed",
			"code", aierrors.ErrCodeGenerationUnavailable,
			"user_id", userID,
			"error", err,
		)
		return s.finish(OutcomeDegraded, start, GenerationFailedAnswer), nil
	}

	// A caller that has gone away must not leave a half-delivered exchange in memory.
	if err := ctx.Err(); err != nil {
		return nil, aierrors.ContextCanceled(err)
	}
	s.memory.Record(userID, question, true, memory.DefaultConversationID)
	s.memory.Record(userID, text, false, memory.DefaultConversationID)

	answer := s.finish(OutcomeAnswered, start, text)
	answer.Sources = lo.Map(results, func(r vector.Result, _ int) string {
		return FormatSource(r)
	})
	return answer, nil
}

// AnalyzeNote asks the model for topics, key information, suggested tags and a summary of a note.
func (s *Service) AnalyzeNote(ctx context.Context, title, content string) (string, error) {
	text, err := s.generate(ctx, BuildAnalysisMessages(title, content))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", aierrors.ContextCanceled(ctxErr)
		}
		return "", aierrors.GenerationUnavailable("note analysis failed", err)
	}
	return text, nil
}

func (s *Service) generate(ctx context.Context, messages []ai.Message) (string, error) {
	if err := s.generations.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.generations.Release(1)

	ctx, cancel := context.WithTimeout(ctx, timeout.GenerationTimeout)
	defer cancel()

	text, err := s.llm.Generate(ctx, messages, s.opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

func (s *Service) finish(outcome Outcome, start time.Time, text string) *Answer {
	if s.observer != nil {
		s.observer.ObserveAsk(outcome, time.Since(start))
	}
	return &Answer{Answer: text, Sources: []string{}}
}
