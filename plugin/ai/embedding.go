package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int

	// Model returns the embedding model name. Stored vectors are tagged with it.
	Model() string
}

type embeddingService struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
}

// NewEmbeddingService creates a new EmbeddingService.
func NewEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	var embedder embeddings.Embedder

	switch cfg.Provider {
	case "siliconflow", "openai":
		// SiliconFlow is compatible with OpenAI API
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		embedder = &openaiEmbedder{
			client:     openai.NewClientWithConfig(clientConfig),
			model:      cfg.Model,
			dimensions: cfg.Dimensions,
		}

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		embedder, err = embeddings.NewEmbedder(client)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return &embeddingService{
		embedder:   embedder,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, errors.New("empty embedding result")
	}
	if err := s.checkDimensions(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for _, v := range vectors {
		if err := s.checkDimensions(v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}

func (s *embeddingService) Model() string {
	return s.model
}

// ErrDimensionMismatch is returned when the provider answers with vectors of an unexpected size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DimensionMismatchError carries the sizes of a rejected vector. It matches ErrDimensionMismatch.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: got %d, configured %d", ErrDimensionMismatch, e.Got, e.Want)
}

func (*DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func (s *embeddingService) checkDimensions(vector []float32) error {
	if s.dimensions > 0 && len(vector) != s.dimensions {
		return &DimensionMismatchError{Got: len(vector), Want: s.dimensions}
	}
	return nil
}

// openaiEmbedder adapts the OpenAI-compatible embeddings endpoint to embeddings.Embedder.
type openaiEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

func (e *openaiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}

func (e *openaiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
