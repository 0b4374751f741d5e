package ai

import (
	"errors"

	"github.com/hrygo/notesrag/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // ollama, openai, siliconflow
	Model      string // nomic-embed-text
	Dimensions int    // 768
	APIKey     string
	BaseURL    string
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string // ollama, openai, deepseek
	Model       string // phi3:mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 500
	Temperature float64 // default: 0.7
	TopP        float64 // default: 0.9
}

const (
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7
	DefaultTopP        = 0.9
)

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{}

	cfg.Embedding = EmbeddingConfig{
		Provider:   p.AIEmbeddingProvider,
		Model:      p.AIEmbeddingModel,
		Dimensions: p.AIEmbeddingDimension,
	}
	switch p.AIEmbeddingProvider {
	case "siliconflow":
		cfg.Embedding.APIKey = p.AISiliconFlowAPIKey
		cfg.Embedding.BaseURL = p.AISiliconFlowBaseURL
	case "openai":
		cfg.Embedding.APIKey = p.AIOpenAIAPIKey
		cfg.Embedding.BaseURL = p.AIOpenAIBaseURL
	case "ollama":
		cfg.Embedding.BaseURL = p.AIOllamaBaseURL
	}

	cfg.LLM = LLMConfig{
		Provider:    p.AILLMProvider,
		Model:       p.AILLMModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
	switch p.AILLMProvider {
	case "deepseek":
		cfg.LLM.APIKey = p.AIDeepSeekAPIKey
		cfg.LLM.BaseURL = p.AIDeepSeekBaseURL
	case "openai":
		cfg.LLM.APIKey = p.AIOpenAIAPIKey
		cfg.LLM.BaseURL = p.AIOpenAIBaseURL
	case "ollama":
		cfg.LLM.BaseURL = p.AIOllamaBaseURL
	}

	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	if c.Embedding.Provider != "ollama" && c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}

	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	return nil
}
