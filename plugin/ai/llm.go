package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// GenerateOptions tunes a single generation. Zero fields fall back to the configured defaults.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ModelInfo describes the configured models and what the provider serves.
type ModelInfo struct {
	AvailableModels    []string `json:"available_models"`
	ChatModel          string   `json:"chat_model"`
	EmbeddingModel     string   `json:"embedding_model,omitempty"`
	EmbeddingDimension int      `json:"embedding_dimension,omitempty"`
	BaseURL            string   `json:"base_url"`
	Error              string   `json:"error,omitempty"`
}

// ErrEmptyResponse is returned when the model answers with no usable text.
var ErrEmptyResponse = errors.New("empty response")

// LLMService is the LLM service interface.
type LLMService interface {
	// Generate sends messages in order and returns the completion text.
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)

	// Chat is Generate with the configured defaults.
	Chat(ctx context.Context, messages []Message) (string, error)

	// IsAvailable reports whether the provider answers a model listing.
	IsAvailable(ctx context.Context) bool

	// ModelInfo lists served models. Failures are reported in ModelInfo.Error.
	ModelInfo(ctx context.Context) ModelInfo
}

// modelLister is the slice of the OpenAI-compatible API used for status checks.
type modelLister interface {
	ListModels(ctx context.Context) (goopenai.ModelsList, error)
}

type llmService struct {
	model    llms.Model
	lister   modelLister
	name     string
	baseURL  string
	defaults GenerateOptions
}

// NewLLMService creates a new LLMService.
func NewLLMService(cfg *LLMConfig) (LLMService, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case "deepseek":
		// DeepSeek is compatible with OpenAI API
		model, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
		)

	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	listURL := modelListURL(cfg)
	listConfig := goopenai.DefaultConfig(cfg.APIKey)
	listConfig.BaseURL = listURL

	return &llmService{
		model:   model,
		lister:  goopenai.NewClientWithConfig(listConfig),
		name:    cfg.Model,
		baseURL: listURL,
		defaults: GenerateOptions{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		},
	}, nil
}

// modelListURL returns the OpenAI-compatible API root of the provider.
func modelListURL(cfg *LLMConfig) string {
	switch cfg.Provider {
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return strings.TrimRight(base, "/") + "/v1"
	default:
		if cfg.BaseURL != "" {
			return strings.TrimRight(cfg.BaseURL, "/")
		}
		return "https://api.openai.com/v1"
	}
}

func (s *llmService) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	resp, err := s.model.GenerateContent(ctx, convertMessages(messages), s.callOptions(opts)...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func (s *llmService) Chat(ctx context.Context, messages []Message) (string, error) {
	return s.Generate(ctx, messages, GenerateOptions{})
}

func (s *llmService) callOptions(opts GenerateOptions) []llms.CallOption {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = s.defaults.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = s.defaults.Temperature
	}
	if opts.TopP <= 0 {
		opts.TopP = s.defaults.TopP
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(opts.TopP))
	}
	return callOpts
}

func (s *llmService) IsAvailable(ctx context.Context) bool {
	_, err := s.lister.ListModels(ctx)
	return err == nil
}

func (s *llmService) ModelInfo(ctx context.Context) ModelInfo {
	info := ModelInfo{
		AvailableModels: []string{},
		ChatModel:       s.name,
		BaseURL:         s.baseURL,
	}
	list, err := s.lister.ListModels(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	for _, m := range list.Models {
		info.AvailableModels = append(info.AvailableModels, m.ID)
	}
	return info
}

func convertMessages(messages []Message) []llms.MessageContent {
	llmMessages := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		}

		llmMessages[i] = llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		}
	}
	return llmMessages
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// FormatMessages builds system prompt, history, then the user content, in that order.
func FormatMessages(systemPrompt string, userContent string, history []Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, SystemPrompt(systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, UserMessage(userContent))
	return messages
}
