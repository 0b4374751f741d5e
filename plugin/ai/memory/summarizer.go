package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/notesrag/plugin/ai"
)

// ConversationSystemPrompt frames every conversation-level model call.
const ConversationSystemPrompt = "You are a helpful assistant for a notes application. " +
	"You help users manage their notes and answer questions about them. " +
	"Maintain a friendly and professional tone."

const summaryPromptTemplate = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary.

Current summary:
%s

New lines of conversation:
%s

New summary:`

// Summarizer folds new turns into a running summary.
type Summarizer interface {
	Summarize(ctx context.Context, prior string, turns []Turn) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, prior string, turns []Turn) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, prior string, turns []Turn) (string, error) {
	return f(ctx, prior, turns)
}

// LLMSummarizer summarizes with the generation model.
type LLMSummarizer struct {
	llm ai.LLMService
}

func NewLLMSummarizer(llm ai.LLMService) *LLMSummarizer {
	return &LLMSummarizer{llm: llm}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, prior string, turns []Turn) (string, error) {
	messages := []ai.Message{
		ai.SystemPrompt(ConversationSystemPrompt),
		ai.UserMessage(BuildSummaryPrompt(prior, turns)),
	}
	summary, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	return summary, nil
}

// BuildSummaryPrompt renders the progressive summary request.
func BuildSummaryPrompt(prior string, turns []Turn) string {
	var lines strings.Builder
	for i, t := range turns {
		if i > 0 {
			lines.WriteByte('\n')
		}
		speaker := "AI"
		if t.IsUser {
			speaker = "Human"
		}
		lines.WriteString(speaker + ": " + t.Text)
	}
	return fmt.Sprintf(summaryPromptTemplate, prior, lines.String())
}
