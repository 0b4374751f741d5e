package rag

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/memory"
	"github.com/hrygo/notesrag/plugin/ai/vector"
)

const (
	// SystemPrompt instructs the model to answer from the supplied notes only.
	SystemPrompt = "You are a helpful assistant that answers questions based on provided notes. Be concise and accurate."

	questionTemplate = "Based on the following notes, please answer the question: '%s'\n\nNotes:\n%s\n\n" +
		"Please provide a helpful answer based on the information in the notes. " +
		"If the answer cannot be found in the notes, please say so clearly."

	// AnalysisSystemPrompt is used by AnalyzeNote.
	AnalysisSystemPrompt = "You are a note analysis assistant. Analyze the provided note and extract key information, " +
		"topics, and insights. Provide a structured analysis."

	analysisTemplate = "Analyze the following note and provide:\n" +
		"1. Key topics and themes\n" +
		"2. Important information\n" +
		"3. Suggested tags\n" +
		"4. Summary\n\n" +
		"Note: %s"
)

// Fixed user-visible answers.
const (
	NoNotesAnswer          = "I don't have any notes to search through. Please add some notes first."
	GenerationFailedAnswer = "Sorry, I encountered an error while processing your question."
	EmbeddingFailedAnswer  = "Sorry, I couldn't search your notes right now. Please try again later."
)

// historyTurns is how many recent turns are replayed into the prompt.
const historyTurns = 4

// BuildContext renders retrieved notes as labeled blocks in rank order.
func BuildContext(results []vector.Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Note '%s': %s", r.Title, r.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatSource renders one provenance line.
func FormatSource(r vector.Result) string {
	return fmt.Sprintf("Note %d: %s (similarity: %.2f)", r.NoteID, r.Title, r.Similarity)
}

// BuildMessages assembles the generation prompt: the system instruction, the tail of the
// recency window, then the question with its notes.
func BuildMessages(question string, results []vector.Result, recent []memory.Turn) []ai.Message {
	if len(recent) > historyTurns {
		recent = recent[len(recent)-historyTurns:]
	}
	history := lo.Map(recent, func(turn memory.Turn, _ int) ai.Message {
		if turn.IsUser {
			return ai.UserMessage(turn.Text)
		}
		return ai.AssistantMessage(turn.Text)
	})
	return ai.FormatMessages(SystemPrompt, fmt.Sprintf(questionTemplate, question, BuildContext(results)), history)
}

// BuildAnalysisMessages assembles the note analysis prompt.
func BuildAnalysisMessages(title, content string) []ai.Message {
	text := content
	if title != "" {
		text = title + "\n\n" + content
	}
	return ai.FormatMessages(AnalysisSystemPrompt, fmt.Sprintf(analysisTemplate, text), nil)
}
