// Package memory keeps per-user conversation state: a recency window, a capped turn log,
// a cached running summary and a free-form context map.
package memory

import "time"

// DefaultConversationID is used when a turn is recorded without a conversation.
const DefaultConversationID = "default"

// Turn is one recorded message.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	Text           string    `json:"message"`
	IsUser         bool      `json:"is_user"`

	seq uint64
}

// Stats summarizes a user's turn log.
type Stats struct {
	TotalMessages int        `json:"total_messages"`
	Conversations int        `json:"conversations"`
	LastActivity  *time.Time `json:"last_activity"`
}

// Export is a snapshot of everything kept for a user.
type Export struct {
	UserID        string         `json:"user_id"`
	Conversations []Turn         `json:"conversations"`
	Context       map[string]any `json:"context"`
	Stats         Stats          `json:"stats"`
	ExportedAt    time.Time      `json:"exported_at"`
}

// appendCapped appends t and drops the oldest entries beyond limit.
func appendCapped(turns []Turn, t Turn, limit int) []Turn {
	turns = append(turns, t)
	if over := len(turns) - limit; over > 0 {
		// Copy so the backing array does not grow without bound.
		turns = append(make([]Turn, 0, limit), turns[over:]...)
	}
	return turns
}
