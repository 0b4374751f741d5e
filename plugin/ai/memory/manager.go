package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/samber/lo"
)

const (
	DefaultWindow = 10
	DefaultLogCap = 100
)

// Config sizes the per-user buffers.
type Config struct {
	Window int // recency window, in turns
	LogCap int // full turn log, in turns
}

// Manager owns the conversation state of every user in the process.
// Operations on one user are serialized; different users never contend beyond the registry.
type Manager struct {
	mu    sync.RWMutex
	users map[string]*userState

	window     int
	logCap     int
	summarizer Summarizer
	now        func() time.Time
}

type userState struct {
	mu      sync.Mutex
	seq     uint64
	window  []Turn
	log     []Turn
	pending []Turn // recorded since the last successful summary
	summary string
	context map[string]any
	dropped bool

	// summarizing serializes summary refreshes without blocking Record.
	summarizing sync.Mutex
}

// NewManager creates a manager. Non-positive sizes fall back to the defaults.
func NewManager(summarizer Summarizer, cfg Config) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = DefaultLogCap
	}
	return &Manager{
		users:      make(map[string]*userState),
		window:     cfg.Window,
		logCap:     cfg.LogCap,
		summarizer: summarizer,
		now:        time.Now,
	}
}

// lookup returns the user's state or nil. It never creates one.
func (m *Manager) lookup(userID string) *userState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[userID]
}

// lockState returns the user's live state, created if absent, with its lock held.
func (m *Manager) lockState(userID string) *userState {
	for {
		st := m.lookup(userID)
		if st == nil {
			m.mu.Lock()
			st = m.users[userID]
			if st == nil {
				st = &userState{context: map[string]any{}}
				m.users[userID] = st
			}
			m.mu.Unlock()
		}

		st.mu.Lock()
		if !st.dropped {
			return st
		}
		// Cleared between lookup and lock; the registry already holds a fresh state or none.
		st.mu.Unlock()
	}
}

// lockExisting returns the user's live state with its lock held, or nil when the user is absent.
func (m *Manager) lockExisting(userID string) *userState {
	for {
		st := m.lookup(userID)
		if st == nil {
			return nil
		}
		st.mu.Lock()
		if !st.dropped {
			return st
		}
		st.mu.Unlock()
	}
}

// Record appends a turn to the user's recency window and log and marks the summary stale.
func (m *Manager) Record(userID, text string, isUser bool, conversationID string) Turn {
	if conversationID == "" {
		conversationID = DefaultConversationID
	}

	st := m.lockState(userID)
	defer st.mu.Unlock()

	st.seq++
	turn := Turn{
		ID:             shortuuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Timestamp:      m.now().UTC(),
		Text:           text,
		IsUser:         isUser,
		seq:            st.seq,
	}
	st.window = appendCapped(st.window, turn, m.window)
	st.log = appendCapped(st.log, turn, m.logCap)
	st.pending = appendCapped(st.pending, turn, m.logCap)
	return turn
}

// Recent returns the recency window, oldest first.
func (m *Manager) Recent(userID string) []Turn {
	st := m.lockExisting(userID)
	if st == nil {
		return []Turn{}
	}
	defer st.mu.Unlock()
	return append([]Turn{}, st.window...)
}

// History returns the last limit turns of a conversation, oldest first. limit <= 0 returns all.
func (m *Manager) History(userID, conversationID string, limit int) []Turn {
	if conversationID == "" {
		conversationID = DefaultConversationID
	}
	st := m.lockExisting(userID)
	if st == nil {
		return []Turn{}
	}
	defer st.mu.Unlock()

	turns := lo.Filter(st.log, func(t Turn, _ int) bool {
		return t.ConversationID == conversationID
	})
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}

// Stats summarizes the user's turn log. An unknown user has zero stats.
func (m *Manager) Stats(userID string) Stats {
	st := m.lockExisting(userID)
	if st == nil {
		return Stats{}
	}
	defer st.mu.Unlock()
	return st.stats()
}

func (st *userState) stats() Stats {
	if len(st.log) == 0 {
		return Stats{}
	}
	ids := lo.Uniq(lo.Map(st.log, func(t Turn, _ int) string { return t.ConversationID }))
	last := lo.MaxBy(st.log, func(a, b Turn) bool { return a.Timestamp.After(b.Timestamp) }).Timestamp
	return Stats{
		TotalMessages: len(st.log),
		Conversations: len(ids),
		LastActivity:  &last,
	}
}

// Summary returns the running summary of the user's conversation, refreshing it first when
// turns were recorded since the last refresh. On summarizer failure the previous summary is
// returned together with the error and nothing is consumed.
func (m *Manager) Summary(ctx context.Context, userID string) (string, error) {
	st := m.lockExisting(userID)
	if st == nil {
		return "", nil
	}
	st.mu.Unlock()

	st.summarizing.Lock()
	defer st.summarizing.Unlock()

	st.mu.Lock()
	if st.dropped {
		st.mu.Unlock()
		return "", nil
	}
	prior := st.summary
	if len(st.pending) == 0 || m.summarizer == nil {
		st.mu.Unlock()
		return prior, nil
	}
	batch := append([]Turn{}, st.pending...)
	st.mu.Unlock()

	summary, err := m.summarizer.Summarize(ctx, prior, batch)
	if err != nil {
		return prior, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.dropped {
		return "", nil
	}
	through := batch[len(batch)-1].seq
	st.pending = lo.Filter(st.pending, func(t Turn, _ int) bool { return t.seq > through })
	st.summary = summary
	return summary, nil
}

// CachedSummary returns the stored summary without refreshing it and whether it is stale.
func (m *Manager) CachedSummary(userID string) (summary string, stale bool) {
	st := m.lockExisting(userID)
	if st == nil {
		return "", false
	}
	defer st.mu.Unlock()
	return st.summary, len(st.pending) > 0
}

// UpdateContext merges values into the user's context map.
func (m *Manager) UpdateContext(userID string, values map[string]any) {
	st := m.lockState(userID)
	defer st.mu.Unlock()
	maps.Copy(st.context, values)
}

// Context returns a copy of the user's context map.
func (m *Manager) Context(userID string) map[string]any {
	st := m.lockExisting(userID)
	if st == nil {
		return map[string]any{}
	}
	defer st.mu.Unlock()
	return maps.Clone(st.context)
}

// Clear drops everything kept for the user. Later calls see a fresh user.
func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	st := m.users[userID]
	delete(m.users, userID)
	m.mu.Unlock()

	if st != nil {
		st.mu.Lock()
		st.dropped = true
		st.mu.Unlock()
	}
}

// Export snapshots the user's log, context and stats.
func (m *Manager) Export(userID string) Export {
	export := Export{
		UserID:        userID,
		Conversations: []Turn{},
		Context:       map[string]any{},
		ExportedAt:    m.now().UTC(),
	}
	st := m.lockExisting(userID)
	if st == nil {
		return export
	}
	defer st.mu.Unlock()

	export.Conversations = append(export.Conversations, st.log...)
	export.Context = maps.Clone(st.context)
	export.Stats = st.stats()
	return export
}

// Users returns how many users currently have state.
func (m *Manager) Users() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
