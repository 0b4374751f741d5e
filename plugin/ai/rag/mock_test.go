package rag

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/vector"
	"github.com/hrygo/notesrag/store"
)

type mockEmbedder struct {
	calls      atomic.Int32
	batchCalls atomic.Int32
	err        error

	// When set, Embed (or EmbedBatch) signals entered and then blocks until release is closed.
	embedGate *gate
	batchGate *gate
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gate) pass() {
	if g == nil {
		return
	}
	g.entered <- struct{}{}
	<-g.release
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	m.embedGate.pass()
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchGate.pass()
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func (*mockEmbedder) Dimensions() int { return 3 }
func (*mockEmbedder) Model() string   { return "mock-embed" }

type mockLLM struct {
	calls atomic.Int32
	reply string
	err   error

	// hook runs inside Generate before the reply is returned.
	hook func(ctx context.Context)

	mu       sync.Mutex
	messages []ai.Message
	opts     ai.GenerateOptions
}

func (m *mockLLM) Generate(ctx context.Context, messages []ai.Message, opts ai.GenerateOptions) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.messages = messages
	m.opts = opts
	m.mu.Unlock()
	if m.hook != nil {
		m.hook(ctx)
	}
	return m.reply, m.err
}

func (m *mockLLM) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return m.Generate(ctx, messages, ai.GenerateOptions{})
}

func (*mockLLM) IsAvailable(context.Context) bool { return true }

func (*mockLLM) ModelInfo(context.Context) ai.ModelInfo { return ai.ModelInfo{} }

func (m *mockLLM) lastMessages() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages
}

// fakeIndex returns canned search results and records mutations.
type fakeIndex struct {
	mu        sync.Mutex
	results   []vector.Result
	searchErr error
	vectors   map[int32][]float32
	notes     []*store.Note
}

func newFakeIndex(results ...vector.Result) *fakeIndex {
	idx := &fakeIndex{results: results, vectors: map[int32][]float32{}}
	for _, r := range results {
		idx.vectors[r.NoteID] = []float32{1, 0, 0}
	}
	return idx
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int) ([]vector.Result, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := append([]vector.Result{}, f.results...)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeIndex) Upsert(_ context.Context, note *store.Note, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[note.ID] = vec
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, noteID int32) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vectors[noteID]; !ok {
		return 0, nil
	}
	delete(f.vectors, noteID)
	return 1, nil
}

func (f *fakeIndex) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors), nil
}

func (f *fakeIndex) FindNotesWithoutVector(_ context.Context, limit int) ([]*store.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	missing := []*store.Note{}
	for _, n := range f.notes {
		if _, ok := f.vectors[n.ID]; !ok && len(missing) < limit {
			missing = append(missing, n)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].ID < missing[j].ID })
	return missing, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *recordingObserver) ObserveAsk(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
