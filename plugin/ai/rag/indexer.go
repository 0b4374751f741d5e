package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/ai"
	"github.com/hrygo/notesrag/plugin/ai/vector"
	"github.com/hrygo/notesrag/store"
)

// Indexer keeps exactly one current vector per note.
//
// Writes for the same note are serialized. Every IndexNote and RemoveNote stamps the note with a
// new sequence number, and Reconcile drops results for notes stamped after its snapshot was taken.
type Indexer struct {
	embedder ai.EmbeddingService
	index    vector.Index

	mu      sync.Mutex
	seq     uint64
	touched map[int32]uint64
	locks   map[int32]*noteLock
}

type noteLock struct {
	sync.Mutex
	refs int
}

func NewIndexer(embedder ai.EmbeddingService, index vector.Index) *Indexer {
	return &Indexer{
		embedder: embedder,
		index:    index,
		touched:  make(map[int32]uint64),
		locks:    make(map[int32]*noteLock),
	}
}

// IndexNote embeds the note and replaces its vector.
//
// When embedding fails the note's previous vector is removed, so a search never matches text
// the note no longer has. The returned error carries EMBEDDING_UNAVAILABLE and the reconciliation
// runner picks the note up later.
func (x *Indexer) IndexNote(ctx context.Context, note *store.Note) error {
	unlock := x.lockNote(note.ID, true)
	defer unlock()

	vec, err := x.embedder.Embed(ctx, note.EmbeddingText())
	if err != nil {
		slog.WarnContext(ctx, "note embedding failed",
			"code", aierrors.ErrCodeEmbeddingUnavailable,
			"note_id", note.ID,
			"error", err,
		)
		if _, delErr := x.index.Delete(ctx, note.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to drop stale note vector", "note_id", note.ID, "error", delErr)
		}
		return aierrors.EmbeddingUnavailable("failed to embed note", err).WithContext("note_id", note.ID)
	}
	if err := x.index.Upsert(ctx, note, vec); err != nil {
		return fmt.Errorf("index note %d: %w", note.ID, err)
	}
	return nil
}

// RemoveNote drops every vector of the note. Removing nothing is not an error.
// An IndexNote still in flight for the note finishes first.
func (x *Indexer) RemoveNote(ctx context.Context, noteID int32) (int64, error) {
	unlock := x.lockNote(noteID, true)
	defer unlock()
	return x.index.Delete(ctx, noteID)
}

// Reconcile embeds up to limit notes that have no current vector and returns how many were indexed.
// Notes written or removed after the lookup are skipped.
func (x *Indexer) Reconcile(ctx context.Context, limit int) (int, error) {
	snapshot := x.currentSeq()

	notes, err := x.index.FindNotesWithoutVector(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("find notes without vector: %w", err)
	}
	if len(notes) == 0 {
		return 0, nil
	}

	texts := lo.Map(notes, func(n *store.Note, _ int) string { return n.EmbeddingText() })
	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, aierrors.EmbeddingUnavailable("failed to embed notes", err).WithContext("count", len(notes))
	}
	if len(vectors) != len(notes) {
		return 0, aierrors.EmbeddingUnavailable(
			fmt.Sprintf("embedding provider returned %d vectors for %d notes", len(vectors), len(notes)), nil)
	}

	indexed := 0
	for i, note := range notes {
		ok, err := x.upsertIfUntouched(ctx, note, vectors[i], snapshot)
		if err != nil {
			return indexed, err
		}
		if ok {
			indexed++
		}
	}
	return indexed, nil
}

func (x *Indexer) upsertIfUntouched(ctx context.Context, note *store.Note, vec []float32, snapshot uint64) (bool, error) {
	unlock := x.lockNote(note.ID, false)
	defer unlock()

	if x.touchedSince(note.ID, snapshot) {
		slog.DebugContext(ctx, "skipping reconciled vector, note changed meanwhile", "note_id", note.ID)
		return false, nil
	}
	if err := x.index.Upsert(ctx, note, vec); err != nil {
		return false, fmt.Errorf("index note %d: %w", note.ID, err)
	}
	return true, nil
}

// Count returns the number of indexed notes.
func (x *Indexer) Count(ctx context.Context) (int, error) {
	return x.index.Count(ctx)
}

// lockNote acquires the note's write lock, stamping the note when touch is set.
func (x *Indexer) lockNote(noteID int32, touch bool) func() {
	x.mu.Lock()
	l, ok := x.locks[noteID]
	if !ok {
		l = &noteLock{}
		x.locks[noteID] = l
	}
	l.refs++
	x.mu.Unlock()

	l.Lock()
	if touch {
		x.mu.Lock()
		x.seq++
		x.touched[noteID] = x.seq
		x.mu.Unlock()
	}

	return func() {
		l.Unlock()
		x.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(x.locks, noteID)
		}
		x.mu.Unlock()
	}
}

func (x *Indexer) currentSeq() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.seq
}

func (x *Indexer) touchedSince(noteID int32, snapshot uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.touched[noteID] > snapshot
}
