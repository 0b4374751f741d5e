package vector

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/notesrag/store"
)

// StoreIndex keeps vectors in the SQL store, tagged with the embedding model.
type StoreIndex struct {
	store *store.Store
	model string
}

// NewStoreIndex creates an index over the vectors produced by model.
func NewStoreIndex(s *store.Store, model string) *StoreIndex {
	return &StoreIndex{store: s, model: model}
}

func (i *StoreIndex) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}
	found, err := i.store.VectorSearch(ctx, &store.VectorSearchOptions{
		Vector: vector,
		Model:  i.model,
		Limit:  topK,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search note vectors")
	}

	results := make([]Result, 0, len(found))
	for _, r := range found {
		results = append(results, resultFromNote(r.Note, r.Score))
	}
	return results, nil
}

func (i *StoreIndex) Upsert(ctx context.Context, note *store.Note, vector []float32) error {
	if _, err := i.store.ReplaceNoteEmbedding(ctx, &store.NoteEmbedding{
		NoteID:    note.ID,
		Embedding: vector,
		Model:     i.model,
	}); err != nil {
		return errors.Wrapf(err, "failed to replace vector of note %d", note.ID)
	}
	return nil
}

func (i *StoreIndex) Delete(ctx context.Context, noteID int32) (int64, error) {
	removed, err := i.store.DeleteNoteEmbeddings(ctx, noteID)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to delete vectors of note %d", noteID)
	}
	return removed, nil
}

func (i *StoreIndex) Count(ctx context.Context) (int, error) {
	return i.store.CountNoteEmbeddings(ctx, &store.FindNoteEmbedding{Model: &i.model})
}

func (i *StoreIndex) FindNotesWithoutVector(ctx context.Context, limit int) ([]*store.Note, error) {
	return i.store.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{
		Model: i.model,
		Limit: limit,
	})
}

var _ Index = (*StoreIndex)(nil)
