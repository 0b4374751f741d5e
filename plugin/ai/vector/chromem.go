package vector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hrygo/notesrag/store"
)

const chromemCollection = "notes"

// ChromemIndex keeps vectors in an embedded chromem-go collection. It is process-local:
// the reconciliation runner refills it from the note store at startup.
type ChromemIndex struct {
	notes *store.Store
	col   *chromem.Collection

	// mu makes Count and Query agree, since chromem rejects nResults above the collection size.
	mu  sync.RWMutex
	ids map[int32]struct{}
}

// NewChromemIndex creates an empty in-memory index.
func NewChromemIndex(notes *store.Store) (*ChromemIndex, error) {
	db := chromem.NewDB()
	// No embedding func: vectors are always supplied. Cosine is the default distance.
	col, err := db.CreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &ChromemIndex{
		notes: notes,
		col:   col,
		ids:   make(map[int32]struct{}),
	}, nil
}

func (i *ChromemIndex) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	n := i.col.Count()
	if n == 0 {
		return []Result{}, nil
	}
	// Rank everything so that ties are broken by note id, not by chromem's internal order.
	found, err := i.col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]Result, 0, len(found))
	for _, r := range found {
		res, err := resultFromDocument(r)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Similarity != results[b].Similarity {
			return results[a].Similarity > results[b].Similarity
		}
		return results[a].NoteID < results[b].NoteID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (i *ChromemIndex) Upsert(ctx context.Context, note *store.Note, vector []float32) error {
	doc := chromem.Document{
		ID:        docID(note.ID),
		Content:   note.Content,
		Embedding: append([]float32{}, vector...),
		Metadata: map[string]string{
			"title":      note.Title,
			"created_ts": strconv.FormatInt(note.CreatedTs, 10),
			"updated_ts": strconv.FormatInt(note.UpdatedTs, 10),
		},
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	// AddDocument replaces any document with the same id.
	if err := i.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	i.ids[note.ID] = struct{}{}
	return nil
}

func (i *ChromemIndex) Delete(ctx context.Context, noteID int32) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.ids[noteID]; !ok {
		return 0, nil
	}
	if err := i.col.Delete(ctx, nil, nil, docID(noteID)); err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	delete(i.ids, noteID)
	return 1, nil
}

func (i *ChromemIndex) Count(context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.col.Count(), nil
}

// FindNotesWithoutVector pages through the note store and keeps notes missing from the collection.
func (i *ChromemIndex) FindNotesWithoutVector(ctx context.Context, limit int) ([]*store.Note, error) {
	if limit <= 0 {
		limit = 100
	}
	const pageSize = 200

	missing := []*store.Note{}
	for offset := 0; len(missing) < limit; offset += pageSize {
		page, err := i.notes.ListNotes(ctx, &store.FindNote{Offset: &offset, Limit: intPtr(pageSize)})
		if err != nil {
			return nil, err
		}

		i.mu.RLock()
		for _, note := range page {
			if _, ok := i.ids[note.ID]; !ok && len(missing) < limit {
				missing = append(missing, note)
			}
		}
		i.mu.RUnlock()

		if len(page) < pageSize {
			break
		}
	}
	return missing, nil
}

func docID(noteID int32) string {
	return strconv.FormatInt(int64(noteID), 10)
}

func resultFromDocument(r chromem.Result) (Result, error) {
	id, err := strconv.ParseInt(r.ID, 10, 32)
	if err != nil {
		return Result{}, fmt.Errorf("invalid document id %q: %w", r.ID, err)
	}
	createdTs, _ := strconv.ParseInt(r.Metadata["created_ts"], 10, 64)
	updatedTs, _ := strconv.ParseInt(r.Metadata["updated_ts"], 10, 64)
	return Result{
		NoteID:     int32(id),
		Title:      r.Metadata["title"],
		Content:    r.Content,
		Similarity: r.Similarity,
		CreatedTs:  createdTs,
		UpdatedTs:  updatedTs,
	}, nil
}

func intPtr(v int) *int {
	return &v
}

var _ Index = (*ChromemIndex)(nil)
