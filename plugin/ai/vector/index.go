// Package vector ranks notes by cosine similarity between their current vector and a query vector.
package vector

import (
	"context"

	"github.com/hrygo/notesrag/store"
)

// Result is a ranked note.
type Result struct {
	NoteID     int32   `json:"note_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
	CreatedTs  int64   `json:"created_ts"`
	UpdatedTs  int64   `json:"updated_ts"`
}

// Index holds exactly one current vector per live note.
type Index interface {
	// Search returns up to topK results ordered by similarity descending, then note id ascending.
	// An empty index yields an empty slice.
	Search(ctx context.Context, vector []float32, topK int) ([]Result, error)

	// Upsert atomically replaces the note's vector.
	Upsert(ctx context.Context, note *store.Note, vector []float32) error

	// Delete removes every vector of the note and returns how many were removed.
	Delete(ctx context.Context, noteID int32) (int64, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// FindNotesWithoutVector lists live notes lacking a current vector, by id.
	FindNotesWithoutVector(ctx context.Context, limit int) ([]*store.Note, error)
}

func resultFromNote(note *store.Note, similarity float32) Result {
	return Result{
		NoteID:     note.ID,
		Title:      note.Title,
		Content:    note.Content,
		Similarity: similarity,
		CreatedTs:  note.CreatedTs,
		UpdatedTs:  note.UpdatedTs,
	}
}
