package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Note model related methods.
	CreateNote(ctx context.Context, create *Note) (*Note, error)
	ListNotes(ctx context.Context, find *FindNote) ([]*Note, error)
	// UpdateNote returns nil when the note does not exist.
	UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error)
	// DeleteNote reports whether a note was deleted. Its vectors go with it.
	DeleteNote(ctx context.Context, delete *DeleteNote) (bool, error)

	// NoteEmbedding model related methods.
	ReplaceNoteEmbedding(ctx context.Context, embedding *NoteEmbedding) (*NoteEmbedding, error)
	ListNoteEmbeddings(ctx context.Context, find *FindNoteEmbedding) ([]*NoteEmbedding, error)
	DeleteNoteEmbeddings(ctx context.Context, noteID int32) (int64, error)
	CountNoteEmbeddings(ctx context.Context, find *FindNoteEmbedding) (int, error)
	FindNotesWithoutEmbedding(ctx context.Context, find *FindNotesWithoutEmbedding) ([]*Note, error)
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*NoteWithScore, error)
	// GetEmbeddingDimensions returns the dimension of stored vectors, or 0 when none are stored.
	GetEmbeddingDimensions(ctx context.Context) (int, error)
}
