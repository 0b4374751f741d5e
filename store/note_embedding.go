package store

import "context"

// NoteEmbedding represents the current vector embedding of a note.
type NoteEmbedding struct {
	ID        int32
	NoteID    int32
	Embedding []float32 // 768-dimensional for nomic-embed-text
	Model     string    // Model identifier, e.g., "nomic-embed-text"
	CreatedTs int64
	UpdatedTs int64
}

// FindNoteEmbedding is the find condition for note embeddings.
type FindNoteEmbedding struct {
	NoteID *int32
	Model  *string
}

// FindNotesWithoutEmbedding finds notes lacking a current vector for Model.
type FindNotesWithoutEmbedding struct {
	Model string
	Limit int
}

// NoteWithScore represents a vector search result with similarity score.
type NoteWithScore struct {
	Note  *Note
	Score float32 // Cosine similarity, higher is more similar
}

// VectorSearchOptions represents the options for vector search.
type VectorSearchOptions struct {
	Vector []float32 // Query vector
	Model  string    // Only vectors produced by this model are compared
	Limit  int       // Number of results to return, default 10
}

// ReplaceNoteEmbedding atomically replaces every vector of the note with the given one.
func (s *Store) ReplaceNoteEmbedding(ctx context.Context, embedding *NoteEmbedding) (*NoteEmbedding, error) {
	return s.driver.ReplaceNoteEmbedding(ctx, embedding)
}

// GetNoteEmbedding gets the current embedding of a note.
func (s *Store) GetNoteEmbedding(ctx context.Context, noteID int32) (*NoteEmbedding, error) {
	list, err := s.driver.ListNoteEmbeddings(ctx, &FindNoteEmbedding{
		NoteID: &noteID,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListNoteEmbeddings(ctx context.Context, find *FindNoteEmbedding) ([]*NoteEmbedding, error) {
	return s.driver.ListNoteEmbeddings(ctx, find)
}

// DeleteNoteEmbeddings deletes all vectors of a note and returns how many were removed.
func (s *Store) DeleteNoteEmbeddings(ctx context.Context, noteID int32) (int64, error) {
	return s.driver.DeleteNoteEmbeddings(ctx, noteID)
}

func (s *Store) CountNoteEmbeddings(ctx context.Context, find *FindNoteEmbedding) (int, error) {
	return s.driver.CountNoteEmbeddings(ctx, find)
}

func (s *Store) FindNotesWithoutEmbedding(ctx context.Context, find *FindNotesWithoutEmbedding) ([]*Note, error) {
	return s.driver.FindNotesWithoutEmbedding(ctx, find)
}

// VectorSearch performs vector similarity search.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*NoteWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}

func (s *Store) GetEmbeddingDimensions(ctx context.Context) (int, error) {
	return s.driver.GetEmbeddingDimensions(ctx)
}
