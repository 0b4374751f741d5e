package store

import (
	"context"
)

// Note is a free-text note owned by the note store.
type Note struct {
	ID        int32
	Title     string
	Content   string
	CreatedTs int64
	UpdatedTs int64
}

// EmbeddingText is the text a note is embedded from.
func (n *Note) EmbeddingText() string {
	return n.Title + " " + n.Content
}

type FindNote struct {
	ID *int32

	// Pagination
	Offset *int
	Limit  *int
}

type UpdateNote struct {
	ID        int32
	Title     *string
	Content   *string
	UpdatedTs *int64
}

type DeleteNote struct {
	ID int32
}

func (s *Store) CreateNote(ctx context.Context, create *Note) (*Note, error) {
	return s.driver.CreateNote(ctx, create)
}

func (s *Store) ListNotes(ctx context.Context, find *FindNote) ([]*Note, error) {
	return s.driver.ListNotes(ctx, find)
}

// GetNote returns the note with the given id, or nil when it does not exist.
func (s *Store) GetNote(ctx context.Context, id int32) (*Note, error) {
	list, err := s.ListNotes(ctx, &FindNote{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateNote(ctx context.Context, update *UpdateNote) (*Note, error) {
	return s.driver.UpdateNote(ctx, update)
}

func (s *Store) DeleteNote(ctx context.Context, delete *DeleteNote) (bool, error) {
	return s.driver.DeleteNote(ctx, delete)
}
