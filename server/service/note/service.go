// Package note owns note mutations and keeps the vector index in step with them.
package note

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/store"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Indexer is the part of rag.Indexer the note service needs.
type Indexer interface {
	IndexNote(ctx context.Context, note *store.Note) error
	RemoveNote(ctx context.Context, noteID int32) (int64, error)
}

// Service is the note CRUD layer. Index failures never fail a mutation: they are
// logged and the reconciliation runner repairs the index later.
type Service struct {
	store   *store.Store
	indexer Indexer
}

func NewService(store *store.Store, indexer Indexer) *Service {
	return &Service{store: store, indexer: indexer}
}

type CreateNote struct {
	Title   string
	Content string
}

type UpdateNote struct {
	Title   *string
	Content *string
}

func (s *Service) Create(ctx context.Context, create *CreateNote) (*store.Note, error) {
	if strings.TrimSpace(create.Title) == "" {
		return nil, aierrors.InvalidArgument("title is required")
	}

	note, err := s.store.CreateNote(ctx, &store.Note{
		Title:   create.Title,
		Content: create.Content,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}
	s.index(ctx, note)
	return note, nil
}

// Get returns a NOT_FOUND error when the note does not exist.
func (s *Service) Get(ctx context.Context, id int32) (*store.Note, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get note %d", id)
	}
	if note == nil {
		return nil, notFound(id)
	}
	return note, nil
}

// List pages notes by id. A non-positive limit means DefaultListLimit.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*store.Note, error) {
	if offset < 0 {
		return nil, aierrors.InvalidArgument("skip must not be negative")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	notes, err := s.store.ListNotes(ctx, &store.FindNote{Offset: &offset, Limit: &limit})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
	}
	return notes, nil
}

// Update changes the given fields and re-embeds the note.
func (s *Service) Update(ctx context.Context, id int32, update *UpdateNote) (*store.Note, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, aierrors.InvalidArgument("title must not be empty")
	}

	note, err := s.store.UpdateNote(ctx, &store.UpdateNote{
		ID:      id,
		Title:   update.Title,
		Content: update.Content,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update note %d", id)
	}
	if note == nil {
		return nil, notFound(id)
	}
	s.index(ctx, note)
	return note, nil
}

// Delete removes the note together with all of its vectors.
func (s *Service) Delete(ctx context.Context, id int32) error {
	deleted, err := s.store.DeleteNote(ctx, &store.DeleteNote{ID: id})
	if err != nil {
		return errors.Wrapf(err, "failed to delete note %d", id)
	}
	if !deleted {
		return notFound(id)
	}
	// The SQL index cascades; other backends need an explicit removal.
	if _, err := s.indexer.RemoveNote(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to remove note vectors", "note_id", id, "error", err)
	}
	return nil
}

func (s *Service) index(ctx context.Context, note *store.Note) {
	err := s.indexer.IndexNote(ctx, note)
	if err == nil {
		return
	}
	if aierrors.IsCode(err, aierrors.ErrCodeEmbeddingUnavailable) {
		// Already logged by the indexer with its code.
		return
	}
	slog.ErrorContext(ctx, "failed to index note",
		"code", aierrors.ErrCodeVectorStoreInconsistent,
		"note_id", note.ID,
		"error", err,
	)
}

func notFound(id int32) error {
	return aierrors.NotFound("note not found").WithContext("note_id", id)
}
