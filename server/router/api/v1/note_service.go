package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/markdown"
	httperrors "github.com/hrygo/notesrag/server/internal/errors"
	"github.com/hrygo/notesrag/server/service/note"
	"github.com/hrygo/notesrag/store"
)

type NoteResponse struct {
	ID        int32     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type AnalyzeNoteResponse struct {
	NoteID   int32  `json:"note_id"`
	Analysis string `json:"analysis"`
}

// ListNotes handles GET /api/notes?skip=0&limit=100.
func (s *APIV1Service) ListNotes(c echo.Context) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", note.DefaultListLimit)
	if err != nil {
		return err
	}

	notes, err := s.NoteService.List(c.Request().Context(), skip, limit)
	if err != nil {
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, lo.Map(notes, func(n *store.Note, _ int) *NoteResponse {
		return convertNote(n)
	}))
}

func (s *APIV1Service) GetNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	n, err := s.NoteService.Get(c.Request().Context(), id)
	if err != nil {
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertNote(n))
}

func (s *APIV1Service) CreateNote(c echo.Context) error {
	var req CreateNoteRequest
	if err := c.Bind(&req); err != nil {
		return httperrors.ToHTTPError(aierrors.InvalidArgument("invalid request body"))
	}
	n, err := s.NoteService.Create(c.Request().Context(), &note.CreateNote{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertNote(n))
}

func (s *APIV1Service) UpdateNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	var req UpdateNoteRequest
	if err := c.Bind(&req); err != nil {
		return httperrors.ToHTTPError(aierrors.InvalidArgument("invalid request body"))
	}
	n, err := s.NoteService.Update(c.Request().Context(), id, &note.UpdateNote{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertNote(n))
}

func (s *APIV1Service) DeleteNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	if err := s.NoteService.Delete(c.Request().Context(), id); err != nil {
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Note deleted successfully"})
}

// AnalyzeNote handles POST /api/notes/:id/analyze.
func (s *APIV1Service) AnalyzeNote(c echo.Context) error {
	id, err := noteID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	n, err := s.NoteService.Get(ctx, id)
	if err != nil {
		return httperrors.ToHTTPError(err)
	}
	analysis, err := s.RAGService.AnalyzeNote(ctx, n.Title, n.Content)
	if err != nil {
		return httperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, AnalyzeNoteResponse{NoteID: n.ID, Analysis: analysis})
}

func noteID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return 0, httperrors.ToHTTPError(aierrors.InvalidArgument("note id must be an integer"))
	}
	return int32(id), nil
}

func convertNote(n *store.Note) *NoteResponse {
	return &NoteResponse{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Snippet:   markdown.Snippet(n.Content, markdown.DefaultSnippetLength),
		CreatedAt: time.Unix(n.CreatedTs, 0).UTC(),
		UpdatedAt: time.Unix(n.UpdatedTs, 0).UTC(),
	}
}
