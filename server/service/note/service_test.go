package note

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/notesrag/internal/errors"
	"github.com/hrygo/notesrag/plugin/ai/rag"
	"github.com/hrygo/notesrag/plugin/ai/vector"
	"github.com/hrygo/notesrag/store"
	storetest "github.com/hrygo/notesrag/store/test"
)

const testModel = "test-embed"

// stubEmbedder maps text length onto the first axis.
type stubEmbedder struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (*stubEmbedder) Dimensions() int { return 3 }
func (*stubEmbedder) Model() string   { return testModel }

func newTestService(ctx context.Context, t *testing.T) (*Service, *store.Store, *stubEmbedder) {
	t.Helper()
	ts := storetest.NewTestingStore(ctx, t)
	embedder := &stubEmbedder{}
	indexer := rag.NewIndexer(embedder, vector.NewStoreIndex(ts, testModel))
	return NewService(ts, indexer), ts, embedder
}

func currentVector(ctx context.Context, t *testing.T, ts *store.Store, noteID int32) []float32 {
	t.Helper()
	list, err := ts.ListNoteEmbeddings(ctx, &store.FindNoteEmbedding{NoteID: &noteID})
	require.NoError(t, err)
	if len(list) == 0 {
		return nil
	}
	require.Len(t, list, 1)
	return list[0].Embedding
}

func TestCreateIndexesNote(t *testing.T) {
	ctx := context.Background()
	svc, ts, _ := newTestService(ctx, t)

	note, err := svc.Create(ctx, &CreateNote{Title: "Travel", Content: "Paris"})
	require.NoError(t, err)
	assert.NotZero(t, note.ID)
	assert.Equal(t, []float32{12, 1, 0}, currentVector(ctx, t, ts, note.ID))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, embedder := newTestService(ctx, t)

	_, err := svc.Create(ctx, &CreateNote{Title: "  ", Content: "x"})
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeInvalidArgument))
	assert.Zero(t, embedder.calls.Load())
}

func TestCreateSucceedsWhenEmbeddingFails(t *testing.T) {
	ctx := context.Background()
	svc, ts, embedder := newTestService(ctx, t)
	embedder.fail.Store(true)

	note, err := svc.Create(ctx, &CreateNote{Title: "Travel", Content: "Paris"})
	require.NoError(t, err)
	assert.Nil(t, currentVector(ctx, t, ts, note.ID))

	got, err := svc.Get(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paris", got.Content)
}

func TestUpdateReplacesVector(t *testing.T) {
	ctx := context.Background()
	svc, ts, embedder := newTestService(ctx, t)

	note, err := svc.Create(ctx, &CreateNote{Title: "Travel", Content: "Paris"})
	require.NoError(t, err)

	content := "Paris and Lyon"
	updated, err := svc.Update(ctx, note.ID, &UpdateNote{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Travel", updated.Title)
	assert.Equal(t, content, updated.Content)
	assert.Equal(t, []float32{21, 1, 0}, currentVector(ctx, t, ts, note.ID))

	// A failed re-embed leaves no stale vector behind.
	embedder.fail.Store(true)
	content = "Rome"
	_, err = svc.Update(ctx, note.ID, &UpdateNote{Content: &content})
	require.NoError(t, err)
	assert.Nil(t, currentVector(ctx, t, ts, note.ID))
}

func TestMissingNote(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(ctx, t)

	_, err := svc.Get(ctx, 404)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFound))

	title := "x"
	_, err = svc.Update(ctx, 404, &UpdateNote{Title: &title})
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFound))

	err = svc.Delete(ctx, 404)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFound))
}

func TestDeleteRemovesVectors(t *testing.T) {
	ctx := context.Background()
	svc, ts, _ := newTestService(ctx, t)

	keep, err := svc.Create(ctx, &CreateNote{Title: "keep", Content: "a"})
	require.NoError(t, err)
	drop, err := svc.Create(ctx, &CreateNote{Title: "drop", Content: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, drop.ID))

	model := testModel
	count, err := ts.CountNoteEmbeddings(ctx, &store.FindNoteEmbedding{Model: &model})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotNil(t, currentVector(ctx, t, ts, keep.ID))

	_, err = svc.Get(ctx, drop.ID)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFound))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(ctx, t)

	for _, title := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, &CreateNote{Title: title})
		require.NoError(t, err)
	}

	notes, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, notes, 3)

	notes, err = svc.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "b", notes[0].Title)

	_, err = svc.List(ctx, -1, 10)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeInvalidArgument))
}
