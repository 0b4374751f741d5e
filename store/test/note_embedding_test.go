package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/notesrag/store"
)

func createNoteWithVector(ctx context.Context, t *testing.T, ts *store.Store, model, title string, vector []float32) *store.Note {
	t.Helper()
	note, err := ts.CreateNote(ctx, &store.Note{Title: title, Content: title + " content"})
	require.NoError(t, err)
	_, err = ts.ReplaceNoteEmbedding(ctx, &store.NoteEmbedding{
		NoteID:    note.ID,
		Embedding: vector,
		Model:     model,
	})
	require.NoError(t, err)
	return note
}

func TestReplaceNoteEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "replace-model"

	note := createNoteWithVector(ctx, t, ts, model, "alpha", []float32{1, 0, 0})

	got, err := ts.GetNoteEmbedding(ctx, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []float32{1, 0, 0}, got.Embedding)
	require.Equal(t, model, got.Model)

	_, err = ts.ReplaceNoteEmbedding(ctx, &store.NoteEmbedding{
		NoteID:    note.ID,
		Embedding: []float32{0, 1, 0},
		Model:     model,
	})
	require.NoError(t, err)

	list, err := ts.ListNoteEmbeddings(ctx, &store.FindNoteEmbedding{NoteID: &note.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []float32{0, 1, 0}, list[0].Embedding)

	dims, err := ts.GetEmbeddingDimensions(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, dims)
}

func TestVectorSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "search-model"

	x := createNoteWithVector(ctx, t, ts, model, "x", []float32{1, 0, 0})
	y := createNoteWithVector(ctx, t, ts, model, "y", []float32{0, 1, 0})
	xy := createNoteWithVector(ctx, t, ts, model, "xy", []float32{1, 1, 0})

	t.Run("identical vector ranks first", func(t *testing.T) {
		results, err := ts.VectorSearch(ctx, &store.VectorSearchOptions{
			Vector: []float32{0, 1, 0},
			Model:  model,
			Limit:  3,
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		require.Equal(t, y.ID, results[0].Note.ID)
		require.InDelta(t, 1.0, results[0].Score, 1e-5)
		require.Equal(t, xy.ID, results[1].Note.ID)
		require.Equal(t, x.ID, results[2].Note.ID)
		for i := 1; i < len(results); i++ {
			require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("limit larger than count", func(t *testing.T) {
		results, err := ts.VectorSearch(ctx, &store.VectorSearchOptions{
			Vector: []float32{1, 0, 0},
			Model:  model,
			Limit:  10,
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
	})

	t.Run("equal scores ordered by id", func(t *testing.T) {
		results, err := ts.VectorSearch(ctx, &store.VectorSearchOptions{
			Vector: []float32{0, 0, 1},
			Model:  model,
			Limit:  3,
		})
		require.NoError(t, err)
		require.Len(t, results, 3)
		require.Equal(t, x.ID, results[0].Note.ID)
		require.Equal(t, y.ID, results[1].Note.ID)
		require.Equal(t, xy.ID, results[2].Note.ID)
	})

	t.Run("other models are not compared", func(t *testing.T) {
		results, err := ts.VectorSearch(ctx, &store.VectorSearchOptions{
			Vector: []float32{1, 0, 0},
			Model:  "unknown-model",
			Limit:  3,
		})
		require.NoError(t, err)
		require.Empty(t, results)
	})
}

func TestVectorSearchNoStaleVector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "stale-model"

	note := createNoteWithVector(ctx, t, ts, model, "moving", []float32{1, 0, 0})
	_, err := ts.ReplaceNoteEmbedding(ctx, &store.NoteEmbedding{
		NoteID:    note.ID,
		Embedding: []float32{0, 1, 0},
		Model:     model,
	})
	require.NoError(t, err)

	results, err := ts.VectorSearch(ctx, &store.VectorSearchOptions{
		Vector: []float32{1, 0, 0},
		Model:  model,
		Limit:  5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.InDelta(t, 0.0, results[0].Score, 1e-5)
}

func TestDeleteNoteEmbeddings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "delete-model"

	note := createNoteWithVector(ctx, t, ts, model, "gone", []float32{1, 0, 0})

	count, err := ts.CountNoteEmbeddings(ctx, &store.FindNoteEmbedding{Model: &model})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	removed, err := ts.DeleteNoteEmbeddings(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	removed, err = ts.DeleteNoteEmbeddings(ctx, note.ID)
	require.NoError(t, err)
	require.Zero(t, removed)

	count, err = ts.CountNoteEmbeddings(ctx, &store.FindNoteEmbedding{Model: &model})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDeleteNoteCascadesEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "cascade-model"

	note := createNoteWithVector(ctx, t, ts, model, "cascade", []float32{1, 0, 0})
	deleted, err := ts.DeleteNote(ctx, &store.DeleteNote{ID: note.ID})
	require.NoError(t, err)
	require.True(t, deleted)

	got, err := ts.GetNoteEmbedding(ctx, note.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFindNotesWithoutEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "missing-model"

	with := createNoteWithVector(ctx, t, ts, model, "with", []float32{1, 0, 0})
	without, err := ts.CreateNote(ctx, &store.Note{Title: "without", Content: "no vector"})
	require.NoError(t, err)

	notes, err := ts.FindNotesWithoutEmbedding(ctx, &store.FindNotesWithoutEmbedding{Model: model, Limit: 100})
	require.NoError(t, err)

	ids := map[int32]bool{}
	for _, n := range notes {
		ids[n.ID] = true
	}
	require.True(t, ids[without.ID])
	require.False(t, ids[with.ID])
}

func TestEmptyEmbeddingStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	model := "empty-model"

	count, err := ts.CountNoteEmbeddings(ctx, &store.FindNoteEmbedding{Model: &model})
	require.NoError(t, err)
	require.Zero(t, count)

	results, err := ts.VectorSearch(ctx, &store.VectorSearchOptions{
		Vector: []float32{1, 0, 0},
		Model:  model,
		Limit:  3,
	})
	require.NoError(t, err)
	require.Empty(t, results)
}
