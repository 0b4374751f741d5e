package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/hrygo/notesrag/store"
)

// ReplaceNoteEmbedding deletes every vector of the note and inserts the new one in a single transaction.
func (d *DB) ReplaceNoteEmbedding(ctx context.Context, embedding *store.NoteEmbedding) (*store.NoteEmbedding, error) {
	now := time.Now().Unix()
	if embedding.CreatedTs == 0 {
		embedding.CreatedTs = now
	}
	embedding.UpdatedTs = now

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_embedding WHERE note_id = ?`, embedding.NoteID); err != nil {
		return nil, errors.Wrap(err, "failed to delete stale note embedding")
	}

	stmt := `
		INSERT INTO note_embedding (note_id, embedding, model, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, stmt,
		embedding.NoteID,
		pgvector.NewVector(embedding.Embedding),
		embedding.Model,
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.ID); err != nil {
		return nil, errors.Wrap(err, "failed to insert note embedding")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit note embedding")
	}
	return embedding, nil
}

func (d *DB) ListNoteEmbeddings(ctx context.Context, find *store.FindNoteEmbedding) ([]*store.NoteEmbedding, error) {
	where, args := embeddingWhere(find)

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, note_id, embedding, model, created_ts, updated_ts
		FROM note_embedding
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY note_id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list note embeddings")
	}
	defer rows.Close()

	list := []*store.NoteEmbedding{}
	for rows.Next() {
		var embedding store.NoteEmbedding
		var vector pgvector.Vector
		if err := rows.Scan(
			&embedding.ID,
			&embedding.NoteID,
			&vector,
			&embedding.Model,
			&embedding.CreatedTs,
			&embedding.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan note embedding")
		}
		embedding.Embedding = vector.Slice()
		list = append(list, &embedding)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteNoteEmbeddings(ctx context.Context, noteID int32) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM note_embedding WHERE note_id = ?`, noteID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete note embeddings")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return rows, nil
}

func (d *DB) CountNoteEmbeddings(ctx context.Context, find *store.FindNoteEmbedding) (int, error) {
	where, args := embeddingWhere(find)
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_embedding WHERE `+strings.Join(where, " AND "), args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count note embeddings")
	}
	return count, nil
}

// VectorSearch ranks every stored vector of the model by cosine similarity in process.
// Equal scores are ordered by note id ascending, matching the PostgreSQL driver.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT n.id, n.title, n.content, n.created_ts, n.updated_ts, e.embedding
		FROM note n
		INNER JOIN note_embedding e ON n.id = e.note_id
		WHERE e.model = ?`, opts.Model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	query := toFloat64(opts.Vector)
	queryNorm := floats.Norm(query, 2)

	results := []*store.NoteWithScore{}
	for rows.Next() {
		var note store.Note
		var vector pgvector.Vector
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.CreatedTs, &note.UpdatedTs, &vector); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		stored := toFloat64(vector.Slice())
		if len(stored) != len(query) {
			return nil, errors.Errorf("vector dimension mismatch for note %d: stored %d, query %d", note.ID, len(stored), len(query))
		}
		results = append(results, &store.NoteWithScore{
			Note:  &note,
			Score: float32(cosine(query, queryNorm, stored)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Note.ID < results[j].Note.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d *DB) FindNotesWithoutEmbedding(ctx context.Context, find *store.FindNotesWithoutEmbedding) ([]*store.Note, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT n.id, n.title, n.content, n.created_ts, n.updated_ts
		FROM note n
		LEFT JOIN note_embedding e ON n.id = e.note_id AND e.model = ?
		WHERE e.id IS NULL
		ORDER BY n.id ASC
		LIMIT ?`, find.Model, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find notes without embedding")
	}
	defer rows.Close()

	list := []*store.Note{}
	for rows.Next() {
		var note store.Note
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.CreatedTs, &note.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		list = append(list, &note)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) GetEmbeddingDimensions(ctx context.Context) (int, error) {
	var vector pgvector.Vector
	err := d.db.QueryRowContext(ctx, `SELECT embedding FROM note_embedding LIMIT 1`).Scan(&vector)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to get embedding dimensions")
	}
	return len(vector.Slice()), nil
}

func embeddingWhere(find *store.FindNoteEmbedding) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if find == nil {
		return where, args
	}
	if find.NoteID != nil {
		where, args = append(where, "note_id = ?"), append(args, *find.NoteID)
	}
	if find.Model != nil {
		where, args = append(where, "model = ?"), append(args, *find.Model)
	}
	return where, args
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// cosine returns the cosine similarity of a and b, or 0 when either has zero length.
func cosine(a []float64, aNorm float64, b []float64) float64 {
	bNorm := floats.Norm(b, 2)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	return floats.Dot(a, b) / (aNorm * bNorm)
}
