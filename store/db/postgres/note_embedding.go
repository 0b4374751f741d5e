package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/notesrag/store"
)

// ReplaceNoteEmbedding deletes every vector of the note and inserts the new one in a single
// transaction, so concurrent searches observe either the old or the new vector.
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_embedding WHERE note_id = `+placeholder(1), embedding.NoteID); err != nil {
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

// ListNoteEmbeddings lists note embeddings.
func (d *DB) ListNoteEmbeddings(ctx context.Context, find *store.FindNoteEmbedding) ([]*store.NoteEmbedding, error) {
	where, args := embeddingWhere(find)

	query := `
		SELECT id, note_id, embedding, model, created_ts, updated_ts
		FROM note_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY note_id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
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

// DeleteNoteEmbeddings deletes all vectors of a note. Deleting nothing is not an error.
func (d *DB) DeleteNoteEmbeddings(ctx context.Context, noteID int32) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM note_embedding WHERE note_id = `+placeholder(1), noteID)
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

// VectorSearch performs cosine similarity search with pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so results are ordered by
// distance ascending and then by note id for a deterministic order between equal scores.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.NoteWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			n.id, n.title, n.content, n.created_ts, n.updated_ts,
			1 - (e.embedding <=> ` + placeholder(1) + `) AS score
		FROM note n
		INNER JOIN note_embedding e ON n.id = e.note_id
		WHERE e.model = ` + placeholder(2) + `
		ORDER BY e.embedding <=> ` + placeholder(1) + ` ASC, n.id ASC
		LIMIT ` + placeholder(3)

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), opts.Model, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.NoteWithScore{}
	for rows.Next() {
		var note store.Note
		var score float64
		if err := rows.Scan(
			&note.ID,
			&note.Title,
			&note.Content,
			&note.CreatedTs,
			&note.UpdatedTs,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		results = append(results, &store.NoteWithScore{Note: &note, Score: float32(score)})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// FindNotesWithoutEmbedding finds notes that don't have an embedding for the specified model.
func (d *DB) FindNotesWithoutEmbedding(ctx context.Context, find *store.FindNotesWithoutEmbedding) ([]*store.Note, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT n.id, n.title, n.content, n.created_ts, n.updated_ts
		FROM note n
		LEFT JOIN note_embedding e ON n.id = e.note_id AND e.model = ` + placeholder(1) + `
		WHERE e.id IS NULL
		ORDER BY n.id ASC
		LIMIT ` + placeholder(2)

	rows, err := d.db.QueryContext(ctx, query, find.Model, limit)
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
	var dims int
	err := d.db.QueryRowContext(ctx, `SELECT vector_dims(embedding) FROM note_embedding LIMIT 1`).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to get embedding dimensions")
	}
	return dims, nil
}

func embeddingWhere(find *store.FindNoteEmbedding) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}
	if find == nil {
		return where, args
	}
	if find.NoteID != nil {
		where, args = append(where, "note_id = "+placeholder(len(args)+1)), append(args, *find.NoteID)
	}
	if find.Model != nil {
		where, args = append(where, "model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}
	return where, args
}
