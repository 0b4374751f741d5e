package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/notesrag/store"
)

func (d *DB) CreateNote(ctx context.Context, create *store.Note) (*store.Note, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}

	stmt := `INSERT INTO note (title, content, created_ts, updated_ts) VALUES (` + placeholders(4) + `) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.Title,
		create.Content,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create note")
	}
	return create, nil
}

func (d *DB) ListNotes(ctx context.Context, find *store.FindNote) ([]*store.Note, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `SELECT id, title, content, created_ts, updated_ts FROM note WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	if find.Offset != nil {
		query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notes")
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

func (d *DB) UpdateNote(ctx context.Context, update *store.UpdateNote) (*store.Note, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Content; v != nil {
		set, args = append(set, "content = "+placeholder(len(args)+1)), append(args, *v)
	}
	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)

	stmt := `UPDATE note SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)+1) +
		` RETURNING id, title, content, created_ts, updated_ts`
	args = append(args, update.ID)

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update note")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var note store.Note
	if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.CreatedTs, &note.UpdatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to scan note")
	}
	return &note, rows.Err()
}

func (d *DB) DeleteNote(ctx context.Context, delete *store.DeleteNote) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM note WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return false, errors.Wrap(err, "failed to delete note")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}
