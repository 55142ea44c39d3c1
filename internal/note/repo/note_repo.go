package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/note/entity"
)

const foreignKeyViolation = "23503"

const noteColumns = `id, title, content, owner_id, created_at, updated_at`

// NoteRepo provides data access for the notes table using sqlx.
type NoteRepo struct {
	db *sqlx.DB
}

func NewNoteRepo(db *sqlx.DB) *NoteRepo { return &NoteRepo{db: db} }

// EnsureTable creates the notes table if not exists. The users table must
// exist first because of the owner foreign key.
func (r *NoteRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS notes (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  content TEXT NOT NULL DEFAULT '',
  owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS notes_owner_id_idx ON notes (owner_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *NoteRepo) GetByID(ctx context.Context, id int64) (*entity.Note, error) {
	var n entity.Note
	if err := r.db.GetContext(ctx, &n, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id); err != nil {
		return nil, translate("get note", err)
	}
	return &n, nil
}

// ListByOwner returns one page of a user's notes, oldest first.
func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]entity.Note, error) {
	notes := []entity.Note{}
	q := `SELECT ` + noteColumns + ` FROM notes WHERE owner_id = $1 ORDER BY id LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &notes, q, ownerID, limit, offset); err != nil {
		return nil, translate("list notes", err)
	}
	return notes, nil
}

// Create inserts n and fills in ID and timestamps.
func (r *NoteRepo) Create(ctx context.Context, n *entity.Note) (int64, error) {
	const q = `INSERT INTO notes (title, content, owner_id) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, q, n.Title, n.Content, n.OwnerID)
	if err := row.Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return 0, translate("create note", err)
	}
	return n.ID, nil
}

// Update rewrites title and content. The owner never changes.
func (r *NoteRepo) Update(ctx context.Context, n *entity.Note) error {
	const q = `UPDATE notes SET title = $2, content = $3, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	row := r.db.QueryRowxContext(ctx, q, n.ID, n.Title, n.Content)
	if err := row.Scan(&n.UpdatedAt); err != nil {
		return translate("update note", err)
	}
	return nil
}

func (r *NoteRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return translate("delete note", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete note: %w", common.ErrNotFound)
	}
	return nil
}

func translate(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		// owner vanished between session resolution and insert
		return fmt.Errorf("%s: %w", op, common.ErrUnauthenticated)
	}
	return fmt.Errorf("%s: %w", op, err)
}
