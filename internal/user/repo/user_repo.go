package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, hashed_password, is_email_verified, created_at, updated_at`

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  hashed_password TEXT NOT NULL,
  is_email_verified BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row and fills in ID and timestamps.
// A duplicate email yields common.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (email, name, hashed_password, is_email_verified)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, q, u.Email, u.Name, u.PasswordHash, u.IsEmailVerified)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return 0, translate("create user", err)
	}
	return u.ID, nil
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

// GetByEmail returns a user matched by email exactly as stored.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		return nil, translate("get user by email", err)
	}
	return &u, nil
}

// Update writes the mutable profile fields and refreshes UpdatedAt.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	const q = `UPDATE users SET email = $2, name = $3, hashed_password = $4, is_email_verified = $5, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	row := r.db.QueryRowxContext(ctx, q, u.ID, u.Email, u.Name, u.PasswordHash, u.IsEmailVerified)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		return translate("update user", err)
	}
	return nil
}

// MarkEmailVerified flips is_email_verified to true.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_email_verified = true, updated_at = NOW() WHERE id = $1`, id)
	return affected("verify user email", res, err)
}

// UpdatePassword replaces the stored hash, used for transparent rehashing.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return affected("update password", res, err)
}

// Delete removes a user; notes go with it through ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected("delete user", res, err)
}

func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return translate(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	return nil
}

func translate(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, common.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
