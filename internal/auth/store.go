package auth

import (
	"context"
	"time"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

// UserStore is the slice of the user repository the auth core needs.
// Missing rows are reported as common.ErrNotFound.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) (int64, error)
	MarkEmailVerified(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RevocationStore records, per user, the instant before which every issued
// session token is void. A zero time means nothing was revoked.
type RevocationStore interface {
	RevokedAt(ctx context.Context, userID int64) (time.Time, error)
	Revoke(ctx context.Context, userID int64, at time.Time) error
}
