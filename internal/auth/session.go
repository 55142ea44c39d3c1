package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

// Identity is the resolved caller of a protected operation.
type Identity struct {
	ID            int64
	Email         string
	Name          string
	EmailVerified bool
}

func identityOf(u *entity.User) Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, EmailVerified: u.IsEmailVerified}
}

// Resolver turns a raw session credential into an Identity. It only reads.
type Resolver struct {
	tokens      *TokenService
	users       UserStore
	revocations RevocationStore
}

// NewResolver builds a Resolver; revocations may be nil.
func NewResolver(tokens *TokenService, users UserStore, revocations RevocationStore) *Resolver {
	return &Resolver{tokens: tokens, users: users, revocations: revocations}
}

// Resolve returns common.ErrUnauthenticated for a missing credential, a
// token that fails verification, a revoked token, or a subject that no
// longer maps to a user. Store failures come back unwrapped from that kind.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing credential", common.ErrUnauthenticated)
	}
	claims, err := r.tokens.Verify(PurposeSession, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid credential: %v", common.ErrUnauthenticated, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, fmt.Errorf("%w: invalid credential subject", common.ErrUnauthenticated)
	}

	if r.revocations != nil {
		revokedAt, err := r.revocations.RevokedAt(ctx, id)
		if err != nil {
			return Identity{}, fmt.Errorf("revocation lookup: %w", err)
		}
		if !revokedAt.IsZero() && (claims.IssuedAt == nil || !claims.IssuedAt.Time.After(revokedAt)) {
			return Identity{}, fmt.Errorf("%w: credential revoked", common.ErrUnauthenticated)
		}
	}

	u, err := r.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: stale identity", common.ErrUnauthenticated)
		}
		return Identity{}, fmt.Errorf("resolve session: %w", err)
	}
	return identityOf(u), nil
}
