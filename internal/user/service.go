package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

// Store is the persistence the user service depends on.
type Store interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id int64) error
}

// AuthFlows is the part of auth.Service that profile changes trigger.
type AuthFlows interface {
	SendVerification(ctx context.Context, email string) error
	RevokeSessions(ctx context.Context, userID int64) error
}

// UserService manages the profile of an already authenticated user.
type UserService struct {
	repo   Store
	hasher auth.PasswordHasher
	flows  AuthFlows
	logger *zap.SugaredLogger
}

func NewUserService(repo Store, hasher auth.PasswordHasher, flows AuthFlows, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = auth.NewBcryptHasher(12)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{repo: repo, hasher: hasher, flows: flows, logger: logger}
}

// UpdateInput holds optional profile changes; nil fields are left alone.
type UpdateInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Get returns the user targetID when identity is that user.
func (s *UserService) Get(ctx context.Context, identity auth.Identity, targetID int64) (*entity.User, error) {
	if err := auth.AuthorizeUser(identity, targetID); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, targetID)
}

// Update applies in to the caller's own record. A new email resets the
// verified flag and sends a fresh verification link; a delivery failure is
// returned wrapped in common.ErrDeliveryFailed together with the saved user.
// A new password revokes the caller's existing sessions.
func (s *UserService) Update(ctx context.Context, identity auth.Identity, targetID int64, in UpdateInput) (*entity.User, error) {
	if err := auth.AuthorizeUser(identity, targetID); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	emailChanged := false
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := auth.NormalizeEmail(*in.Email)
		if !auth.ValidEmail(email) {
			return nil, common.InvalidInput("a valid email is required")
		}
		if email != u.Email {
			if _, err := s.repo.GetByEmail(ctx, email); err == nil {
				return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
			} else if !errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("email lookup: %w", err)
			}
			u.Email = email
			u.IsEmailVerified = false
			emailChanged = true
		}
	}
	passwordChanged := false
	if in.Password != nil {
		if *in.Password == "" {
			return nil, common.InvalidInput("password must not be empty")
		}
		if len(*in.Password) > auth.MaxPasswordBytes {
			return nil, auth.ErrPasswordTooLong
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		passwordChanged = true
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("user updated", "user_id", u.ID, "email_changed", emailChanged, "password_changed", passwordChanged)

	if passwordChanged {
		if err := s.flows.RevokeSessions(ctx, u.ID); err != nil {
			s.logger.Errorw("revoke sessions after password change", "user_id", u.ID, "error", err)
		}
	}
	if emailChanged {
		if err := s.flows.SendVerification(ctx, u.Email); err != nil {
			return u, err
		}
	}
	return u, nil
}

// Delete removes the caller's own account. Their notes are removed by the
// database cascade.
func (s *UserService) Delete(ctx context.Context, identity auth.Identity, targetID int64) error {
	if err := auth.AuthorizeUser(identity, targetID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, targetID); err != nil {
		return err
	}
	s.logger.Infow("user deleted", "user_id", targetID)
	return nil
}
