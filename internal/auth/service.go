package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
)

const verificationSubject = "Verification Email"

// Service orchestrates registration, login, logout and email verification.
type Service struct {
	cfg         Config
	users       UserStore
	hasher      PasswordHasher
	tokens      *TokenService
	mailer      Mailer
	revocations RevocationStore
	logger      *zap.SugaredLogger
	now         func() time.Time

	// dummyHash keeps login for an unknown email as slow as a mismatch.
	dummyHash string
}

type ServiceOption func(*Service)

// WithRevocations enables logout-everywhere and revocation on password change.
func WithRevocations(r RevocationStore) ServiceOption {
	return func(s *Service) { s.revocations = r }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(cfg Config, users UserStore, hasher PasswordHasher, tokens *TokenService, mailer Mailer, logger *zap.SugaredLogger, opts ...ServiceOption) *Service {
	if hasher == nil {
		hasher = NewBcryptHasher(cfg.BcryptCost)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Service{
		cfg:    cfg,
		users:  users,
		hasher: hasher,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if h, err := hasher.Hash("timing-parity-placeholder"); err == nil {
		s.dummyHash = h
	}
	return s
}

// RegisterInput carries the fields of a sign-up request.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether s is a bare addr-spec such as a@x.com.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

// Register creates an unverified user and mails a verification link. When
// the mail cannot be delivered the user is kept and returned together with
// an error wrapping common.ErrDeliveryFailed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if !ValidEmail(email) {
		return nil, common.InvalidInput("a valid email is required")
	}
	if in.Password == "" {
		return nil, common.InvalidInput("password is required")
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("register lookup: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{Email: email, Name: name, PasswordHash: hash}
	if _, err := s.users.Create(ctx, u); err != nil {
		// the unique index catches a concurrent registration
		return nil, fmt.Errorf("register: %w", err)
	}
	s.logger.Infow("user registered", "user_id", u.ID)

	if err := s.SendVerification(ctx, u.Email); err != nil {
		s.logger.Warnw("verification email not delivered", "user_id", u.ID, "error", err)
		return u, err
	}
	return u, nil
}

// Session is the credential handed back by Login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *entity.User
}

// Login checks email and password. Unknown email and wrong password yield
// the same common.ErrInvalidCredentials. Email verification is not required.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			if s.dummyHash != "" {
				s.hasher.Verify(s.dummyHash, password)
			}
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if password == "" || !s.hasher.Verify(u.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if h, err := s.hasher.Hash(password); err == nil {
			if err := s.users.UpdatePassword(ctx, u.ID, h); err != nil {
				s.logger.Warnw("password rehash failed", "user_id", u.ID, "error", err)
			} else {
				u.PasswordHash = h
			}
		}
	}

	token, err := s.tokens.Issue(PurposeSession, strconv.FormatInt(u.ID, 10), s.cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	s.logger.Debugw("login succeeded", "user_id", u.ID)
	return &Session{Token: token, ExpiresAt: s.now().Add(s.cfg.SessionTTL), User: u}, nil
}

// VerifyEmail marks the user named by an email-verification token as
// verified. Verifying twice is harmless.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*entity.User, error) {
	claims, err := s.tokens.Verify(PurposeEmailVerification, token)
	if err != nil {
		return nil, err
	}
	if !ValidEmail(claims.Subject) {
		return nil, fmt.Errorf("%w: subject is not an email", common.ErrInvalidToken)
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}
	if !u.IsEmailVerified {
		if err := s.users.MarkEmailVerified(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("verify email: %w", err)
		}
		u.IsEmailVerified = true
		s.logger.Infow("email verified", "user_id", u.ID)
	}
	return u, nil
}

// SendVerification mints a verification token for email and mails the link.
func (s *Service) SendVerification(ctx context.Context, email string) error {
	token, err := s.tokens.Issue(PurposeEmailVerification, email, s.cfg.VerificationTTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	link := s.cfg.BaseURL + "/verify-email/" + token
	body := "Please verify your email address by opening the link below.\n\n" + link + "\n\n" +
		"The link expires in " + s.cfg.VerificationTTL.String() + ".\n"
	if err := s.mailer.Send(ctx, email, verificationSubject, body); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDeliveryFailed, err)
	}
	return nil
}

// ResendVerification sends a fresh link when email belongs to an unverified
// user. Every other case returns nil so the caller learns nothing about
// which addresses are registered.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return common.InvalidInput("a valid email is required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("resend lookup: %w", err)
	}
	if u.IsEmailVerified {
		return nil
	}
	if err := s.SendVerification(ctx, u.Email); err != nil {
		s.logger.Warnw("verification email not delivered", "user_id", u.ID, "error", err)
	}
	return nil
}

// RevokeSessions voids every session token issued to userID up to now. It
// is a no-op when no revocation store is configured.
func (s *Service) RevokeSessions(ctx context.Context, userID int64) error {
	if s.revocations == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.Infow("sessions revoked", "user_id", userID)
	return nil
}

// RevocationEnabled reports whether logout-everywhere has any effect.
func (s *Service) RevocationEnabled() bool { return s.revocations != nil }
