package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

// Purpose separates the two token domains signed with the same key.
type Purpose string

const (
	PurposeSession           Purpose = "session"
	PurposeEmailVerification Purpose = "email_verification"
)

// Claims is the JWT payload for both purposes.
type Claims struct {
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 tokens with a single secret
// injected at construction. It holds no mutable state.
type TokenService struct {
	key []byte
	now func() time.Time
	ids *utilities.IDGenerator
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithIDGenerator sets the generator used for the jti claim.
func WithIDGenerator(g *utilities.IDGenerator) TokenOption {
	return func(s *TokenService) { s.ids = g }
}

func NewTokenService(secret []byte, opts ...TokenOption) *TokenService {
	key := make([]byte, len(secret))
	copy(key, secret)
	s := &TokenService{key: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = utilities.NewIDGenerator(utilities.NodeIDFromEnv())
	}
	return s
}

// Issue signs a token carrying subject that expires ttl from now. The exp
// claim has whole-second precision and is rounded up, so the token is never
// rejected before now+ttl.
func (s *TokenService) Issue(purpose Purpose, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	now := s.now()
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); whole.Before(exp) {
		exp = whole.Add(time.Second)
	}
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ids.Next(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and purpose in one step. Every
// failure is reported as common.ErrInvalidToken; the cause is kept for logs.
func (s *TokenService) Verify(purpose Purpose, token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty", common.ErrInvalidToken)
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %q", common.ErrInvalidToken, claims.Purpose)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}
	return claims, nil
}

// Subject is Verify reduced to the subject claim.
func (s *TokenService) Subject(purpose Purpose, token string) (string, error) {
	c, err := s.Verify(purpose, token)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}
