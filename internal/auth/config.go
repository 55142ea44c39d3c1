package auth

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinSecretLength is the shortest HMAC secret accepted at boot.
const MinSecretLength = 32

type Config struct {
	// Secret signs both session and email-verification tokens.
	Secret          []byte
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	BcryptCost      int
	CookieName      string
	CookieSecure    bool
	// BaseURL prefixes the verification link sent by email.
	BaseURL string
	// ConcealForbidden makes note routes answer 404 instead of 403 to
	// non-owners so a note's existence is not confirmed.
	ConcealForbidden bool
}

// ConfigFromEnv reads auth settings from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Secret:           []byte(os.Getenv("SECRET_KEY")),
		SessionTTL:       24 * time.Hour,
		VerificationTTL:  24 * time.Hour,
		BcryptCost:       12,
		CookieName:       "access_token",
		CookieSecure:     os.Getenv("COOKIE_SECURE") == "1",
		BaseURL:          strings.TrimRight(os.Getenv("BASE_URL"), "/"),
		ConcealForbidden: os.Getenv("CONCEAL_FORBIDDEN") != "0",
	}
	if d, err := time.ParseDuration(os.Getenv("SESSION_TTL")); err == nil && d > 0 {
		cfg.SessionTTL = d
	}
	if d, err := time.ParseDuration(os.Getenv("VERIFICATION_TTL")); err == nil && d > 0 {
		cfg.VerificationTTL = d
	}
	if c, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil {
		cfg.BcryptCost = c
	}
	if n := os.Getenv("COOKIE_NAME"); n != "" {
		cfg.CookieName = n
	}
	return cfg
}

// Validate rejects configurations that would make tokens forgeable.
func (c Config) Validate() error {
	if len(c.Secret) == 0 {
		return errors.New("SECRET_KEY is required")
	}
	if len(c.Secret) < MinSecretLength {
		return errors.New("SECRET_KEY must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 || c.VerificationTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	return nil
}
