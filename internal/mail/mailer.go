// Package mail delivers the plain-text messages the auth flows send.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"

	"github.com/jhillyerd/enmime"
)

// ErrNotConfigured is returned by Disabled for every send.
var ErrNotConfigured = errors.New("mail: smtp server not configured")

type Config struct {
	Server   string
	Port     string
	Address  string
	Password string
	FromName string
}

// ConfigFromEnv reads SMTP settings from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Server:   os.Getenv("SMTP_SERVER"),
		Port:     os.Getenv("SMTP_PORT"),
		Address:  os.Getenv("EMAIL_ADDRESS"),
		Password: os.Getenv("EMAIL_PASSWORD"),
		FromName: os.Getenv("EMAIL_FROM_NAME"),
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.FromName == "" {
		cfg.FromName = "Secure Notes"
	}
	return cfg
}

// Enabled reports whether enough is set to reach an SMTP server.
func (c Config) Enabled() bool { return c.Server != "" && c.Address != "" }

// SMTPMailer composes messages with enmime and hands them to an
// enmime.Sender, normally an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	sender   enmime.Sender
	from     string
	fromName string
}

// NewSMTPMailer connects nothing up front; each Send dials the server.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Address, cfg.Password, cfg.Server)
	}
	sender := enmime.NewSMTP(net.JoinHostPort(cfg.Server, cfg.Port), auth)
	return NewMailerWithSender(sender, cfg.Address, cfg.FromName)
}

// NewMailerWithSender is used by tests and by callers with a custom transport.
func NewMailerWithSender(sender enmime.Sender, from, fromName string) *SMTPMailer {
	return &SMTPMailer{sender: sender, from: from, fromName: fromName}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := enmime.Builder().
		From(m.fromName, m.from).
		To("", to).
		Subject(subject).
		Text([]byte(body)).
		Send(m.sender)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Disabled fails every send. It lets the service boot without SMTP; the
// auth flows then report delivery failures instead of sending.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, string) error { return ErrNotConfigured }
