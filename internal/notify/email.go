package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/tasktrack/apiserver/config"
)

const temporaryPasswordSubject = "Your temporary password"

// ErrNotConfigured is returned by mailers that cannot deliver email.
var ErrNotConfigured = errors.New("smtp not configured")

// Mailer sends account emails.
type Mailer interface {
	SendTemporaryPassword(ctx context.Context, email, username, password string) error
}

// SMTPMailer delivers account emails through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	dialer := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.UseSSL
	if cfg.UseTLS || cfg.UseSSL {
		dialer.TLSConfig = &tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12}
	}
	return &SMTPMailer{
		dialer: dialer,
		from:   cfg.From,
	}
}

func (s *SMTPMailer) SendTemporaryPassword(ctx context.Context, email, username, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := temporaryPasswordMessage(s.from, email, username, password)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send temporary password email: %w", err)
	}
	return nil
}

func temporaryPasswordMessage(from, to, username, password string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", temporaryPasswordSubject)

	body := fmt.Sprintf(`
		<h3>Hello %s,</h3>
		<p>A password reset was requested for your account.</p>
		<p>Your temporary password is: <strong>%s</strong></p>
		<p>Sign in with it and change it right away.</p>
	`, html.EscapeString(username), html.EscapeString(password))

	m.SetBody("text/html", body)
	return m
}

// LogMailer stands in when no SMTP server is configured. It logs the attempt
// and reports ErrNotConfigured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) SendTemporaryPassword(ctx context.Context, email, username, _ string) error {
	l.logger.WarnContext(ctx, "smtp not configured, temporary password email not sent",
		slog.String("to", email),
		slog.String("username", username),
	)
	return ErrNotConfigured
}

// Configured reports whether the mailer can deliver email.
func (l *LogMailer) Configured() bool { return false }

func (s *SMTPMailer) Configured() bool { return true }

// New picks the SMTP mailer when a server is configured and the log mailer otherwise.
func New(cfg config.SMTPConfig, logger *slog.Logger) Mailer {
	if cfg.Server == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}
