// Package mail sends job completion notifications.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NotificationError reports a message that could not be delivered.
type NotificationError struct {
	To  string
	Err error
}

// Error implements the error interface.
func (e *NotificationError) Error() string {
	return fmt.Sprintf("send mail to %s: %v", e.To, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Config configures the SMTP mailer.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// RatePerMinute bounds outgoing messages. Zero disables limiting.
	RatePerMinute int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("mail host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("mail port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.From) == "" {
		return fmt.Errorf("mail from address is required")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("mail rate_per_minute must be >= 0")
	}
	return nil
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	cfg     Config
	limiter *rate.Limiter
	send    sendFunc
	now     func() time.Time
}

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &SMTPMailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
	if cfg.RatePerMinute > 0 {
		m.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return m, nil
}

// SendEmail sends one message. Waiting for the rate limiter honours ctx.
func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return &NotificationError{To: to, Err: fmt.Errorf("empty recipient")}
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return &NotificationError{To: to, Err: fmt.Errorf("header contains line break")}
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return &NotificationError{To: to, Err: err}
		}
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{to}, m.message(to, subject, body)); err != nil {
		return &NotificationError{To: to, Err: err}
	}
	return nil
}

func (m *SMTPMailer) message(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + m.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogMailer records messages in the log instead of sending them. It is used
// when mail delivery is disabled.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a LogMailer. A nil logger discards messages.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendEmail logs the message and always succeeds.
func (m *LogMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	_ = ctx
	m.logger.Info("Mail delivery disabled; notification not sent",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}
