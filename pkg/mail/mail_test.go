package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sent struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestMailer(t *testing.T, cfg Config, sendErr error) (*SMTPMailer, *[]sent) {
	t.Helper()
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	var calls []sent
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		calls = append(calls, sent{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	m.now = func() time.Time { return time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC) }
	return m, &calls
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Host: "smtp.local", Port: 25, From: "genie@example.com"}, ""},
		{"missing host", Config{Port: 25, From: "genie@example.com"}, "host is required"},
		{"bad port", Config{Host: "smtp.local", Port: 0, From: "genie@example.com"}, "port must be"},
		{"missing from", Config{Host: "smtp.local", Port: 25}, "from address"},
		{"negative rate", Config{Host: "smtp.local", Port: 25, From: "g@x", RatePerMinute: -1}, "rate_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSMTPMailer_SendEmail(t *testing.T) {
	m, calls := newTestMailer(t, Config{Host: "smtp.local", Port: 2525, From: "genie@example.com", Username: "u", Password: "p"}, nil)

	msg := "Job with id [job-1] finished with status succeeded"
	require.NoError(t, m.SendEmail(context.Background(), "alice@example.com", msg, msg))

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, "smtp.local:2525", c.addr)
	assert.NotNil(t, c.auth)
	assert.Equal(t, "genie@example.com", c.from)
	assert.Equal(t, []string{"alice@example.com"}, c.to)
	assert.Contains(t, c.msg, "Subject: "+msg+"\r\n")
	assert.Contains(t, c.msg, "To: alice@example.com\r\n")
	assert.Contains(t, c.msg, "\r\n\r\n"+msg+"\r\n")
}

func TestSMTPMailer_NoAuthWithoutUsername(t *testing.T) {
	m, calls := newTestMailer(t, Config{Host: "smtp.local", Port: 25, From: "genie@example.com"}, nil)
	require.NoError(t, m.SendEmail(context.Background(), "alice@example.com", "s", "b"))
	assert.Nil(t, (*calls)[0].auth)
}

func TestSMTPMailer_Errors(t *testing.T) {
	m, calls := newTestMailer(t, Config{Host: "smtp.local", Port: 25, From: "genie@example.com"}, errors.New("connection refused"))

	err := m.SendEmail(context.Background(), "alice@example.com", "s", "b")
	require.Error(t, err)
	var nerr *NotificationError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "alice@example.com", nerr.To)
	assert.Contains(t, err.Error(), "connection refused")

	err = m.SendEmail(context.Background(), "  ", "s", "b")
	require.Error(t, err)

	err = m.SendEmail(context.Background(), "alice@example.com\r\nBcc: eve@example.com", "s", "b")
	require.Error(t, err)
	assert.Len(t, *calls, 1, "invalid recipients never reach the relay")
}

func TestSMTPMailer_RateLimitHonoursContext(t *testing.T) {
	m, calls := newTestMailer(t, Config{Host: "smtp.local", Port: 25, From: "genie@example.com", RatePerMinute: 1}, nil)

	require.NoError(t, m.SendEmail(context.Background(), "a@example.com", "s", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.SendEmail(ctx, "a@example.com", "s", "b")
	require.Error(t, err)
	assert.Len(t, *calls, 1)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.SendEmail(context.Background(), "alice@example.com", "subject", "body"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "alice@example.com", logs.All()[0].ContextMap()["to"])
}
