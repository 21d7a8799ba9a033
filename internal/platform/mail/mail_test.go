package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/platform/logging"
)

func TestBuiltinCatalog(t *testing.T) {
	c, err := NewCatalog("City Library", "https://lib.example")
	require.NoError(t, err)

	for _, key := range []string{TemplateWelcome, TemplatePasswordReset, TemplateDueReminder, TemplateTest} {
		assert.True(t, c.Has(key), key)
	}
}

func TestCatalog_Render(t *testing.T) {
	c, err := NewCatalog("City Library", "https://lib.example")
	require.NoError(t, err)

	msg, err := c.Render(TemplateDueReminder, "ama@example.com", map[string]any{
		"name":         "Ama",
		"book_title":   "Things Fall Apart",
		"due_date":     "2024-03-15",
		"fine_per_day": "1.00",
		"currency":     "GHS",
	})
	require.NoError(t, err)

	assert.Equal(t, "ama@example.com", msg.To)
	assert.Equal(t, `"Things Fall Apart" is due on 2024-03-15`, msg.Subject)
	assert.Contains(t, msg.Body, "Hello Ama")
	assert.Contains(t, msg.Body, "https://lib.example")

	_, err = c.Render("nope", "ama@example.com", nil)
	assert.Error(t, err)
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("x: {subject: '{{.a'}"), "", "")
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(":::"), "", "")
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("welcome: {subject: 'Hi'}"), "", "")
	assert.ErrorContains(t, err, "welcome")
}

func TestSMTPSender_Send(t *testing.T) {
	c, err := NewCatalog("City Library", "https://lib.example")
	require.NoError(t, err)

	cfg := SMTPConfig{Host: "smtp.example", Port: 587, Username: "u", Password: "p", From: "desk@lib.example", FromName: "Desk"}

	t.Run("delivers", func(t *testing.T) {
		s := NewSMTPSender(cfg, c, logging.Discard())
		s.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

		var gotAddr string
		var gotMsg []byte
		s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr = addr
			assert.Equal(t, "desk@lib.example", from)
			assert.Equal(t, []string{"kofi@example.com"}, to)
			gotMsg = msg
			return nil
		}

		ok := s.Send(context.Background(), TemplateTest, "kofi@example.com", map[string]any{"sent_at": "now"})
		assert.True(t, ok)
		assert.Equal(t, "smtp.example:587", gotAddr)
		assert.True(t, strings.HasPrefix(string(gotMsg), `From: "Desk" <desk@lib.example>`))
		assert.Contains(t, string(gotMsg), "\r\n\r\nThis is a test email sent from City Library.")
	})

	t.Run("delivery failure", func(t *testing.T) {
		s := NewSMTPSender(cfg, c, logging.Discard())
		s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
		assert.False(t, s.Send(context.Background(), TemplateTest, "kofi@example.com", nil))
	})

	t.Run("unknown template", func(t *testing.T) {
		s := NewSMTPSender(cfg, c, logging.Discard())
		s.send = func(string, smtp.Auth, string, []string, []byte) error {
			t.Fatal("must not send")
			return nil
		}
		assert.False(t, s.Send(context.Background(), "missing", "kofi@example.com", nil))
	})

	t.Run("bad recipient", func(t *testing.T) {
		s := NewSMTPSender(cfg, c, logging.Discard())
		assert.False(t, s.Send(context.Background(), TemplateTest, "not an address", nil))
	})
}

func TestLogSender(t *testing.T) {
	c, err := NewCatalog("City Library", "")
	require.NoError(t, err)
	s := NewLogSender(c, logging.Discard())

	assert.True(t, s.Send(context.Background(), TemplateWelcome, "a@b.c", nil))
	assert.False(t, s.Send(context.Background(), "missing", "a@b.c", nil))
}

func TestNewSender_PicksTransport(t *testing.T) {
	c, err := NewCatalog("City Library", "")
	require.NoError(t, err)

	assert.IsType(t, &LogSender{}, NewSender(SMTPConfig{Host: " "}, c, logging.Discard()))
	assert.IsType(t, &SMTPSender{}, NewSender(SMTPConfig{Host: "smtp.example.org", Port: 587}, c, logging.Discard()))
}
