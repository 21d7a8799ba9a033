package mail

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers rendered messages over SMTP with STARTTLS when offered.
type SMTPSender struct {
	cfg     SMTPConfig
	catalog *Catalog
	log     *slog.Logger
	send    sendFunc
	now     func() time.Time
}

func NewSMTPSender(cfg SMTPConfig, catalog *Catalog, log *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, catalog: catalog, log: log, send: smtp.SendMail, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, key, recipient string, data map[string]any) bool {
	if _, err := mail.ParseAddress(recipient); err != nil {
		s.log.WarnContext(ctx, "mail recipient invalid", "template", key, "to", recipient)
		return false
	}
	msg, err := s.catalog.Render(key, recipient, data)
	if err != nil {
		s.log.ErrorContext(ctx, "mail render failed", "template", key, "error", err)
		return false
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, s.cfg.From, []string{recipient}, s.encode(msg)); err != nil {
		s.log.ErrorContext(ctx, "mail delivery failed", "template", key, "to", recipient, "error", err)
		return false
	}
	s.log.InfoContext(ctx, "mail sent", "template", key, "to", recipient)
	return true
}

func (s *SMTPSender) encode(msg Message) []byte {
	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}).String()

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
