// Package mail renders templated messages and hands them to a transport.
package mail

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Sender delivers a templated message. It reports false when the message could
// not be rendered or delivered; the cause is logged by the sender.
type Sender interface {
	Send(ctx context.Context, templateKey, recipient string, data map[string]any) bool
}

const (
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "password-reset"
	TemplateDueReminder   = "book-due-reminder"
	TemplateTest          = "test"
)

//go:embed templates.yaml
var builtinTemplates []byte

type templateSource struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Message is a rendered mail ready for a transport.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Catalog holds the parsed templates plus values every template receives.
type Catalog struct {
	templates map[string]compiled
	globals   map[string]any
}

// NewCatalog parses the built-in templates.
func NewCatalog(siteName, siteURL string) (*Catalog, error) {
	return ParseCatalog(builtinTemplates, siteName, siteURL)
}

func ParseCatalog(src []byte, siteName, siteURL string) (*Catalog, error) {
	var raw map[string]templateSource
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	c := &Catalog{
		templates: make(map[string]compiled, len(raw)),
		globals:   map[string]any{"site_name": siteName, "site_url": siteURL},
	}
	for key, t := range raw {
		if strings.TrimSpace(t.Subject) == "" || strings.TrimSpace(t.Body) == "" {
			return nil, fmt.Errorf("template %s: subject and body are required", key)
		}
		subj, err := template.New(key + ".subject").Option("missingkey=zero").Parse(t.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", key, err)
		}
		body, err := template.New(key + ".body").Option("missingkey=zero").Parse(t.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", key, err)
		}
		c.templates[key] = compiled{subject: subj, body: body}
	}
	return c, nil
}

func (c *Catalog) Has(key string) bool {
	_, ok := c.templates[key]
	return ok
}

// Render fills the template named key for recipient.
func (c *Catalog) Render(key, recipient string, data map[string]any) (Message, error) {
	t, ok := c.templates[key]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", key)
	}
	vars := maps.Clone(c.globals)
	maps.Copy(vars, data)

	var subj, body bytes.Buffer
	if err := t.subject.Execute(&subj, vars); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", key, err)
	}
	if err := t.body.Execute(&body, vars); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", key, err)
	}
	return Message{To: recipient, Subject: subj.String(), Body: body.String()}, nil
}

// LogSender renders messages and logs them instead of delivering. It is used
// when no SMTP host is configured.
type LogSender struct {
	catalog *Catalog
	log     *slog.Logger
}

func NewLogSender(catalog *Catalog, log *slog.Logger) *LogSender {
	return &LogSender{catalog: catalog, log: log}
}

func (s *LogSender) Send(ctx context.Context, key, recipient string, data map[string]any) bool {
	msg, err := s.catalog.Render(key, recipient, data)
	if err != nil {
		s.log.ErrorContext(ctx, "mail render failed", "template", key, "error", err)
		return false
	}
	s.log.InfoContext(ctx, "mail not delivered, no smtp host", "template", key, "to", msg.To, "subject", msg.Subject)
	return true
}

// NewSender delivers over SMTP when cfg names a host and logs otherwise.
func NewSender(cfg SMTPConfig, catalog *Catalog, log *slog.Logger) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		return NewLogSender(catalog, log)
	}
	return NewSMTPSender(cfg, catalog, log)
}
