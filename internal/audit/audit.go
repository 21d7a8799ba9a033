// Package audit keeps the system log: who did what, from where.
package audit

import (
	"strings"
	"time"

	"librarydesk/internal/apperr"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

// Entry is one row of the system log. UserID is nil for anonymous or system actions.
type Entry struct {
	ID        int64          `json:"id"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	IP        string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	UserID    *string        `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Filter selects a page of entries, newest first. From and To bound created_at
// inclusively and exclusively.
type Filter struct {
	Level  Level
	UserID string
	Search string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (f Filter) normalized() (Filter, error) {
	f.Level = Level(strings.ToLower(strings.TrimSpace(string(f.Level))))
	f.Search = strings.TrimSpace(f.Search)
	if f.Level != "" && !f.Level.Valid() {
		return Filter{}, ErrInvalid.WithMessage("unknown log level %q", f.Level)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return Filter{}, ErrInvalid.WithMessage("from must be before to")
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

var ErrInvalid = apperr.Validation("INVALID_LOG_FILTER", "log filter is invalid")
