// Package notification stores in-app messages for users.
package notification

import (
	"time"

	"librarydesk/internal/apperr"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindDanger  Kind = "danger"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindWarning, KindDanger:
		return true
	}
	return false
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// pageBounds clamps paging to non-negative values and fills defaults.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return min(limit, MaxLimit), max(offset, 0)
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"type"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrNotFound = apperr.NotFound("NOTIFICATION_NOT_FOUND", "notification not found")
	ErrInvalid  = apperr.Validation("INVALID_NOTIFICATION", "notification is invalid")
)
