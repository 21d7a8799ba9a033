// Package settings holds the runtime-editable library settings.
package settings

import (
	"time"

	"librarydesk/internal/apperr"
)

const (
	KeySiteName      = "site_name"
	KeyItemsPerPage  = "items_per_page"
	KeyMaxBorrowDays = "max_borrow_days"
	KeyMaxRenewals   = "max_renewals"
	KeyFinePerDay    = "fine_per_day"
	KeyCurrency      = "currency"
	KeySMTPHost      = "smtp_host"
	KeySMTPPort      = "smtp_port"
	KeyFromEmail     = "from_email"
	KeyFromName      = "from_name"
)

// Defaults apply whenever a key has no stored value.
var Defaults = map[string]any{
	KeySiteName:      "Parliament Library",
	KeyItemsPerPage:  10,
	KeyMaxBorrowDays: 14,
	KeyMaxRenewals:   2,
	KeyFinePerDay:    1.00,
	KeyCurrency:      "GHS",
	KeySMTPHost:      "",
	KeySMTPPort:      587,
	KeyFromEmail:     "noreply@library.local",
	KeyFromName:      "Parliament Library",
}

// Setting is one persisted key with its JSON-encoded value.
type Setting struct {
	Key         string    `json:"key"`
	Value       []byte    `json:"-"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrInvalidKey   = apperr.Validation("INVALID_SETTING_KEY", "setting key is required")
	ErrInvalidValue = apperr.Validation("INVALID_SETTING_VALUE", "setting value is invalid")
	ErrNotFound     = apperr.NotFound("SETTING_NOT_FOUND", "setting not found")
)
