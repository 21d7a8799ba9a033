// Package session ends access tokens before they expire. A revoked token id is
// remembered until the token's own expiry, after which it can be purged.
package session

import (
	"time"

	"librarydesk/internal/apperr"
)

type Revocation struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}

var ErrInvalid = apperr.Validation("INVALID_TOKEN", "token cannot be revoked")
