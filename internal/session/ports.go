package session

import (
	"context"
	"time"
)

type Repository interface {
	// Revoke is idempotent for a jti.
	Revoke(ctx context.Context, r Revocation) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
