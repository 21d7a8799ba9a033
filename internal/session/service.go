package session

import (
	"context"
	"log/slog"
	"time"

	"librarydesk/internal/apperr"
	"librarydesk/internal/platform/clock"
)

type Service struct {
	repo  Repository
	clock clock.Clock
	log   *slog.Logger
}

func NewService(repo Repository, c clock.Clock, log *slog.Logger) *Service {
	return &Service{repo: repo, clock: c, log: log}
}

// Revoke blocks the token jti until expiresAt. Tokens already past expiry are
// rejected by signature checks anyway and are not stored.
func (s *Service) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	if jti == "" {
		return ErrInvalid.WithMessage("token has no id")
	}
	now := s.clock.Now()
	if !expiresAt.After(now) {
		return nil
	}
	err := s.repo.Revoke(ctx, Revocation{JTI: jti, UserID: userID, ExpiresAt: expiresAt, RevokedAt: now})
	if err != nil {
		return apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "token revoked", "user_id", userID, "jti", jti)
	return nil
}

func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	ok, err := s.repo.IsRevoked(ctx, jti, s.clock.Now())
	if err != nil {
		return false, apperr.Persistence(err)
	}
	return ok, nil
}

// Purge drops revocations whose tokens have expired.
func (s *Service) Purge(ctx context.Context) (int, error) {
	n, err := s.repo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "expired revocations purged", "deleted", n)
	return n, nil
}
