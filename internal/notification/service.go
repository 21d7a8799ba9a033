package notification

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"librarydesk/internal/apperr"
	"librarydesk/internal/identity"
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

func (s *Service) Create(ctx context.Context, userID, title, message string, kind Kind, link string) (Notification, error) {
	n := Notification{
		UserID:  userID,
		Title:   strings.TrimSpace(title),
		Message: strings.TrimSpace(message),
		Kind:    kind,
		Link:    link,
	}
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	switch {
	case n.UserID == "":
		return Notification{}, ErrInvalid.WithMessage("user is required")
	case n.Title == "" || n.Message == "":
		return Notification{}, ErrInvalid.WithMessage("title and message are required")
	case !n.Kind.Valid():
		return Notification{}, ErrInvalid.WithMessage("unknown notification type %q", kind)
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return Notification{}, apperr.Persistence(err)
	}
	return n, nil
}

// Notify is Create for callers that only care whether it worked.
func (s *Service) Notify(ctx context.Context, userID, title, message, kind, link string) error {
	_, err := s.Create(ctx, userID, title, message, Kind(kind), link)
	return err
}

func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	limit, offset = pageBounds(limit, offset)
	out, total, err := s.repo.ListForUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	if out == nil {
		out = []Notification{}
	}
	return out, total, nil
}

// owned loads the notification and hides it from anyone but its recipient and admins.
func (s *Service) owned(ctx context.Context, p identity.Principal, id string) (Notification, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return Notification{}, apperr.Persistence(err)
	}
	if !p.Owns(n.UserID) && !p.IsAdmin() {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, p identity.Principal, id string) error {
	n, err := s.owned(ctx, p, id)
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	return apperr.Persistence(s.repo.MarkRead(ctx, id))
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence(err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence(err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, p identity.Principal, id string) error {
	if _, err := s.owned(ctx, p, id); err != nil {
		return err
	}
	return apperr.Persistence(s.repo.Delete(ctx, id))
}

// Cleanup removes read notifications older than olderThanDays.
func (s *Service) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays < 1 {
		return 0, ErrInvalid.WithMessage("days must be at least 1")
	}
	cutoff := s.clock.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	n, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "notifications cleaned up", "deleted", n, "older_than_days", olderThanDays)
	return n, nil
}
