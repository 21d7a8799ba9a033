package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"librarydesk/internal/apperr"
	"librarydesk/internal/httpx"
	"librarydesk/internal/identity"
	"librarydesk/internal/platform/clock"
)

// Trail writes and reads the system log. Writes never fail the caller; a lost
// entry is reported through the process logger instead.
type Trail struct {
	repo  Repository
	clock clock.Clock
	log   *slog.Logger
}

func NewTrail(repo Repository, c clock.Clock, log *slog.Logger) *Trail {
	return &Trail{repo: repo, clock: c, log: log}
}

// Record stores e, filling the user from the context principal when unset.
func (t *Trail) Record(ctx context.Context, e Entry) {
	if e.Level == "" {
		e.Level = LevelInfo
	}
	if e.UserID == nil {
		if p := identity.FromContext(ctx); p.Authenticated() {
			uid := p.UserID
			e.UserID = &uid
		}
	}
	if err := t.repo.Insert(ctx, &e); err != nil {
		t.log.ErrorContext(ctx, "audit entry lost", "message", e.Message, "err", err)
	}
}

// Middleware records message for every request next answers with a status
// below 400. Path values named in keys are copied into the entry context.
func (t *Trail) Middleware(message string, keys ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rw := httpx.NewStatusRecorder(w)
			next(rw, r)
			if rw.Status() >= http.StatusBadRequest {
				return
			}
			fields := map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rw.Status(),
				"request_id": httpx.RequestIDFrom(r),
			}
			for _, k := range keys {
				if v := r.PathValue(k); v != "" {
					fields[k] = v
				}
			}
			t.Record(r.Context(), Entry{
				Level:     LevelInfo,
				Message:   message,
				Context:   fields,
				IP:        httpx.ClientIP(r),
				UserAgent: r.UserAgent(),
			})
		}
	}
}

func (t *Trail) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	f, err := f.normalized()
	if err != nil {
		return nil, 0, err
	}
	out, total, err := t.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	if out == nil {
		out = []Entry{}
	}
	return out, total, nil
}

// Cleanup drops entries older than olderThanDays.
func (t *Trail) Cleanup(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays < 1 {
		return 0, ErrInvalid.WithMessage("days must be at least 1")
	}
	cutoff := t.clock.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	n, err := t.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, apperr.Persistence(err)
	}
	t.log.InfoContext(ctx, "system log cleaned up", "deleted", n, "older_than_days", olderThanDays)
	return n, nil
}
