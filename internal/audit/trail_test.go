package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/identity"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/logging"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
	cutoff  time.Time
	last    Filter
}

func (m *memRepo) Insert(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	e.ID = int64(len(m.entries) + 1)
	e.CreatedAt = now
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = f
	if m.fail != nil {
		return nil, 0, m.fail
	}
	return nil, len(m.entries), nil
}

func (m *memRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.cutoff = cutoff
	return 3, nil
}

func newTrail() (*Trail, *memRepo) {
	repo := &memRepo{}
	return NewTrail(repo, clock.Fixed(now), logging.Discard()), repo
}

func TestTrail_RecordFillsUserFromContext(t *testing.T) {
	trail, repo := newTrail()
	ctx := identity.WithPrincipal(context.Background(), identity.Principal{UserID: "u-1", Role: identity.RoleLibrarian})

	trail.Record(ctx, Entry{Message: "settings changed"})
	trail.Record(context.Background(), Entry{Level: LevelWarning, Message: "anonymous"})

	require.Len(t, repo.entries, 2)
	assert.Equal(t, LevelInfo, repo.entries[0].Level)
	require.NotNil(t, repo.entries[0].UserID)
	assert.Equal(t, "u-1", *repo.entries[0].UserID)
	assert.Nil(t, repo.entries[1].UserID)
}

func TestTrail_RecordFailureIsSwallowed(t *testing.T) {
	trail, repo := newTrail()
	repo.fail = errors.New("connection refused")

	assert.NotPanics(t, func() { trail.Record(context.Background(), Entry{Message: "book borrowed"}) })
	assert.Empty(t, repo.entries)
}

func TestTrail_MiddlewareRecordsSuccessOnly(t *testing.T) {
	trail, repo := newTrail()
	handler := trail.Middleware("book returned", "id")(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "bad" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"b-1", "bad"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/borrows/"+id+"/return", nil)
		req.SetPathValue("id", id)
		req.RemoteAddr = "10.0.0.7:5123"
		req.Header.Set("User-Agent", "desk/1.0")
		handler(httptest.NewRecorder(), req)
	}

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, "book returned", e.Message)
	assert.Equal(t, "10.0.0.7", e.IP)
	assert.Equal(t, "desk/1.0", e.UserAgent)
	assert.Equal(t, "b-1", e.Context["id"])
	assert.Equal(t, http.StatusOK, e.Context["status"])
}

func TestTrail_ListValidatesFilter(t *testing.T) {
	trail, repo := newTrail()
	ctx := context.Background()

	_, _, err := trail.List(ctx, Filter{Level: "debug"})
	assert.ErrorIs(t, err, ErrInvalid)

	later := now.Add(time.Hour)
	_, _, err = trail.List(ctx, Filter{From: &later, To: &now})
	assert.ErrorIs(t, err, ErrInvalid)

	out, _, err := trail.List(ctx, Filter{Level: " WARNING ", Limit: 1000})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, LevelWarning, repo.last.Level)
	assert.Equal(t, MaxLimit, repo.last.Limit)
}

func TestTrail_Cleanup(t *testing.T) {
	trail, repo := newTrail()

	_, err := trail.Cleanup(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalid)

	n, err := trail.Cleanup(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, now.AddDate(0, 0, -30), repo.cutoff)
}

func TestHTTPHandler_ListDateRange(t *testing.T) {
	trail, repo := newTrail()
	h := NewHTTPHandler(trail, time.UTC)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/v1/admin/logs?from=2024-03-01&to=2024-03-01", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *repo.last.From)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), *repo.last.To)

	w = httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/v1/admin/logs?from=March", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListQueries_Filters(t *testing.T) {
	from := now.Add(-time.Hour)
	f, err := Filter{Level: LevelError, UserID: "u-1", From: &from}.normalized()
	require.NoError(t, err)

	countSQL, countArgs, dataSQL, dataArgs, err := listQueries(f)
	require.NoError(t, err)
	assert.Contains(t, countSQL, `"l"."level" = $1`)
	assert.Contains(t, dataSQL, `ORDER BY "l"."created_at" DESC`)
	assert.Len(t, countArgs, 3)
	assert.Contains(t, countArgs, "u-1")
	assert.Len(t, dataArgs, len(countArgs)+2)
}
