package openlibrary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duneJSON = `{"ISBN:9780441013593": {
	"title": "Dune",
	"authors": [{"name": "Frank Herbert"}],
	"publishers": [{"name": "Ace Books"}],
	"publish_date": "August 2, 2005",
	"number_of_pages": 528,
	"subjects": [{"name": "Science fiction"}],
	"cover": {"medium": "https://covers.example/m.jpg", "large": "https://covers.example/l.jpg"}
}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "librarydesk-test", 100, 2)
	c.backoff = time.Millisecond
	return c
}

func TestLookupISBN(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "ISBN:9780441013593", r.URL.Query().Get("bibkeys"))
		assert.Equal(t, "librarydesk-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(duneJSON))
	})

	e, err := c.LookupISBN(context.Background(), "978-0-441-01359-3")
	require.NoError(t, err)
	assert.Equal(t, "Dune", e.Title)
	assert.Equal(t, []string{"Frank Herbert"}, e.Authors)
	assert.Equal(t, "Ace Books", e.Publisher)
	assert.Equal(t, 2005, e.Year)
	assert.Equal(t, 528, e.Pages)
	assert.Equal(t, "https://covers.example/l.jpg", e.CoverURL)
}

func TestLookupISBN_Unknown(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.LookupISBN(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.LookupISBN(context.Background(), "--")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupISBN_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(duneJSON))
	})

	e, err := c.LookupISBN(context.Background(), "9780441013593")
	require.NoError(t, err)
	assert.Equal(t, "Dune", e.Title)
	assert.EqualValues(t, 3, calls.Load())
}

func TestLookupISBN_GivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.LookupISBN(context.Background(), "9780441013593")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.EqualValues(t, 3, calls.Load())
}

func TestLookupISBN_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.LookupISBN(context.Background(), "9780441013593")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
