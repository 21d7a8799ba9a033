package book

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"librarydesk/internal/platform/logging"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func newTestHandler(t *testing.T) (*MockRepository, *HTTPHandler) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockRepository(ctrl)
	return mockRepo, NewHTTPHandler(NewService(mockRepo, logging.Discard()))
}

func TestHTTPHandler_List(t *testing.T) {
	mockRepo, handler := newTestHandler(t)
	testBook := Book{ID: "1", Title: "Test", Author: "A", Quantity: 1, Available: 1}

	t.Run("success", func(t *testing.T) {
		featured := true
		mockRepo.EXPECT().List(gomock.Any(), Filter{
			Search:   "dune",
			Featured: &featured,
			Sort:     SortAuthor,
			Order:    Desc,
			Limit:    10,
			Offset:   10,
		}).Return([]Book{testBook}, 11, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books?search=dune&featured=true&sort=author&order=desc&page=2&page_size=10", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total_pages":2`)
	})

	t.Run("unknown sort field", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books?sort=popularity", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("error", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, 0, context.DeadlineExceeded)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	mockRepo, handler := newTestHandler(t)

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().Get(gomock.Any(), "123").Return(Book{ID: "123", Title: "Test"}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books/123", nil)
		r.SetPathValue("id", "123")

		handler.Get(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().Get(gomock.Any(), "123").Return(Book{}, ErrNotFound)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books/123", nil)
		r.SetPathValue("id", "123")

		handler.Get(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHTTPHandler_Create(t *testing.T) {
	mockRepo, handler := newTestHandler(t)

	t.Run("duplicate isbn", func(t *testing.T) {
		mockRepo.EXPECT().ISBNExists(gomock.Any(), "9780441013593", "").Return(true, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books",
			strings.NewReader(`{"isbn":"9780441013593","title":"Dune","author":"Frank Herbert","quantity":2}`))

		handler.Create(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "DUPLICATE_ISBN")
	})

	t.Run("created", func(t *testing.T) {
		mockRepo.EXPECT().ISBNExists(gomock.Any(), "9780441013593", "").Return(false, nil)
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b *Book) error {
			b.ID = "b-1"
			return nil
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books",
			strings.NewReader(`{"isbn":"9780441013593","title":"Dune","author":"Frank Herbert","quantity":2}`))

		handler.Create(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"available":2`)
	})
}

func TestHTTPHandler_Delete(t *testing.T) {
	mockRepo, handler := newTestHandler(t)

	mockRepo.EXPECT().Delete(gomock.Any(), "b-1").Return(ErrHasOpenLoans)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/v1/books/b-1", nil)
	r.SetPathValue("id", "b-1")

	handler.Delete(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
}
