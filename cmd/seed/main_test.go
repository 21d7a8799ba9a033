package main

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/book"
	"librarydesk/internal/category"
	"librarydesk/internal/platform/logging"
	"librarydesk/internal/user"
)

type memCategories struct{ items []category.Category }

func (m *memCategories) List(_ context.Context, t category.Type, search string) ([]category.Category, error) {
	var out []category.Category
	for _, c := range m.items {
		if c.Type == t && strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCategories) Create(_ context.Context, in category.Input) (category.Category, error) {
	c := category.Category{ID: "c-" + strconv.Itoa(len(m.items)+1), Name: in.Name, Type: in.Type}
	m.items = append(m.items, c)
	return c, nil
}

type memUsers struct{ names map[string]bool }

func (m *memUsers) Register(_ context.Context, acc user.Account) (user.User, error) {
	if m.names[acc.Username] {
		return user.User{}, user.ErrDuplicateUsername
	}
	m.names[acc.Username] = true
	return user.User{ID: "u-1", Username: acc.Username}, nil
}

type memBooks struct{ byISBN map[string]book.Input }

func (m *memBooks) Create(_ context.Context, in book.Input) (book.Book, error) {
	if _, ok := m.byISBN[in.ISBN]; ok {
		return book.Book{}, book.ErrDuplicateISBN
	}
	m.byISBN[in.ISBN] = in
	return book.Book{Title: in.Title}, nil
}

func TestSeeder_IsIdempotent(t *testing.T) {
	cats := &memCategories{}
	users := &memUsers{names: map[string]bool{}}
	books := &memBooks{byISBN: map[string]book.Input{}}
	s := seeder{categories: cats, users: users, books: books, log: logging.Discard()}
	admin := user.Account{Username: "admin", Email: "admin@library.local", Password: "Admin123!", Role: "admin"}

	require.NoError(t, s.seed(context.Background(), admin, true))
	require.NoError(t, s.seed(context.Background(), admin, true))

	assert.Len(t, cats.items, len(starterCategories))
	assert.Len(t, books.byISBN, len(sampleBooks))

	prince := books.byISBN["9780140449266"]
	require.NotNil(t, prince.CategoryID)
	assert.Equal(t, "c-2", *prince.CategoryID)
}
