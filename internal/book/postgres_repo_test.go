package book

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/platform/postgres/pgtest"
)

func TestListQueries_BindsFilterValues(t *testing.T) {
	featured := true
	f := Filter{
		CategoryID: "3f1c6a0e-8e8e-4d5c-9b55-9a1f1f2d7c11",
		Search:     "50% off",
		Featured:   &featured,
		Sort:       SortAuthor,
		Order:      Desc,
		Limit:      10,
		Offset:     20,
	}.normalized()

	countSQL, countArgs, dataSQL, dataArgs, err := listQueries(f)
	require.NoError(t, err)

	assert.Contains(t, countSQL, "COUNT(*)")
	assert.NotContains(t, countSQL, "50% off")
	assert.NotContains(t, dataSQL, "50% off")
	assert.Contains(t, dataSQL, `ORDER BY "b"."author" DESC NULLS LAST`)
	assert.Contains(t, dataSQL, "ILIKE")
	assert.Contains(t, countArgs, `%50\% off%`)
	assert.Contains(t, countArgs, "50% off")
	assert.Contains(t, dataArgs, f.CategoryID)
	// category_name fallback, limit and offset
	assert.Len(t, dataArgs, len(countArgs)+3)
	assert.Equal(t, "", dataArgs[0])
	assert.EqualValues(t, 10, dataArgs[len(dataArgs)-2])
	assert.EqualValues(t, 20, dataArgs[len(dataArgs)-1])
}

func TestListQueries_DefaultsToTitle(t *testing.T) {
	_, countArgs, dataSQL, _, err := listQueries(Filter{}.normalized())
	require.NoError(t, err)

	assert.Contains(t, dataSQL, `ORDER BY "b"."title" ASC NULLS LAST`)
	assert.Empty(t, countArgs)
}

func TestPostgresRepo_DeleteRefusedWhileOnLoan(t *testing.T) {
	db := pgtest.Open(t)
	ctx := context.Background()
	repo := NewPostgresRepo(db, 5*time.Second)

	b := &Book{Title: "Half of a Yellow Sun", Author: "Chimamanda Ngozi Adichie", Quantity: 2, Available: 1}
	require.NoError(t, repo.Create(ctx, b))

	var userID, memberID, borrowID string
	require.NoError(t, db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name)
		VALUES ('reader', 'reader@example.com', 'x', 'Reader') RETURNING id`).Scan(&userID))
	require.NoError(t, db.QueryRow(ctx, `
		INSERT INTO members (user_id, member_code, membership_expiry)
		VALUES ($1, 'MEM-2024-0001', '2030-01-01') RETURNING id`, userID).Scan(&memberID))
	require.NoError(t, db.QueryRow(ctx, `
		INSERT INTO borrows (book_id, book_title, member_id, borrowed_date, due_date)
		VALUES ($1, $2, $3, '2024-03-01', '2024-03-15') RETURNING id`, b.ID, b.Title, memberID).Scan(&borrowID))

	err := repo.Delete(ctx, b.ID)
	assert.ErrorIs(t, err, ErrHasOpenLoans)

	got, err := repo.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Title, got.Title)
	assert.Equal(t, 1, got.Available)

	_, err = db.Exec(ctx, `UPDATE borrows SET status = 'returned', returned_date = '2024-03-10' WHERE id = $1`, borrowID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, b.ID))
	_, err = repo.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var bookID *string
	var title string
	require.NoError(t, db.QueryRow(ctx, `SELECT book_id, book_title FROM borrows WHERE id = $1`, borrowID).Scan(&bookID, &title))
	assert.Nil(t, bookID)
	assert.Equal(t, b.Title, title)

	assert.ErrorIs(t, repo.Delete(ctx, b.ID), ErrNotFound)
}
