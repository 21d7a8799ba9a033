package book

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"librarydesk/internal/platform/postgres"
)

const dialectPostgres = "postgres"

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

var bookColumns = []any{
	goqu.I("b.id"), goqu.I("b.isbn"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.publisher"),
	goqu.I("b.publication_year"), goqu.I("b.category_id"), goqu.COALESCE(goqu.I("c.name"), "").As("category_name"),
	goqu.I("b.description"), goqu.I("b.cover_image"), goqu.I("b.quantity"), goqu.I("b.available"),
	goqu.I("b.featured"), goqu.I("b.created_at"), goqu.I("b.updated_at"),
}

func scanBook(row pgx.Row, b *Book) error {
	return row.Scan(
		&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Publisher,
		&b.PublicationYear, &b.CategoryID, &b.CategoryName,
		&b.Description, &b.CoverImage, &b.Quantity, &b.Available,
		&b.Featured, &b.CreatedAt, &b.UpdatedAt,
	)
}

func booksFrom() *goqu.SelectDataset {
	return goqu.Dialect(dialectPostgres).
		From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Prepared(true)
}

// listQueries builds the count and page queries for f. Sort columns come from the
// SortField enum, never from caller text.
func listQueries(f Filter) (countSQL string, countArgs []any, dataSQL string, dataArgs []any, err error) {
	where := make([]exp.Expression, 0, 3)
	if f.CategoryID != "" {
		where = append(where, goqu.I("b.category_id").Eq(f.CategoryID))
	}
	if f.Search != "" {
		pattern := postgres.LikePattern(f.Search)
		where = append(where, goqu.Or(
			goqu.I("b.title").ILike(pattern),
			goqu.I("b.author").ILike(pattern),
			goqu.I("b.isbn").Eq(f.Search),
		))
	}
	if f.Featured != nil {
		where = append(where, goqu.I("b.featured").Eq(*f.Featured))
	}

	base := booksFrom().Where(where...)

	countSQL, countArgs, err = base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build count query: %w", err)
	}

	order := goqu.I(f.Sort.column()).Asc()
	if f.Order == Desc {
		order = goqu.I(f.Sort.column()).Desc()
	}
	dataSQL, dataArgs, err = base.Select(bookColumns...).
		Order(order.NullsLast(), goqu.I("b.id").Asc()).
		Limit(uint(f.Limit)).
		Offset(uint(f.Offset)).
		ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build list query: %w", err)
	}
	return countSQL, countArgs, dataSQL, dataArgs, nil
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Book, int, error) {
	countSQL, countArgs, dataSQL, dataArgs, err := listQueries(f)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		if postgres.NotFound(err) {
			return []Book{}, 0, nil
		}
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		var b Book
		if err := scanBook(rows, &b); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Book, error) {
	query, args, err := booksFrom().Select(bookColumns...).Where(goqu.I("b.id").Eq(id)).ToSQL()
	if err != nil {
		return Book{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var b Book
	if err := scanBook(r.db.QueryRow(ctx, query, args...), &b); err != nil {
		if postgres.NotFound(err) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) IsAvailable(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var available bool
	err := r.db.QueryRow(ctx, `SELECT available > 0 FROM books WHERE id = $1`, id).Scan(&available)
	if err != nil {
		if postgres.NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return available, nil
}

func (r *PostgresRepo) ISBNExists(ctx context.Context, isbn, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1 AND ($2 = '' OR id::text <> $2))`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, query, isbn, excludeID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) Create(ctx context.Context, b *Book) error {
	const query = `
		INSERT INTO books (isbn, title, author, publisher, publication_year, category_id,
		                   description, cover_image, quantity, available, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := r.db.QueryRow(ctx, query,
		b.ISBN, b.Title, b.Author, b.Publisher, b.PublicationYear, b.CategoryID,
		b.Description, b.CoverImage, b.Quantity, b.Available, b.Featured,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if postgres.IsUniqueViolation(err, "books_isbn_key") {
		return ErrDuplicateISBN
	}
	return err
}

// lockBook takes the row lock borrow and return also take, so open-loan counts read
// afterwards are stable until commit.
func lockBook(ctx context.Context, tx pgx.Tx, id string) error {
	var locked string
	err := tx.QueryRow(ctx, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if postgres.NotFound(err) {
		return ErrNotFound
	}
	return err
}

func openLoans(ctx context.Context, tx pgx.Tx, id string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM borrows WHERE book_id = $1 AND status <> 'returned'`, id).Scan(&n)
	return n, err
}

func (r *PostgresRepo) Update(ctx context.Context, b *Book) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockBook(ctx, tx, b.ID); err != nil {
			return err
		}
		open, err := openLoans(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if b.Quantity < open {
			return errQuantityBelowLoans(open)
		}
		b.Available = b.Quantity - open

		const query = `
			UPDATE books SET isbn = $2, title = $3, author = $4, publisher = $5, publication_year = $6,
			       category_id = $7, description = $8, cover_image = $9, quantity = $10, available = $11,
			       featured = $12, updated_at = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at`
		err = tx.QueryRow(ctx, query,
			b.ID, b.ISBN, b.Title, b.Author, b.Publisher, b.PublicationYear,
			b.CategoryID, b.Description, b.CoverImage, b.Quantity, b.Available, b.Featured,
		).Scan(&b.CreatedAt, &b.UpdatedAt)
		if postgres.IsUniqueViolation(err, "books_isbn_key") {
			return ErrDuplicateISBN
		}
		return err
	})
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockBook(ctx, tx, id); err != nil {
			return err
		}
		open, err := openLoans(ctx, tx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrHasOpenLoans.WithMessage("book has %d copies on loan", open)
		}
		_, err = tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
		return err
	})
}

func (r *PostgresRepo) SetFeatured(ctx context.Context, id string, featured bool) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE books SET featured = $2, updated_at = NOW() WHERE id = $1`, id, featured)
	if err != nil {
		if postgres.NotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
