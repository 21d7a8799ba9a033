package category

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"librarydesk/internal/platform/postgres"
)

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

const selectCategory = `
	SELECT c.id, c.name, c.description, c.type, c.created_at,
	       (SELECT COUNT(*) FROM books b WHERE b.category_id = c.id)
	     + (SELECT COUNT(*) FROM digital_assets a WHERE a.category_id = c.id)
	FROM categories c`

func (r *PostgresRepo) List(ctx context.Context, t Type, search string) ([]Category, error) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if t != "" {
		clauses = append(clauses, fmt.Sprintf("c.type = $%d", argn))
		args = append(args, t)
		argn++
	}
	if search != "" {
		clauses = append(clauses, fmt.Sprintf("c.name ILIKE $%d", argn))
		args = append(args, "%"+search+"%")
	}

	query := selectCategory + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY c.name"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.CreatedAt, &c.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Category, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var c Category
	err := r.db.QueryRow(ctx, selectCategory+" WHERE c.id = $1", id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.CreatedAt, &c.ItemCount)
	if err != nil {
		if postgres.NoRows(err) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *PostgresRepo) NameExists(ctx context.Context, t Type, name, excludeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM categories
			WHERE type = $1 AND lower(name) = lower($2) AND ($3 = '' OR id::text <> $3)
		)`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var exists bool
	err := r.db.QueryRow(ctx, query, t, name, excludeID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) Create(ctx context.Context, c *Category) error {
	const query = `
		INSERT INTO categories (name, description, type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	err := r.db.QueryRow(ctx, query, c.Name, c.Description, c.Type).Scan(&c.ID, &c.CreatedAt)
	if postgres.IsUniqueViolation(err, "categories_type_name_key") {
		return ErrDuplicateName
	}
	return err
}

func (r *PostgresRepo) Update(ctx context.Context, c *Category) error {
	const query = `UPDATE categories SET name = $2, description = $3, type = $4 WHERE id = $1`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, query, c.ID, c.Name, c.Description, c.Type)
	if err != nil {
		if postgres.IsUniqueViolation(err, "categories_type_name_key") {
			return ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) InUse(ctx context.Context, id string) (bool, error) {
	const query = `
		SELECT EXISTS (SELECT 1 FROM books WHERE category_id = $1)
		    OR EXISTS (SELECT 1 FROM digital_assets WHERE category_id = $1)`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var inUse bool
	err := r.db.QueryRow(ctx, query, id).Scan(&inUse)
	return inUse, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
