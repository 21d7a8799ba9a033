package user

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
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

const selectUser = `
	SELECT id, username, email, password_hash, first_name, last_name, role, status,
	       last_login_at, created_at, updated_at
	FROM users`

func scanUser(row pgx.Row, u *User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.Status, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
}

// CreateTx writes u through q, which may be a transaction owned by the caller.
func CreateTx(ctx context.Context, q postgres.DBTX, u *User) error {
	const query = `
		INSERT INTO users (username, email, password_hash, first_name, last_name, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := q.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Status).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	switch {
	case postgres.IsUniqueViolation(err, "users_username_key"):
		return ErrDuplicateUsername
	case postgres.IsUniqueViolation(err, "users_email_key"):
		return ErrDuplicateEmail
	}
	return err
}

func (r *PostgresRepo) Create(ctx context.Context, u *User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return CreateTx(ctx, r.db, u)
}

func (r *PostgresRepo) get(ctx context.Context, where string, arg any) (User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var u User
	if err := scanUser(r.db.QueryRow(ctx, selectUser+" WHERE "+where+" LIMIT 1", arg), &u); err != nil {
		if postgres.NotFound(err) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *PostgresRepo) GetByLogin(ctx context.Context, login string) (User, error) {
	return r.get(ctx, "username = $1 OR email = lower($1)", login)
}

func (r *PostgresRepo) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, selectUser+" ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) exec(ctx context.Context, query string, args ...any) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, query, args...)
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

func (r *PostgresRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *PostgresRepo) TouchLastLogin(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
}
