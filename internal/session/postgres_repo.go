package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
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

func (r *PostgresRepo) Revoke(ctx context.Context, rev Revocation) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
	INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
	VALUES ($1, NULLIF($2, '')::uuid, $3, $4)
	ON CONFLICT (jti) DO NOTHING`
	_, err := r.db.Exec(ctx, q, rev.JTI, rev.UserID, rev.ExpiresAt, rev.RevokedAt)
	return err
}

func (r *PostgresRepo) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > $2)`
	var revoked bool
	err := r.db.QueryRow(ctx, q, jti, now).Scan(&revoked)
	return revoked, err
}

func (r *PostgresRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
