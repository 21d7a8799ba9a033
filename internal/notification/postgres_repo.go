package notification

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

const selectNotification = `SELECT id, user_id, title, message, type, link, is_read, created_at FROM notifications`

func scanNotification(row pgx.Row, n *Notification) error {
	return row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &n.Link, &n.Read, &n.CreatedAt)
}

func (r *PostgresRepo) Create(ctx context.Context, n *Notification) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, message, type, link)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`, n.UserID, n.Title, n.Message, n.Kind, n.Link).Scan(&n.ID, &n.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Notification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n Notification
	if err := scanNotification(r.db.QueryRow(ctx, selectNotification+` WHERE id = $1`, id), &n); err != nil {
		if postgres.NotFound(err) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

func (r *PostgresRepo) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const where = ` WHERE user_id = $1 AND (NOT $2 OR NOT is_read)`
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, selectNotification+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepo) MarkRead(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return r.exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
}

func (r *PostgresRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	n, err := r.exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (r *PostgresRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.exec(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
}
