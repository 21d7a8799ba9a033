package report

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgxpool"

	"librarydesk/internal/platform/clock"
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

func (r *PostgresRepo) BookTotals(ctx context.Context) (BookTotals, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var t BookTotals
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(quantity), 0)::INT, COALESCE(SUM(available), 0)::INT FROM books`,
	).Scan(&t.Titles, &t.Copies, &t.Available)
	return t, err
}

func (r *PostgresRepo) MemberTotals(ctx context.Context, today civil.Date) (MemberTotals, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var t MemberTotals
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE m.membership_expiry >= $1 AND u.status = 'active'),
		       COUNT(*) FILTER (WHERE m.membership_expiry < $1)
		FROM members m JOIN users u ON u.id = m.user_id`, clock.ToTime(today),
	).Scan(&t.Total, &t.Active, &t.Expired)
	return t, err
}

func (r *PostgresRepo) TopBorrowed(ctx context.Context, limit int) ([]BookCount, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.title, b.author, COUNT(br.id)::INT AS n
		FROM borrows br JOIN books b ON b.id = br.book_id
		GROUP BY b.id, b.title, b.author
		ORDER BY n DESC, b.title
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BookCount{}
	for rows.Next() {
		var c BookCount
		if err := rows.Scan(&c.BookID, &c.Title, &c.Author, &c.Borrows); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) RecentBorrows(ctx context.Context, limit int) ([]RecentBorrow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT br.id, br.book_title, m.member_code, TRIM(u.first_name || ' ' || u.last_name),
		       br.borrowed_date, br.due_date, br.status
		FROM borrows br
		JOIN members m ON m.id = br.member_id
		JOIN users u ON u.id = m.user_id
		ORDER BY br.created_at DESC, br.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecentBorrow{}
	for rows.Next() {
		var (
			b             RecentBorrow
			borrowed, due time.Time
		)
		if err := rows.Scan(&b.BorrowID, &b.BookTitle, &b.MemberCode, &b.MemberName, &borrowed, &due, &b.Status); err != nil {
			return nil, err
		}
		b.BorrowedDate = clock.FromTime(borrowed)
		b.DueDate = clock.FromTime(due)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) BorrowsPerMonth(ctx context.Context, since civil.Date) (map[string]int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT to_char(borrowed_date, 'YYYY-MM') AS month, COUNT(*)::INT
		FROM borrows
		WHERE borrowed_date >= $1
		GROUP BY month`, clock.ToTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			month string
			n     int
		)
		if err := rows.Scan(&month, &n); err != nil {
			return nil, err
		}
		out[month] = n
	}
	return out, rows.Err()
}
