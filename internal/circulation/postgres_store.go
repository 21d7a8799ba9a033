package circulation

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"librarydesk/internal/member"
	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/postgres"
)

type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(ctx, s.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) LockMember(ctx context.Context, id string) (member.Standing, bool, error) {
	if !postgres.ValidID(id) {
		return member.Standing{}, false, nil
	}
	var expiry time.Time
	err := t.tx.QueryRow(ctx, `SELECT membership_expiry FROM members WHERE id = $1 FOR UPDATE`, id).Scan(&expiry)
	if postgres.NotFound(err) {
		return member.Standing{}, false, nil
	}
	if err != nil {
		return member.Standing{}, false, err
	}

	st := member.Standing{Expiry: clock.FromTime(expiry)}
	err = t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM borrows WHERE member_id = $1 AND status = 'borrowed'`, id).
		Scan(&st.ActiveLoans)
	return st, true, err
}

func (t pgTx) LockBook(ctx context.Context, id string) (BookStock, bool, error) {
	if !postgres.ValidID(id) {
		return BookStock{}, false, nil
	}
	var b BookStock
	err := t.tx.QueryRow(ctx, `SELECT title, isbn, quantity, available FROM books WHERE id = $1 FOR UPDATE`, id).
		Scan(&b.Title, &b.ISBN, &b.Quantity, &b.Available)
	if postgres.NotFound(err) {
		return BookStock{}, false, nil
	}
	return b, err == nil, err
}

func (t pgTx) LockLoan(ctx context.Context, id string) (Loan, bool, error) {
	if !postgres.ValidID(id) {
		return Loan{}, false, nil
	}
	var l Loan
	err := scanLoan(t.tx.QueryRow(ctx, selectLoan+` WHERE br.id = $1 FOR UPDATE OF br`, id), &l)
	if postgres.NotFound(err) {
		return Loan{}, false, nil
	}
	return l, err == nil, err
}

func (t pgTx) InsertLoan(ctx context.Context, l *Loan) error {
	const q = `
		INSERT INTO borrows (book_id, book_title, book_isbn, member_id, borrowed_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return t.tx.QueryRow(ctx, q, l.BookID, l.BookTitle, l.BookISBN, l.MemberID,
		clock.ToTime(l.BorrowedDate), clock.ToTime(l.DueDate), l.Status).Scan(&l.ID, &l.CreatedAt)
}

func (t pgTx) MarkReturned(ctx context.Context, id string, returned civil.Date, fine Money) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE borrows SET status = 'returned', returned_date = $2, fine_cents = $3
		WHERE id = $1`, id, clock.ToTime(returned), int64(fine))
	return err
}

func (t pgTx) ExtendDue(ctx context.Context, id string, due civil.Date) error {
	_, err := t.tx.Exec(ctx, `UPDATE borrows SET due_date = $2, renewals = renewals + 1 WHERE id = $1`,
		id, clock.ToTime(due))
	return err
}

func (t pgTx) AdjustAvailable(ctx context.Context, bookID string, delta int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE books SET available = available + $2, updated_at = NOW()
		WHERE id = $1 AND available + $2 BETWEEN 0 AND quantity`, bookID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockOutOfRange
	}
	return nil
}

const selectLoan = `
	SELECT br.id, br.book_id, br.book_title, br.book_isbn, br.member_id,
	       m.member_code, TRIM(u.first_name || ' ' || u.last_name),
	       br.borrowed_date, br.due_date, br.returned_date, br.status, br.fine_cents, br.renewals, br.created_at
	FROM borrows br
	JOIN members m ON m.id = br.member_id
	JOIN users u ON u.id = m.user_id`

func scanLoan(row pgx.Row, l *Loan) error {
	var borrowed, due time.Time
	var returned *time.Time
	var fine int64
	if err := row.Scan(&l.ID, &l.BookID, &l.BookTitle, &l.BookISBN, &l.MemberID,
		&l.MemberCode, &l.MemberName,
		&borrowed, &due, &returned, &l.Status, &fine, &l.Renewals, &l.CreatedAt); err != nil {
		return err
	}
	l.BorrowedDate = clock.FromTime(borrowed)
	l.DueDate = clock.FromTime(due)
	l.ReturnedDate = clock.FromTimePtr(returned)
	l.Fine = Money(fine)
	return nil
}

func (s *PostgresStore) page(ctx context.Context, where, order string, limit, offset int, args ...any) ([]Loan, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var total int
	countSQL := `SELECT COUNT(*) FROM borrows br JOIN members m ON m.id = br.member_id JOIN users u ON u.id = m.user_id WHERE ` + where
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	dataSQL := selectLoan + ` WHERE ` + where + ` ORDER BY ` + order +
		` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := s.db.Query(ctx, dataSQL, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Loan{}
	for rows.Next() {
		var l Loan
		if err := scanLoan(rows, &l); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) ListCurrent(ctx context.Context, limit, offset int) ([]Loan, int, error) {
	return s.page(ctx, `br.status = 'borrowed'`, `br.due_date ASC, br.id`, limit, offset)
}

func (s *PostgresStore) ListOverdue(ctx context.Context, today civil.Date, limit, offset int) ([]Loan, int, error) {
	return s.page(ctx, `br.status = 'borrowed' AND br.due_date < $1`, `br.due_date ASC, br.id`, limit, offset,
		clock.ToTime(today))
}

func (s *PostgresStore) MemberHistory(ctx context.Context, memberID string, limit, offset int) ([]Loan, int, error) {
	return s.page(ctx, `br.member_id = $1`, `br.borrowed_date DESC, br.created_at DESC`, limit, offset, memberID)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Loan, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var l Loan
	if err := scanLoan(s.db.QueryRow(ctx, selectLoan+` WHERE br.id = $1`, id), &l); err != nil {
		if postgres.NotFound(err) {
			return Loan{}, ErrBorrowNotFound
		}
		return Loan{}, err
	}
	return l, nil
}

func (s *PostgresStore) count(ctx context.Context, q string, args ...any) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	err := s.db.QueryRow(ctx, q, args...).Scan(&n)
	return n, err
}

func (s *PostgresStore) CountAll(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM borrows`)
}

func (s *PostgresStore) CountOpen(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE status = 'borrowed'`)
}

func (s *PostgresStore) CountOverdue(ctx context.Context, today civil.Date) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM borrows WHERE status = 'borrowed' AND due_date < $1`, clock.ToTime(today))
}

func (s *PostgresStore) SumFines(ctx context.Context) (Money, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var sum int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(fine_cents), 0)::BIGINT FROM borrows`).Scan(&sum)
	return Money(sum), err
}

func (s *PostgresStore) DueBetween(ctx context.Context, from, to civil.Date) ([]Reminder, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const q = `
		SELECT br.id, u.id, u.email, TRIM(u.first_name || ' ' || u.last_name), br.book_title, br.due_date
		FROM borrows br
		JOIN members m ON m.id = br.member_id
		JOIN users u ON u.id = m.user_id
		WHERE br.status = 'borrowed' AND br.due_date BETWEEN $1 AND $2 AND u.status = 'active'
		ORDER BY br.due_date, br.id`
	rows, err := s.db.Query(ctx, q, clock.ToTime(from), clock.ToTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var due time.Time
		if err := rows.Scan(&r.BorrowID, &r.UserID, &r.Email, &r.Name, &r.BookTitle, &due); err != nil {
			return nil, err
		}
		r.DueDate = clock.FromTime(due)
		out = append(out, r)
	}
	return out, rows.Err()
}
