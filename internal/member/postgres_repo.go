package member

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"librarydesk/internal/platform/clock"
	"librarydesk/internal/platform/postgres"
	"librarydesk/internal/user"
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

const selectMember = `
	SELECT m.id, m.user_id, m.member_code, m.phone, m.address, m.date_of_birth,
	       m.membership_type, m.membership_expiry, m.created_at,
	       u.username, u.email, u.first_name, u.last_name, u.status
	FROM members m
	JOIN users u ON u.id = m.user_id`

func scanMember(row pgx.Row, m *Member) error {
	var dob *time.Time
	var expiry time.Time
	if err := row.Scan(&m.ID, &m.UserID, &m.Code, &m.Phone, &m.Address, &dob,
		&m.MembershipType, &expiry, &m.CreatedAt,
		&m.Username, &m.Email, &m.FirstName, &m.LastName, &m.Status); err != nil {
		return err
	}
	m.DateOfBirth = clock.FromTimePtr(dob)
	m.MembershipExpiry = clock.FromTime(expiry)
	return nil
}

func datePtr(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := clock.ToTime(*d)
	return &t
}

func (r *PostgresRepo) Create(ctx context.Context, u *user.User, m *Member, codeYear int) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return postgres.WithTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := user.CreateTx(ctx, tx, u); err != nil {
			return err
		}

		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('member_code_seq')`).Scan(&seq); err != nil {
			return err
		}
		m.Code = FormatCode(codeYear, seq)
		m.UserID = u.ID

		const q = `
			INSERT INTO members (user_id, member_code, phone, address, date_of_birth, membership_type, membership_expiry)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`
		return tx.QueryRow(ctx, q, m.UserID, m.Code, m.Phone, m.Address, datePtr(m.DateOfBirth),
			m.MembershipType, clock.ToTime(m.MembershipExpiry)).Scan(&m.ID, &m.CreatedAt)
	})
}

func (r *PostgresRepo) get(ctx context.Context, where string, arg any) (Member, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var m Member
	if err := scanMember(r.db.QueryRow(ctx, selectMember+" WHERE "+where, arg), &m); err != nil {
		if postgres.NotFound(err) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Member, error) {
	return r.get(ctx, "m.id = $1", id)
}

func (r *PostgresRepo) GetByUserID(ctx context.Context, userID string) (Member, error) {
	return r.get(ctx, "m.user_id = $1", userID)
}

func (r *PostgresRepo) List(ctx context.Context, search string, limit, offset int) ([]Member, int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const where = `
		WHERE $1 = '' OR m.member_code ILIKE $2 OR u.username ILIKE $2 OR u.email ILIKE $2
		   OR (u.first_name || ' ' || u.last_name) ILIKE $2`
	pattern := postgres.LikePattern(search)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM members m JOIN users u ON u.id = m.user_id`+where,
		search, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, selectMember+where+` ORDER BY m.created_at DESC LIMIT $3 OFFSET $4`,
		search, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := scanMember(rows, &m); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Standing(ctx context.Context, id string) (Standing, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
		SELECT m.membership_expiry,
		       (SELECT COUNT(*) FROM borrows b WHERE b.member_id = m.id AND b.status = 'borrowed')
		FROM members m WHERE m.id = $1`
	var expiry time.Time
	var st Standing
	if err := r.db.QueryRow(ctx, q, id).Scan(&expiry, &st.ActiveLoans); err != nil {
		if postgres.NotFound(err) {
			return Standing{}, ErrNotFound
		}
		return Standing{}, err
	}
	st.Expiry = clock.FromTime(expiry)
	return st, nil
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, q, args...)
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

func (r *PostgresRepo) UpdateProfile(ctx context.Context, id string, p Profile) error {
	return r.exec(ctx, `
		UPDATE members SET phone = $2, address = $3, date_of_birth = $4, membership_type = $5
		WHERE id = $1`, id, p.Phone, p.Address, datePtr(p.DateOfBirth), p.MembershipType)
}

func (r *PostgresRepo) UpdateExpiry(ctx context.Context, id string, expiry civil.Date) error {
	return r.exec(ctx, `UPDATE members SET membership_expiry = $2 WHERE id = $1`, id, clock.ToTime(expiry))
}
