package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/platform/postgres"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

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

func (r *PostgresRepo) Insert(ctx context.Context, e *Entry) error {
	var raw []byte
	if len(e.Context) > 0 {
		var err error
		if raw, err = json.Marshal(e.Context); err != nil {
			return fmt.Errorf("encode log context: %w", err)
		}
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.db.QueryRow(ctx, `
		INSERT INTO system_logs (level, message, context, ip_address, user_agent, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		e.Level, e.Message, raw, e.IP, e.UserAgent, e.UserID,
	).Scan(&e.ID, &e.CreatedAt)
}

var entryColumns = []any{
	goqu.I("l.id"), goqu.I("l.level"), goqu.I("l.message"), goqu.I("l.context"),
	goqu.I("l.ip_address"), goqu.I("l.user_agent"), goqu.I("l.user_id"),
	goqu.COALESCE(goqu.I("u.username"), "").As("username"), goqu.I("l.created_at"),
}

func scanEntry(row pgx.Row, e *Entry) error {
	var raw []byte
	if err := row.Scan(&e.ID, &e.Level, &e.Message, &raw, &e.IP, &e.UserAgent, &e.UserID, &e.Username, &e.CreatedAt); err != nil {
		return err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e.Context); err != nil {
			return fmt.Errorf("decode log context of entry %d: %w", e.ID, err)
		}
	}
	return nil
}

func listQueries(f Filter) (countSQL string, countArgs []any, dataSQL string, dataArgs []any, err error) {
	where := make([]exp.Expression, 0, 5)
	if f.Level != "" {
		where = append(where, goqu.I("l.level").Eq(string(f.Level)))
	}
	if f.UserID != "" {
		where = append(where, goqu.I("l.user_id").Eq(f.UserID))
	}
	if f.Search != "" {
		where = append(where, goqu.I("l.message").ILike(postgres.LikePattern(f.Search)))
	}
	if f.From != nil {
		where = append(where, goqu.I("l.created_at").Gte(*f.From))
	}
	if f.To != nil {
		where = append(where, goqu.I("l.created_at").Lt(*f.To))
	}

	base := goqu.Dialect("postgres").
		From(goqu.T("system_logs").As("l")).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id")))).
		Prepared(true).
		Where(where...)

	countSQL, countArgs, err = base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build count query: %w", err)
	}
	dataSQL, dataArgs, err = base.Select(entryColumns...).
		Order(goqu.I("l.created_at").Desc(), goqu.I("l.id").Desc()).
		Limit(uint(f.Limit)).
		Offset(uint(f.Offset)).
		ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build list query: %w", err)
	}
	return countSQL, countArgs, dataSQL, dataArgs, nil
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	countSQL, countArgs, dataSQL, dataArgs, err := listQueries(f)
	if err != nil {
		return nil, 0, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		if postgres.NotFound(err) {
			return []Entry{}, 0, nil
		}
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM system_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
