package asset

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

var assetColumns = []any{
	goqu.I("a.id"), goqu.I("a.title"), goqu.I("a.description"), goqu.I("a.file_path"),
	goqu.I("a.file_type"), goqu.I("a.mime_type"), goqu.I("a.file_size"), goqu.I("a.category_id"),
	goqu.COALESCE(goqu.I("c.name"), "").As("category_name"), goqu.I("a.is_public"), goqu.I("a.uploaded_by"),
	goqu.L("COALESCE(TRIM(u.first_name || ' ' || u.last_name), '')").As("uploaded_by_name"),
	goqu.I("a.created_at"), goqu.I("a.updated_at"),
}

func scanAsset(row pgx.Row, a *Asset) error {
	return row.Scan(
		&a.ID, &a.Title, &a.Description, &a.FilePath,
		&a.FileType, &a.MIMEType, &a.FileSize, &a.CategoryID,
		&a.CategoryName, &a.Public, &a.UploadedBy,
		&a.UploaderName,
		&a.CreatedAt, &a.UpdatedAt,
	)
}

func assetsFrom() *goqu.SelectDataset {
	return goqu.Dialect("postgres").
		From(goqu.T("digital_assets").As("a")).
		LeftJoin(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("a.category_id")))).
		LeftJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("a.uploaded_by")))).
		Prepared(true)
}

// listQueries builds the count and page queries for f.
func listQueries(f Filter) (countSQL string, countArgs []any, dataSQL string, dataArgs []any, err error) {
	where := make([]exp.Expression, 0, 4)
	if f.VisibleTo != "" {
		where = append(where, goqu.Or(
			goqu.I("a.is_public").IsTrue(),
			goqu.I("a.uploaded_by").Eq(f.VisibleTo),
		))
	}
	if f.CategoryID != "" {
		where = append(where, goqu.I("a.category_id").Eq(f.CategoryID))
	}
	if f.Public != nil {
		where = append(where, goqu.I("a.is_public").Eq(*f.Public))
	}
	if f.Search != "" {
		pattern := postgres.LikePattern(f.Search)
		where = append(where, goqu.Or(
			goqu.I("a.title").ILike(pattern),
			goqu.I("a.description").ILike(pattern),
		))
	}

	base := assetsFrom().Where(where...)

	countSQL, countArgs, err = base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build count query: %w", err)
	}

	order := goqu.I(f.Sort.column()).Desc()
	if f.Order == Asc {
		order = goqu.I(f.Sort.column()).Asc()
	}
	dataSQL, dataArgs, err = base.Select(assetColumns...).
		Order(order, goqu.I("a.id").Asc()).
		Limit(uint(f.Limit)).
		Offset(uint(f.Offset)).
		ToSQL()
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("build list query: %w", err)
	}
	return countSQL, countArgs, dataSQL, dataArgs, nil
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Asset, int, error) {
	countSQL, countArgs, dataSQL, dataArgs, err := listQueries(f)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		if postgres.NotFound(err) {
			return []Asset{}, 0, nil
		}
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Asset{}
	for rows.Next() {
		var a Asset
		if err := scanAsset(rows, &a); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Asset, error) {
	if !postgres.ValidID(id) {
		return Asset{}, ErrNotFound
	}
	query, args, err := assetsFrom().Select(assetColumns...).Where(goqu.I("a.id").Eq(id)).ToSQL()
	if err != nil {
		return Asset{}, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var a Asset
	if err := scanAsset(r.db.QueryRow(ctx, query, args...), &a); err != nil {
		if postgres.NotFound(err) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *PostgresRepo) Create(ctx context.Context, a *Asset) error {
	const query = `
		INSERT INTO digital_assets (title, description, file_path, file_type, mime_type, file_size,
		                            category_id, is_public, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.db.QueryRow(ctx, query,
		a.Title, a.Description, a.FilePath, a.FileType, a.MIMEType, a.FileSize,
		a.CategoryID, a.Public, a.UploadedBy,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *PostgresRepo) Update(ctx context.Context, id string, in Input) error {
	const query = `
		UPDATE digital_assets SET title = $2, description = $3, category_id = $4, is_public = $5, updated_at = NOW()
		WHERE id = $1`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, id, in.Title, in.Description, in.CategoryID, in.Public)
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

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM digital_assets WHERE id = $1`, id)
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

func (r *PostgresRepo) RecordDownload(ctx context.Context, assetID, userID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var uid *string
	if userID != "" {
		uid = &userID
	}
	_, err := r.db.Exec(ctx, `INSERT INTO asset_downloads (asset_id, user_id) VALUES ($1, $2)`, assetID, uid)
	return err
}

func (r *PostgresRepo) DownloadHistory(ctx context.Context, assetID string, limit int) ([]Download, error) {
	if !postgres.ValidID(assetID) {
		return nil, ErrNotFound
	}
	const query = `
		SELECT d.id, d.asset_id, d.user_id, COALESCE(u.username, ''), COALESCE(u.email, ''), d.downloaded_at
		FROM asset_downloads d
		LEFT JOIN users u ON u.id = d.user_id
		WHERE d.asset_id = $1
		ORDER BY d.downloaded_at DESC, d.id DESC
		LIMIT $2`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, assetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Download{}
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.AssetID, &d.UserID, &d.Username, &d.Email, &d.DownloadedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Stats(ctx context.Context) (Stats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_public),
		       COUNT(*) FILTER (WHERE NOT is_public),
		       COALESCE(SUM(file_size), 0)
		FROM digital_assets`
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var st Stats
	err := r.db.QueryRow(ctx, query).Scan(&st.Total, &st.Public, &st.Private, &st.TotalBytes)
	return st, err
}
