// Package postgres holds the pgx plumbing shared by the repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"librarydesk/internal/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Open creates the pool and verifies connectivity.
func Open(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// WithTx runs fn inside a transaction. It commits only when fn returns nil and rolls back
// on every other exit, including a panic, which is re-raised after the rollback.
// Errors from fn are returned unchanged; begin and commit failures are persistence errors.
func WithTx(ctx context.Context, db TxBeginner, opts pgx.TxOptions, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return apperr.Persistence(fmt.Errorf("begin tx: %w", err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// Use a fresh context so a cancelled request still releases its locks.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = tx.Rollback(rbCtx)
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Persistence(fmt.Errorf("commit tx: %w", err))
	}
	committed = true
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidTextRep      = "22P02"
)

// IsUniqueViolation reports whether err is a unique constraint failure, optionally on a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a foreign key failure, such as deleting a referenced row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// NoRows reports whether err is pgx.ErrNoRows.
func NoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// NotFound reports whether a single-row lookup found nothing. A malformed UUID
// identifies no row either, so it counts as not found.
func NotFound(err error) bool {
	if NoRows(err) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRep
}

// ValidID reports whether id can be a UUID key. Lookups inside a transaction
// check it first, because a malformed UUID error aborts the transaction.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// LikePattern escapes LIKE metacharacters in s and wraps it for a substring match.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
