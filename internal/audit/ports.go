package audit

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]Entry, int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
