package settings

import "context"

type Repository interface {
	All(ctx context.Context) ([]Setting, error)
	Upsert(ctx context.Context, s Setting) error
	Delete(ctx context.Context, key string) (bool, error)
}
