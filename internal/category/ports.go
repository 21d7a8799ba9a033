package category

import "context"

type Repository interface {
	List(ctx context.Context, t Type, search string) ([]Category, error)
	Get(ctx context.Context, id string) (Category, error)
	NameExists(ctx context.Context, t Type, name, excludeID string) (bool, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	InUse(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}
