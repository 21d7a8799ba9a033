package user

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (User, error)
	// GetByLogin finds a user by username or email.
	GetByLogin(ctx context.Context, login string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateStatus(ctx context.Context, id, status string) error
	TouchLastLogin(ctx context.Context, id string) error
}
