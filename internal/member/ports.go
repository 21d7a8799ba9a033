package member

import (
	"context"

	"cloud.google.com/go/civil"

	"librarydesk/internal/user"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=member

type Repository interface {
	// Create stores the account and the member in one transaction. The member
	// code is assigned from the code sequence for codeYear.
	Create(ctx context.Context, u *user.User, m *Member, codeYear int) error
	Get(ctx context.Context, id string) (Member, error)
	GetByUserID(ctx context.Context, userID string) (Member, error)
	List(ctx context.Context, search string, limit, offset int) ([]Member, int, error)
	Standing(ctx context.Context, id string) (Standing, error)
	UpdateProfile(ctx context.Context, id string, p Profile) error
	UpdateExpiry(ctx context.Context, id string, expiry civil.Date) error
}
