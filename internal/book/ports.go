package book

import (
	"context"

	"librarydesk/internal/platform/openlibrary"
)

//go:generate mockgen -source=ports.go -destination=mock_ports_test.go -package=book

// Repository defines the contract for book data storage.
type Repository interface {
	Get(ctx context.Context, id string) (Book, error)
	List(ctx context.Context, f Filter) ([]Book, int, error)
	IsAvailable(ctx context.Context, id string) (bool, error)
	ISBNExists(ctx context.Context, isbn, excludeID string) (bool, error)
	Create(ctx context.Context, b *Book) error
	// Update rewrites b and derives available from quantity minus open loans.
	Update(ctx context.Context, b *Book) error
	// Delete removes the book unless a borrow record for it is still open.
	Delete(ctx context.Context, id string) error
	SetFeatured(ctx context.Context, id string, featured bool) error
}

// MetadataSource resolves an ISBN to edition details.
type MetadataSource interface {
	LookupISBN(ctx context.Context, isbn string) (openlibrary.Edition, error)
}
