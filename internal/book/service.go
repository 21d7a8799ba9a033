package book

import (
	"context"
	"log/slog"

	"librarydesk/internal/apperr"
)

// Service provides catalog business logic.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService creates a new book service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// IsAvailable reports whether the book exists and has a copy on the shelf.
// An unknown id is not an error.
func (s *Service) IsAvailable(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.IsAvailable(ctx, id)
	if err != nil {
		return false, apperr.Persistence(err)
	}
	return ok, nil
}

// List returns a page of books matching f and the total match count.
func (s *Service) List(ctx context.Context, f Filter) ([]Book, int, error) {
	books, total, err := s.repo.List(ctx, f.normalized())
	if err != nil {
		return nil, 0, apperr.Persistence(err)
	}
	if books == nil {
		books = []Book{}
	}
	return books, total, nil
}

func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return Book{}, apperr.Persistence(err)
	}
	return b, nil
}

func (s *Service) Create(ctx context.Context, in Input) (Book, error) {
	b, err := in.toBook()
	if err != nil {
		return Book{}, err
	}
	if err := s.checkISBN(ctx, b.ISBN, ""); err != nil {
		return Book{}, err
	}
	if err := s.repo.Create(ctx, &b); err != nil {
		return Book{}, apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "book created", "book_id", b.ID, "title", b.Title)
	return b, nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (Book, error) {
	b, err := in.toBook()
	if err != nil {
		return Book{}, err
	}
	b.ID = id
	if err := s.checkISBN(ctx, b.ISBN, id); err != nil {
		return Book{}, err
	}
	if err := s.repo.Update(ctx, &b); err != nil {
		return Book{}, apperr.Persistence(err)
	}
	return b, nil
}

// Delete removes a book. It is refused while any borrow record for it is open.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Persistence(err)
	}
	s.log.InfoContext(ctx, "book deleted", "book_id", id)
	return nil
}

func (s *Service) SetFeatured(ctx context.Context, id string, featured bool) error {
	if err := s.repo.SetFeatured(ctx, id, featured); err != nil {
		return apperr.Persistence(err)
	}
	return nil
}

// checkISBN rejects an ISBN already used by a book other than excludeID.
// The match is exact and case-sensitive.
func (s *Service) checkISBN(ctx context.Context, isbn *string, excludeID string) error {
	if isbn == nil {
		return nil
	}
	exists, err := s.repo.ISBNExists(ctx, *isbn, excludeID)
	if err != nil {
		return apperr.Persistence(err)
	}
	if exists {
		return ErrDuplicateISBN.WithMessage("a book with ISBN %s already exists", *isbn)
	}
	return nil
}
