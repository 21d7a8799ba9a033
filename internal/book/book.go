// Package book is the catalog: book records and their availability counters.
package book

import (
	"strings"
	"time"

	"librarydesk/internal/apperr"
)

// Book is a catalog entry. Available counts copies not on loan; 0 <= Available <= Quantity.
type Book struct {
	ID              string    `json:"id"`
	ISBN            *string   `json:"isbn,omitempty"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher,omitempty"`
	PublicationYear *int      `json:"publication_year,omitempty"`
	CategoryID      *string   `json:"category_id,omitempty"`
	CategoryName    string    `json:"category_name,omitempty"`
	Description     string    `json:"description,omitempty"`
	CoverImage      string    `json:"cover_image,omitempty"`
	Quantity        int       `json:"quantity"`
	Available       int       `json:"available"`
	Featured        bool      `json:"featured"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SortField is the closed set of columns a listing may be ordered by.
type SortField string

const (
	SortTitle     SortField = "title"
	SortAuthor    SortField = "author"
	SortYear      SortField = "publication_year"
	SortCreatedAt SortField = "created_at"
	SortAvailable SortField = "available"
)

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortTitle, nil
	case SortTitle, SortAuthor, SortYear, SortCreatedAt, SortAvailable:
		return f, nil
	}
	return "", ErrInvalid.WithMessage("cannot sort books by %q", s)
}

func (f SortField) column() string {
	switch f {
	case SortAuthor:
		return "b.author"
	case SortYear:
		return "b.publication_year"
	case SortCreatedAt:
		return "b.created_at"
	case SortAvailable:
		return "b.available"
	default:
		return "b.title"
	}
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Asc, nil
	case Asc, Desc:
		return o, nil
	}
	return "", ErrInvalid.WithMessage("sort order must be asc or desc, got %q", s)
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter selects a page of books. Search matches title or author as a substring, or the ISBN exactly.
type Filter struct {
	CategoryID string
	Search     string
	Featured   *bool
	Sort       SortField
	Order      SortOrder
	Limit      int
	Offset     int
}

// normalized clamps paging to non-negative values and fills defaults.
func (f Filter) normalized() Filter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Sort == "" {
		f.Sort = SortTitle
	}
	if f.Order != Desc {
		f.Order = Asc
	}
	return f
}

// Input is the writable part of a book. Available is honored on create only; after that
// it is derived from quantity and open loans.
type Input struct {
	ISBN            string  `json:"isbn" validate:"omitempty,isbn"`
	Title           string  `json:"title" validate:"required,max=255"`
	Author          string  `json:"author" validate:"required,max=255"`
	Publisher       string  `json:"publisher" validate:"max=255"`
	PublicationYear *int    `json:"publication_year" validate:"omitempty,gte=1000,lte=9999"`
	CategoryID      *string `json:"category_id" validate:"omitempty,uuid"`
	Description     string  `json:"description"`
	CoverImage      string  `json:"cover_image" validate:"max=500"`
	Quantity        int     `json:"quantity" validate:"gte=1"`
	Available       *int    `json:"available" validate:"omitempty,gte=0"`
	Featured        bool    `json:"featured"`
}

func (in Input) toBook() (Book, error) {
	b := Book{
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		Publisher:       strings.TrimSpace(in.Publisher),
		PublicationYear: in.PublicationYear,
		CategoryID:      in.CategoryID,
		Description:     strings.TrimSpace(in.Description),
		CoverImage:      strings.TrimSpace(in.CoverImage),
		Quantity:        in.Quantity,
		Featured:        in.Featured,
	}
	if isbn := strings.TrimSpace(in.ISBN); isbn != "" {
		b.ISBN = &isbn
	}
	if b.CategoryID != nil && *b.CategoryID == "" {
		b.CategoryID = nil
	}
	switch {
	case b.Title == "":
		return Book{}, ErrInvalid.WithMessage("title is required")
	case b.Author == "":
		return Book{}, ErrInvalid.WithMessage("author is required")
	case b.Quantity < 1:
		return Book{}, ErrInvalid.WithMessage("quantity must be at least 1")
	}
	b.Available = b.Quantity
	if in.Available != nil {
		b.Available = *in.Available
	}
	if b.Available < 0 || b.Available > b.Quantity {
		return Book{}, ErrInvalid.WithMessage("available must be between 0 and %d", b.Quantity)
	}
	return b, nil
}

var (
	ErrNotFound      = apperr.NotFound("BOOK_NOT_FOUND", "book not found")
	ErrDuplicateISBN = apperr.Validation("DUPLICATE_ISBN", "a book with this ISBN already exists")
	ErrHasOpenLoans  = apperr.Conflict("BOOK_ON_LOAN", "book has copies on loan")
	ErrInvalid       = apperr.Validation("INVALID_BOOK", "book is invalid")
)

func errQuantityBelowLoans(open int) error {
	return ErrInvalid.WithMessage("quantity cannot be below the %d copies on loan", open)
}
