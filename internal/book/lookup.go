package book

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"librarydesk/internal/apperr"
	"librarydesk/internal/httpx"
	"librarydesk/internal/platform/openlibrary"
)

var (
	ErrNoMetadata          = apperr.NotFound("ISBN_NOT_FOUND", "no metadata found for this ISBN")
	ErrMetadataUnavailable = apperr.New(apperr.KindPersistence, "METADATA_UNAVAILABLE", "metadata lookup failed")
)

// Suggestion prefills a new catalog entry from an ISBN lookup. InCatalog is
// set when a book with the ISBN already exists, so Create would be refused.
type Suggestion struct {
	Input     Input    `json:"book"`
	Subjects  []string `json:"subjects,omitempty"`
	InCatalog bool     `json:"in_catalog"`
}

// Lookup completes catalog entries from an external metadata source.
type Lookup struct {
	source MetadataSource
	repo   Repository
	log    *slog.Logger
}

func NewLookup(source MetadataSource, repo Repository, log *slog.Logger) *Lookup {
	return &Lookup{source: source, repo: repo, log: log}
}

func (l *Lookup) Suggest(ctx context.Context, isbn string) (Suggestion, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return Suggestion{}, ErrInvalid.WithMessage("isbn is required")
	}
	e, err := l.source.LookupISBN(ctx, isbn)
	switch {
	case errors.Is(err, openlibrary.ErrNotFound):
		return Suggestion{}, ErrNoMetadata
	case err != nil:
		l.log.WarnContext(ctx, "isbn lookup failed", "isbn", isbn, "err", err)
		return Suggestion{}, ErrMetadataUnavailable.Wrap(err)
	}

	in := Input{
		ISBN:       e.ISBN,
		Title:      e.Title,
		Author:     strings.Join(e.Authors, ", "),
		Publisher:  e.Publisher,
		CoverImage: e.CoverURL,
		Quantity:   1,
	}
	if e.Subtitle != "" {
		in.Title += ": " + e.Subtitle
	}
	if e.Year > 0 {
		year := e.Year
		in.PublicationYear = &year
	}

	exists, err := l.repo.ISBNExists(ctx, e.ISBN, "")
	if err != nil {
		return Suggestion{}, apperr.Persistence(err)
	}
	return Suggestion{Input: in, Subjects: e.Subjects, InCatalog: exists}, nil
}

// ServeHTTP handles GET /v1/books/lookup?isbn=
func (l *Lookup) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, err := l.Suggest(r.Context(), r.URL.Query().Get("isbn"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, s, nil)
}
