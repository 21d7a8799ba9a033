// Package asset manages digital files shared through the library.
package asset

import (
	"strings"
	"time"

	"librarydesk/internal/apperr"
)

type Asset struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	FilePath     string    `json:"-"`
	FileType     string    `json:"file_type"`
	MIMEType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	CategoryID   *string   `json:"category_id,omitempty"`
	CategoryName string    `json:"category_name,omitempty"`
	Public       bool      `json:"is_public"`
	UploadedBy   string    `json:"uploaded_by"`
	UploaderName string    `json:"uploaded_by_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input is the editable metadata of an asset.
type Input struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	CategoryID  *string `json:"category_id"`
	Public      bool    `json:"is_public"`
}

func (in Input) normalized() (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) == "" {
		in.CategoryID = nil
	}
	switch {
	case in.Title == "":
		return Input{}, ErrInvalid.WithMessage("title is required")
	case len(in.Title) > 255:
		return Input{}, ErrInvalid.WithMessage("title must be at most 255 characters")
	}
	return in, nil
}

type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortTitle     SortField = "title"
	SortFileSize  SortField = "file_size"
)

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SortCreatedAt, nil
	case SortCreatedAt, SortTitle, SortFileSize:
		return f, nil
	}
	return "", ErrInvalid.WithMessage("cannot sort assets by %q", s)
}

func (f SortField) column() string {
	switch f {
	case SortTitle:
		return "a.title"
	case SortFileSize:
		return "a.file_size"
	default:
		return "a.created_at"
	}
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortOrder defaults to newest first.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	}
	return "", ErrInvalid.WithMessage("sort order must be asc or desc, got %q", s)
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter selects a page of assets. Search matches title or description as a substring.
type Filter struct {
	Search     string
	CategoryID string
	Public     *bool
	Sort       SortField
	Order      SortOrder
	Limit      int
	Offset     int

	// VisibleTo restricts results to public assets and those uploaded by this
	// user. Empty means no restriction.
	VisibleTo string
}

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
		f.Sort = SortCreatedAt
	}
	if f.Order != Asc {
		f.Order = Desc
	}
	return f
}

type Download struct {
	ID           int64     `json:"id"`
	AssetID      string    `json:"asset_id"`
	UserID       *string   `json:"user_id,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

type Stats struct {
	Total      int   `json:"total"`
	Public     int   `json:"public"`
	Private    int   `json:"private"`
	TotalBytes int64 `json:"total_bytes"`
}

var (
	ErrNotFound     = apperr.NotFound("ASSET_NOT_FOUND", "asset not found")
	ErrInvalid      = apperr.Validation("INVALID_ASSET", "asset is invalid")
	ErrFileTooLarge = apperr.Validation("FILE_TOO_LARGE", "file is too large")
	ErrFileType     = apperr.Validation("FILE_TYPE_NOT_ALLOWED", "file type not allowed")
	ErrFileMissing  = apperr.NotFound("FILE_MISSING", "asset file is missing")
	// ErrOrphanedFile means the record is gone but its file could not be removed.
	ErrOrphanedFile = apperr.New(apperr.KindPersistence, "ORPHANED_FILE", "asset deleted but file could not be removed")
)
