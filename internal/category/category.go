// Package category manages the book and asset categories.
package category

import (
	"time"

	"librarydesk/internal/apperr"
)

type Type string

const (
	TypeBook  Type = "book"
	TypeAsset Type = "asset"
)

func (t Type) Valid() bool { return t == TypeBook || t == TypeAsset }

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        Type      `json:"type"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Input struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Type        Type   `json:"type" validate:"required,oneof=book asset"`
}

var (
	ErrNotFound      = apperr.NotFound("CATEGORY_NOT_FOUND", "category not found")
	ErrDuplicateName = apperr.Validation("DUPLICATE_CATEGORY", "a category with this name already exists")
	ErrInUse         = apperr.Conflict("CATEGORY_IN_USE", "category is still referenced")
	ErrInvalid       = apperr.Validation("INVALID_CATEGORY", "category is invalid")
)
