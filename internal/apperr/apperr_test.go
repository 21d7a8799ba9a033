package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKindAndCode(t *testing.T) {
	sentinel := Conflict("NOT_AVAILABLE", "book is not available")
	specific := sentinel.WithMessage("book %s has no copies left", "b-1")

	assert.ErrorIs(t, specific, sentinel)
	assert.ErrorIs(t, fmt.Errorf("borrow: %w", specific), sentinel)
	assert.NotErrorIs(t, specific, Conflict("ALREADY_RETURNED", "x"))
	assert.NotErrorIs(t, specific, Validation("NOT_AVAILABLE", "x"))
	assert.Equal(t, "book b-1 has no copies left", specific.Error())
}

func TestPersistence(t *testing.T) {
	assert.Nil(t, Persistence(nil))

	cause := errors.New("connection reset")
	err := Persistence(cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindPersistence, KindOf(err))

	classified := NotFound("BOOK_NOT_FOUND", "book not found")
	assert.Same(t, classified, Persistence(classified))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{Validation("X", "x"), KindValidation},
		{fmt.Errorf("wrapped: %w", NotFound("X", "x")), KindNotFound},
		{Forbidden("X", "x"), KindPermissionDenied},
		{errors.New("plain"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}
