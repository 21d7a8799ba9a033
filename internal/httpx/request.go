package httpx

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPageNumber   = math.MaxInt / maxPageSize
)

// DecodeJSON decodes the body into dst and validates it. On failure it writes the
// response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return false
	}
	if details := ValidateStruct(dst); len(details) > 0 {
		JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
		return false
	}
	return true
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Limit() int  { return p.Size }
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// ParsePage reads page and page_size, falling back to sane values for anything out of range.
func ParsePage(r *http.Request) Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	page = min(page, maxPageNumber)
	size, _ := strconv.Atoi(q.Get("page_size"))
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return Page{Number: page, Size: size}
}

// PageMeta is the pagination block returned alongside list data.
func PageMeta(p Page, total int) map[string]any {
	return map[string]any{
		"page":        p.Number,
		"page_size":   p.Size,
		"total":       total,
		"total_pages": (total + p.Size - 1) / p.Size,
	}
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, key string) *bool {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
