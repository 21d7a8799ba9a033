package audit

import (
	"net/http"
	"time"

	"librarydesk/internal/httpx"
)

type HTTPHandler struct {
	trail *Trail
	loc   *time.Location
}

func NewHTTPHandler(trail *Trail, loc *time.Location) *HTTPHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &HTTPHandler{trail: trail, loc: loc}
}

// List handles GET /v1/admin/logs
// @Summary System log, newest first
// @Tags admin
// @Produce json
// @Security Bearer
// @Param level query string false "info, warning or error"
// @Param user_id query string false "Acting user"
// @Param search query string false "Message substring"
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/admin/logs [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Level:  Level(q.Get("level")),
		UserID: q.Get("user_id"),
		Search: q.Get("search"),
	}
	var err error
	if f.From, err = h.day(q.Get("from"), 0); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	// to names the last day included
	if f.To, err = h.day(q.Get("to"), 1); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page := httpx.ParsePage(r)
	f.Limit, f.Offset = page.Limit(), page.Offset()

	entries, total, err := h.trail.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, entries, httpx.PageMeta(page, total))
}

func (h *HTTPHandler) day(s string, shift int) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, h.loc)
	if err != nil {
		return nil, ErrInvalid.WithMessage("invalid date %q, want YYYY-MM-DD", s)
	}
	d = d.AddDate(0, 0, shift)
	return &d, nil
}
