package notification

import (
	"net/http"

	"librarydesk/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// List handles GET /v1/notifications
// @Summary Notifications of the current user, newest first
// @Tags notifications
// @Produce json
// @Security Bearer
// @Param unread query bool false "Only unread"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/notifications [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	unread := httpx.QueryBool(r, "unread")
	items, total, err := h.service.ListForUser(r.Context(), httpx.UserIDFrom(r), unread != nil && *unread, page.Limit(), page.Offset())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, items, httpx.PageMeta(page, total))
}

// UnreadCount handles GET /v1/notifications/unread-count
func (h *HTTPHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.UnreadCount(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]int{"unread": n}, nil)
}

// MarkRead handles POST /v1/notifications/{id}/read
func (h *HTTPHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), httpx.PrincipalFrom(r), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

// MarkAllRead handles POST /v1/notifications/read-all
func (h *HTTPHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MarkAllRead(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]int{"updated": n}, nil)
}

// Delete handles DELETE /v1/notifications/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), httpx.PrincipalFrom(r), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
