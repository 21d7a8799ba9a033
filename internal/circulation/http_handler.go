package circulation

import (
	"context"
	"net/http"

	"librarydesk/internal/httpx"
	"librarydesk/internal/identity"
	"librarydesk/internal/member"
)

// Members resolves the account behind a member id for access checks.
type Members interface {
	Get(ctx context.Context, id string) (member.Member, error)
}

type HTTPHandler struct {
	service *Service
	members Members
}

func NewHTTPHandler(service *Service, members Members) *HTTPHandler {
	return &HTTPHandler{service: service, members: members}
}

// Borrow handles POST /v1/borrows
// @Summary Lend a book to a member
// @Tags circulation
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body BorrowRequest true "Borrow"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/borrows [post]
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.Borrow(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, res)
}

// Return handles POST /v1/borrows/{id}/return
// @Summary Return a borrowed book
// @Tags circulation
// @Produce json
// @Security Bearer
// @Param id path string true "Borrow ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/borrows/{id}/return [post]
func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Return(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, res, nil)
}

type renewReq struct {
	Days int `json:"days" validate:"gte=0,lte=365"`
}

// Renew handles POST /v1/borrows/{id}/renew
func (h *HTTPHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var req renewReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	res, err := h.service.Renew(r.Context(), r.PathValue("id"), req.Days)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, res, nil)
}

// Get handles GET /v1/borrows/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.checkMemberAccess(r, l.MemberID); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, l, nil)
}

// Current handles GET /v1/borrows/current
// @Summary Open loans, earliest due first
// @Tags circulation
// @Produce json
// @Security Bearer
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/borrows/current [get]
func (h *HTTPHandler) Current(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	loans, total, err := h.service.ListCurrent(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, loans, httpx.PageMeta(page, total))
}

// Overdue handles GET /v1/borrows/overdue
func (h *HTTPHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	loans, total, err := h.service.ListOverdue(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, loans, httpx.PageMeta(page, total))
}

// MemberHistory handles GET /v1/members/{id}/borrows
// @Summary Loan history of a member, most recent first
// @Tags circulation
// @Produce json
// @Security Bearer
// @Param id path string true "Member ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /v1/members/{id}/borrows [get]
func (h *HTTPHandler) MemberHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.checkMemberAccess(r, id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page := httpx.ParsePage(r)
	loans, total, err := h.service.MemberHistory(r.Context(), id, page.Limit(), page.Offset())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, loans, httpx.PageMeta(page, total))
}

// Stats handles GET /v1/borrows/stats
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, st, nil)
}

type remindReq struct {
	WithinDays int `json:"within_days" validate:"gte=0,lte=30"`
}

// SendReminders handles POST /v1/borrows/reminders
func (h *HTTPHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	var req remindReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	rep, err := h.service.SendDueReminders(r.Context(), req.WithinDays)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, rep, nil)
}

// checkMemberAccess lets staff through and members only to their own loans.
func (h *HTTPHandler) checkMemberAccess(r *http.Request, memberID string) error {
	p := httpx.PrincipalFrom(r)
	if p.IsStaff() {
		return nil
	}
	m, err := h.members.Get(r.Context(), memberID)
	if err != nil {
		return err
	}
	if !p.Owns(m.UserID) {
		return identity.ErrForbidden
	}
	return nil
}
