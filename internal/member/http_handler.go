package member

import (
	"net/http"

	"librarydesk/internal/httpx"
	"librarydesk/internal/identity"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// Register handles POST /v1/members
// @Summary Register a member
// @Description Creates the login account and the membership in one step
// @Tags members
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body Input true "Member"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/members [post]
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	m, err := h.service.Register(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, m)
}

// List handles GET /v1/members
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	members, total, err := h.service.List(r.Context(), r.URL.Query().Get("search"), page.Limit(), page.Offset())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, members, httpx.PageMeta(page, total))
}

// visible loads the member and checks the caller is staff or the member.
func (h *HTTPHandler) visible(r *http.Request, id string) (Member, error) {
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		return Member{}, err
	}
	if p := httpx.PrincipalFrom(r); !p.IsStaff() && !p.Owns(m.UserID) {
		return Member{}, identity.ErrForbidden
	}
	return m, nil
}

// Get handles GET /v1/members/{id}
// @Summary Get a member
// @Tags members
// @Produce json
// @Security Bearer
// @Param id path string true "Member ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/members/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.visible(r, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, m, nil)
}

// Me handles GET /v1/members/me
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetByUserID(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, m, nil)
}

// Eligibility handles GET /v1/members/{id}/eligibility
// @Summary Whether the member can borrow
// @Tags members
// @Produce json
// @Security Bearer
// @Param id path string true "Member ID"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/members/{id}/eligibility [get]
func (h *HTTPHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.visible(r, id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	resp := map[string]any{"can_borrow": true}
	if err := h.service.Eligibility(r.Context(), id); err != nil {
		if code, ok := reasonCode(err); ok {
			resp = map[string]any{"can_borrow": false, "reason": code}
		} else {
			httpx.WriteError(w, r, err)
			return
		}
	}
	httpx.JSONSuccess(w, r, resp, nil)
}

// UpdateProfile handles PUT /v1/members/{id}
func (h *HTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p Profile
	if !httpx.DecodeJSON(w, r, &p) {
		return
	}
	if _, err := h.visible(r, r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	m, err := h.service.UpdateProfile(r.Context(), r.PathValue("id"), p)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, m, nil)
}

type renewReq struct {
	Months int `json:"months" validate:"required,min=1,max=60"`
}

// Renew handles POST /v1/members/{id}/renew
// @Summary Extend a membership
// @Tags members
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Member ID"
// @Param request body renewReq true "Months"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/members/{id}/renew [post]
func (h *HTTPHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var req renewReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	m, err := h.service.Renew(r.Context(), r.PathValue("id"), req.Months)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, m, nil)
}
