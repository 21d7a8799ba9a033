package user

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

// Create handles POST /v1/users
// @Summary Create a staff or admin account
// @Tags users
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body Account true "Account"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/users [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var acc Account
	if !httpx.DecodeJSON(w, r, &acc) {
		return
	}
	u, err := h.service.Register(r.Context(), acc)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, u)
}

// List handles GET /v1/users
// @Summary List accounts
// @Tags users
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/users [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	users, total, err := h.service.List(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, users, httpx.PageMeta(page, total))
}

// Get handles GET /v1/users/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// SetStatus handles PUT /v1/users/{id}/status
// @Summary Activate or deactivate an account
// @Tags users
// @Accept json
// @Security Bearer
// @Param id path string true "User ID"
// @Param request body statusReq true "Status"
// @Success 204
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/users/{id}/status [put]
func (h *HTTPHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.service.SetStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
