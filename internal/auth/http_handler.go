package auth

import (
	"errors"
	"net/http"

	"librarydesk/internal/httpx"
	"librarydesk/internal/user"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type LoginReq struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /v1/auth/login
// @Summary User login
// @Description Authenticate with username or email and receive an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginReq true "Login request"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /v1/auth/login [post]
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	sess, err := h.service.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password", nil)
			return
		}
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, sess, nil)
}

// Me handles GET /v1/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/auth/me [get]
func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Me(r.Context(), httpx.UserIDFrom(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, u, nil)
}

type ChangePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password_strength"`
}

// ChangePassword handles PUT /v1/auth/password
func (h *HTTPHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), httpx.UserIDFrom(r), req.CurrentPassword, req.NewPassword); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

type ForgotPasswordReq struct {
	Login string `json:"login" validate:"required"`
}

// ForgotPassword handles POST /v1/auth/password/forgot
// @Summary Request a password reset link
// @Description Always answers 202 so account existence is not revealed
// @Tags auth
// @Accept json
// @Param request body ForgotPasswordReq true "Username or email"
// @Success 202
// @Router /v1/auth/password/forgot [post]
func (h *HTTPHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req.Login); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type ResetPasswordReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password_strength"`
}

// ResetPassword handles POST /v1/auth/password/reset
func (h *HTTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
