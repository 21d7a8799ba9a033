package settings

import (
	"net/http"

	"librarydesk/internal/httpx"
)

type HTTPHandler struct {
	store *Store
}

func NewHTTPHandler(store *Store) *HTTPHandler {
	return &HTTPHandler{store: store}
}

// List handles GET /v1/settings
// @Summary List settings
// @Tags settings
// @Produce json
// @Security Bearer
// @Param prefix query string false "Only keys with this prefix"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/settings [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		httpx.JSONSuccess(w, r, h.store.ByPrefix(prefix), nil)
		return
	}
	httpx.JSONSuccess(w, r, h.store.All(), nil)
}

// Get handles GET /v1/settings/{key}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, ok := h.store.Get(key)
	if !ok {
		httpx.WriteError(w, r, ErrNotFound.WithMessage("setting %s not found", key))
		return
	}
	httpx.JSONSuccess(w, r, map[string]any{"key": key, "value": v}, nil)
}

type setReq struct {
	Value       any    `json:"value" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

// Set handles PUT /v1/settings/{key}
// @Summary Create or update a setting
// @Tags settings
// @Accept json
// @Produce json
// @Security Bearer
// @Param key path string true "Setting key"
// @Param request body setReq true "Value"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/settings/{key} [put]
func (h *HTTPHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	key := r.PathValue("key")
	if err := h.store.Set(r.Context(), key, req.Value, req.Description); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	v, _ := h.store.Get(key)
	httpx.JSONSuccess(w, r, map[string]any{"key": key, "value": v}, nil)
}

// Delete handles DELETE /v1/settings/{key}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("key")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

// Reload handles POST /v1/settings/reload
func (h *HTTPHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(r.Context()); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, h.store.All(), nil)
}
