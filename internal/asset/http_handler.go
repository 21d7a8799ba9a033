package asset

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"librarydesk/internal/httpx"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 1 << 20

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// List handles GET /v1/assets
// @Summary List digital assets visible to the caller
// @Tags assets
// @Produce json
// @Security Bearer
// @Param search query string false "Title/description substring"
// @Param category_id query string false "Category ID"
// @Param public query bool false "Only public or only private"
// @Param sort query string false "created_at, title, file_size"
// @Param order query string false "asc or desc"
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/assets [get]
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := ParseSortField(q.Get("sort"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	order, err := ParseSortOrder(q.Get("order"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	page := httpx.ParsePage(r)

	items, total, err := h.service.List(r.Context(), httpx.PrincipalFrom(r), Filter{
		Search:     q.Get("search"),
		CategoryID: q.Get("category_id"),
		Public:     httpx.QueryBool(r, "public"),
		Sort:       sort,
		Order:      order,
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, items, httpx.PageMeta(page, total))
}

// Upload handles POST /v1/assets
// @Summary Upload a file
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param file formData file true "File"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param category_id formData string false "Category ID"
// @Param is_public formData bool false "Visible to everyone"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/assets [post]
func (h *HTTPHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", "expected a multipart form", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", "file is required", nil)
		return
	}
	defer file.Close()

	in := formInput(r)
	if in.Title == "" {
		in.Title = strings.TrimSuffix(header.Filename, "."+fileExt(header.Filename))
	}

	a, err := h.service.Upload(r.Context(), httpx.PrincipalFrom(r), file, header.Filename, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, a)
}

func formInput(r *http.Request) Input {
	in := Input{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if c := strings.TrimSpace(r.FormValue("category_id")); c != "" {
		in.CategoryID = &c
	}
	in.Public, _ = strconv.ParseBool(r.FormValue("is_public"))
	return in
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// Get handles GET /v1/assets/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), httpx.PrincipalFrom(r), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, a, nil)
}

// Update handles PUT /v1/assets/{id}
// @Summary Edit asset metadata (owner or admin)
// @Tags assets
// @Accept json
// @Produce json
// @Security Bearer
// @Param body body Input true "Metadata"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 403 {object} httpx.ErrorResponse
// @Router /v1/assets/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	a, err := h.service.Update(r.Context(), httpx.PrincipalFrom(r), r.PathValue("id"), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, a, nil)
}

// Delete handles DELETE /v1/assets/{id}. A file left behind on disk does not
// fail the request; the record is already gone.
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), httpx.PrincipalFrom(r), r.PathValue("id"))
	if err != nil && !errors.Is(err, ErrOrphanedFile) {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

// Download handles GET /v1/assets/{id}/download
// @Summary Download the asset file
// @Tags assets
// @Produce octet-stream
// @Security Bearer
// @Success 200 {file} file
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/assets/{id}/download [get]
func (h *HTTPHandler) Download(w http.ResponseWriter, r *http.Request) {
	a, f, err := h.service.Download(r.Context(), httpx.PrincipalFrom(r), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	defer f.Close()

	if a.MIMEType != "" {
		w.Header().Set("Content-Type", a.MIMEType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(a)))
	http.ServeContent(w, r, downloadName(a), a.UpdatedAt, f)
}

func downloadName(a Asset) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\' || r == '/' || r < 0x20:
			return '_'
		}
		return r
	}, strings.TrimSpace(a.Title))
	if name == "" {
		name = a.ID
	}
	return name + "." + a.FileType
}

// Downloads handles GET /v1/admin/assets/{id}/downloads
func (h *HTTPHandler) Downloads(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	items, err := h.service.DownloadHistory(r.Context(), r.PathValue("id"), page.Limit())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, items, nil)
}

// Stats handles GET /v1/admin/assets/stats
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, st, nil)
}
