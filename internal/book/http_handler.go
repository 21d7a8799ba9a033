package book

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

// List handles GET /v1/books
// @Summary List books
// @Description Filter by category, free text over title/author or exact ISBN, and featured flag.
// @Tags books
// @Produce json
// @Param category_id query string false "Category ID"
// @Param search query string false "Title/author substring or exact ISBN"
// @Param featured query bool false "Only featured books"
// @Param sort query string false "title, author, publication_year, created_at, available"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/books [get]
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

	books, total, err := h.service.List(r.Context(), Filter{
		CategoryID: q.Get("category_id"),
		Search:     q.Get("search"),
		Featured:   httpx.QueryBool(r, "featured"),
		Sort:       sort,
		Order:      order,
		Limit:      page.Limit(),
		Offset:     page.Offset(),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, books, httpx.PageMeta(page, total))
}

// Get handles GET /v1/books/{id}
// @Summary Get a book
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/books/{id} [get]
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Availability handles GET /v1/books/{id}/availability
func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	ok, err := h.service.IsAvailable(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, map[string]bool{"available": ok}, nil)
}

// Create handles POST /v1/books
// @Summary Add a book to the catalog
// @Tags books
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body Input true "Book"
// @Success 201 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/books [post]
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	b, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, b)
}

// Update handles PUT /v1/books/{id}
// @Summary Update a book
// @Tags books
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Book ID"
// @Param request body Input true "Book"
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 404 {object} httpx.ErrorResponse
// @Router /v1/books/{id} [put]
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !httpx.DecodeJSON(w, r, &in) {
		return
	}
	b, err := h.service.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, b, nil)
}

// Delete handles DELETE /v1/books/{id}
// @Summary Remove a book
// @Description Refused with 409 while copies are on loan.
// @Tags books
// @Security Bearer
// @Param id path string true "Book ID"
// @Success 204 "No Content"
// @Failure 404 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /v1/books/{id} [delete]
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

type featuredReq struct {
	Featured bool `json:"featured"`
}

// SetFeatured handles PUT /v1/books/{id}/featured
func (h *HTTPHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	var req featuredReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.service.SetFeatured(r.Context(), r.PathValue("id"), req.Featured); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
