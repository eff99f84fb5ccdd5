// AngelaMos | 2026
// handler.go

package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/digitalstore/internal/core"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{slug}", h.GetProduct)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/catalog", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{categoryID}", h.UpdateCategory)
		r.Delete("/categories/{categoryID}", h.DeleteCategory)

		r.Post("/products", h.CreateProduct)
		r.Get("/products", h.ListAllProducts)
		r.Put("/products/{productID}", h.UpdateProduct)
		r.Delete("/products/{productID}", h.DeactivateProduct)
	})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	responses := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		responses = append(responses, ToCategoryResponse(&c))
	}

	core.OK(w, responses)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := ListProductsParams{
		Page:         parseIntQuery(r, "page", 1),
		PageSize:     parseIntQuery(r, "page_size", 20),
		Search:       r.URL.Query().Get("search"),
		CategorySlug: r.URL.Query().Get("category"),
	}

	products, total, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToProductResponseList(products),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	product, err := h.service.GetPublicProduct(r.Context(), slug)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "product")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToProductResponse(product))
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.Conflict(w, "category slug already exists")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, ToCategoryResponse(category))
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), categoryID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "category")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToCategoryResponse(category))
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "categoryID")

	if err := h.service.DeleteCategory(r.Context(), categoryID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "category")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.Conflict(w, "product slug already exists")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.BadRequest(w, "category does not exist")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, ToProductResponse(product))
}

// ListAllProducts includes inactive products, for admin views.
func (h *Handler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	params := ListProductsParams{
		Page:            parseIntQuery(r, "page", 1),
		PageSize:        parseIntQuery(r, "page_size", 20),
		Search:          r.URL.Query().Get("search"),
		CategorySlug:    r.URL.Query().Get("category"),
		IncludeInactive: true,
	}

	products, total, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToProductResponseList(products),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), productID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "product")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToProductResponse(product))
}

func (h *Handler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	if err := h.service.DeactivateProduct(r.Context(), productID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "product")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
