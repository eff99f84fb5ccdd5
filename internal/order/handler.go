// AngelaMos | 2026
// handler.go

package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/digitalstore/internal/core"
	"github.com/angelamos/digitalstore/internal/middleware"
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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{itemID}", h.UpdateItem)
		r.Delete("/items/{itemID}", h.RemoveItem)
		r.Delete("/", h.ClearCart)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.ListOrders)
		r.Get("/{orderID}", h.GetOrder)
		r.Post("/{orderID}/cancel", h.CancelOrder)
	})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	order, items, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(order, items))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	order, items, err := h.service.AddItem(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "product")
			return
		}
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "product is not available for purchase")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(order, items))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	order, items, err := h.service.UpdateItem(r.Context(), userID, itemID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "cart item")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(order, items))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	itemID := chi.URLParam(r, "itemID")

	order, items, err := h.service.RemoveItem(r.Context(), userID, itemID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "cart item")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(order, items))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.ClearCart(r.Context(), userID); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	params := ListOrdersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Status:   r.URL.Query().Get("status"),
	}

	orders, total, err := h.service.ListOrders(r.Context(), userID, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, orders, params.Page, params.PageSize, total)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orderID := chi.URLParam(r, "orderID")

	order, items, err := h.service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "order")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToOrderResponse(order, items))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orderID := chi.URLParam(r, "orderID")

	if err := h.service.CancelOrder(r.Context(), userID, orderID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "order")
			return
		}
		if errors.Is(err, core.ErrConflict) {
			core.Conflict(w, "only pending orders can be cancelled")
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
