// AngelaMos | 2026
// handler.go

package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/digitalstore/internal/core"
	"github.com/angelamos/digitalstore/internal/middleware"
)

// webhook payloads are small; cap reads defensively against misdirected
// uploads.
const maxWebhookBody = 1 << 16

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
	r.Route("/payments", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/methods", h.GetPaymentMethods)
		r.Post("/webhook", h.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/intent", h.CreateIntent)
			r.Post("/confirm", h.Confirm)
		})
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/payments", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/orders/{orderID}/refund", h.RefundOrder)
	})
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.service.Config())
}

func (h *Handler) GetPaymentMethods(w http.ResponseWriter, r *http.Request) {
	core.OK(w, PaymentMethodsResponse{Methods: []string{"card"}})
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.CreateIntent(r.Context(), userID, req.OrderID)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Confirm(r.Context(), userID, req.OrderID)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	core.OK(w, resp)
}

// Webhook receives provider events. Signature failures are 400s so the
// provider retries; unknown orders are acknowledged.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		core.BadRequest(w, "unable to read payload")
		return
	}

	signature := r.Header.Get("Stripe-Signature")

	err = h.service.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "invalid webhook signature")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]string{"received": "true"})
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	if err := h.service.RefundOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, core.ErrConflict) {
			core.Conflict(w, "only completed orders can be refunded")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "order")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "order")
	case errors.Is(err, core.ErrConflict):
		core.Conflict(w, strippedMessage(err))
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, strippedMessage(err))
	case errors.Is(err, core.ErrUpstream):
		core.JSONError(w, core.UpstreamError("payment provider error"))
	default:
		core.InternalServerError(w, err)
	}
}

// strippedMessage drops the wrapped sentinel suffix for client display.
func strippedMessage(err error) string {
	msg := err.Error()
	if cut := strings.LastIndex(msg, ":"); cut > 0 {
		return msg[:cut]
	}
	return msg
}
