// AngelaMos | 2026
// handler.go

package entitlement

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

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
	downloadLimiter func(http.Handler) http.Handler,
) {
	r.Route("/downloads", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.ListDownloads)
		r.Get("/{token}/info", h.DownloadInfo)

		r.Group(func(r chi.Router) {
			if downloadLimiter != nil {
				r.Use(downloadLimiter)
			}
			r.Get("/{token}/file", h.DownloadFile)
		})
	})

	r.With(authenticator).Get("/purchases", h.ListPurchases)

	r.Route("/licenses", func(r chi.Router) {
		r.With(authenticator).Get("/", h.ListLicenses)
		r.Post("/validate", h.ValidateLicense)
		r.Post("/activate", h.ActivateLicense)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/entitlements", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/downloads", h.ListAllDownloads)
		r.Get("/licenses", h.ListAllLicenses)
		r.Get("/orders/{orderID}/downloads", h.ListOrderDownloads)
		r.Get("/orders/{orderID}/licenses", h.ListOrderLicenses)
		r.Post("/downloads/{downloadID}/reset", h.ResetDownload)
		r.Post("/licenses/{licenseID}/deactivate", h.DeactivateLicense)
		r.Post("/licenses/{licenseID}/reactivate", h.ReactivateLicense)
	})
}

func (h *Handler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	downloads, err := h.service.ListDownloads(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToDownloadResponseList(downloads))
}

// DownloadInfo reports the grant behind a token without spending a
// download unit.
func (h *Handler) DownloadInfo(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := chi.URLParam(r, "token")

	download, err := h.service.GetDownloadInfo(r.Context(), token, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "download")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToDownloadInfoResponse(download, time.Now()))
}

// DownloadFile streams the purchased file and consumes one download.
// The file is written with a plain copy rather than ServeFile: a
// conditional or ranged request must never get a cheap 304/206 after
// the counter has already moved.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := chi.URLParam(r, "token")

	info, err := h.service.ResolveDownload(r.Context(), token, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "download")
			return
		}
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, forbiddenMessage(err))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	file, err := os.Open(info.Path)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf(`attachment; filename=%q`, info.Name),
	)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("X-Downloads-Remaining",
		fmt.Sprintf("%d", info.Download.Remaining()))

	io.Copy(w, file)
}

// ListPurchases returns the user's completed orders with the grants
// each one produced.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	purchases, err := h.service.ListPurchases(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToPurchaseResponseList(purchases))
}

func (h *Handler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	licenses, err := h.service.ListLicenses(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToLicenseResponseList(licenses))
}

func (h *Handler) ValidateLicense(w http.ResponseWriter, r *http.Request) {
	var req ValidateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.ValidateLicense(r.Context(), req.Key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "license")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ActivateLicense(w http.ResponseWriter, r *http.Request) {
	var req ValidateLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.ActivateLicense(r.Context(), req.Key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "license")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	if !resp.Activated {
		core.JSONError(w, core.NewAppError(
			core.ErrForbidden,
			activationFailureMessage(resp.Reason),
			http.StatusForbidden,
			"LICENSE_ACTIVATION_FAILED",
		))
		return
	}

	core.OK(w, resp)
}

func (h *Handler) ListAllDownloads(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
	}

	downloads, total, err := h.service.ListAllDownloads(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(w, ToDownloadResponseList(downloads),
		params.Page, params.PageSize, total)
}

func (h *Handler) ListAllLicenses(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
	}

	licenses, total, err := h.service.ListAllLicenses(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(w, ToLicenseResponseList(licenses),
		params.Page, params.PageSize, total)
}

func (h *Handler) ListOrderDownloads(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	downloads, err := h.service.ListDownloadsForOrder(r.Context(), orderID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToDownloadResponseList(downloads))
}

func (h *Handler) ListOrderLicenses(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	licenses, err := h.service.ListLicensesForOrder(r.Context(), orderID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToLicenseResponseList(licenses))
}

func (h *Handler) ResetDownload(w http.ResponseWriter, r *http.Request) {
	downloadID := chi.URLParam(r, "downloadID")

	var req ResetDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	download, err := h.service.ResetDownload(
		r.Context(),
		downloadID,
		time.Duration(req.ExtendHours)*time.Hour,
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "download")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToDownloadResponse(download))
}

func (h *Handler) DeactivateLicense(w http.ResponseWriter, r *http.Request) {
	licenseID := chi.URLParam(r, "licenseID")

	if err := h.service.DeactivateLicense(r.Context(), licenseID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "license")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ReactivateLicense(w http.ResponseWriter, r *http.Request) {
	licenseID := chi.URLParam(r, "licenseID")

	if err := h.service.ReactivateLicense(r.Context(), licenseID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "license")
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

// forbiddenMessage strips the wrapped sentinel suffix for client display.
func forbiddenMessage(err error) string {
	msg := err.Error()
	if cut := strings.LastIndex(msg, ":"); cut > 0 {
		return msg[:cut]
	}
	return "download not permitted"
}

func activationFailureMessage(reason string) string {
	switch reason {
	case ReasonDeactivated:
		return "license key has been deactivated"
	case ReasonExpired:
		return "license key has expired"
	case ReasonActivationLimitExceeded:
		return "activation limit exceeded"
	default:
		return "license key is not valid"
	}
}
