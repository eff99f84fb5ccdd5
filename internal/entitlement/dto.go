// AngelaMos | 2026
// dto.go

package entitlement

import (
	"time"
)

type DownloadResponse struct {
	ID               string     `json:"id"`
	ProductID        string     `json:"product_id"`
	OrderID          string     `json:"order_id"`
	Token            string     `json:"token"`
	DownloadCount    int        `json:"download_count"`
	MaxDownloads     int        `json:"max_downloads"`
	Remaining        int        `json:"remaining"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	LastDownloadedAt *time.Time `json:"last_downloaded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// DownloadInfoResponse reports a grant's standing without consuming a
// download unit.
type DownloadInfoResponse struct {
	DownloadResponse
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type LicenseResponse struct {
	ID              string     `json:"id"`
	Key             string     `json:"key"`
	ProductID       string     `json:"product_id"`
	OrderID         string     `json:"order_id"`
	IsActive        bool       `json:"is_active"`
	ActivationCount int        `json:"activation_count"`
	MaxActivations  int        `json:"max_activations"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ValidateLicenseRequest struct {
	Key string `json:"key" validate:"required,min=19,max=19"`
}

type ValidateLicenseResponse struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

type ActivateLicenseResponse struct {
	Activated       bool   `json:"activated"`
	Reason          string `json:"reason,omitempty"`
	ActivationCount int    `json:"activation_count,omitempty"`
	MaxActivations  int    `json:"max_activations,omitempty"`
}

type PurchaseResponse struct {
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	TotalCents  int64             `json:"total_cents"`
	Currency    string            `json:"currency"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Downloads   []DownloadResponse `json:"downloads"`
	Licenses    []LicenseResponse  `json:"licenses"`
}

type ListParams struct {
	Page     int
	PageSize int
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type ResetDownloadRequest struct {
	// ExtendHours optionally pushes the expiry out from now; zero keeps
	// the reset limited to zeroing the counter with a fresh window.
	ExtendHours int `json:"extend_hours" validate:"gte=0,lte=8760"`
}

func ToDownloadResponse(d *Download) DownloadResponse {
	return DownloadResponse{
		ID:               d.ID,
		ProductID:        d.ProductID,
		OrderID:          d.OrderID,
		Token:            d.Token,
		DownloadCount:    d.DownloadCount,
		MaxDownloads:     d.MaxDownloads,
		Remaining:        d.Remaining(),
		ExpiresAt:        d.ExpiresAt,
		LastDownloadedAt: d.LastDownloadedAt,
		CreatedAt:        d.CreatedAt,
	}
}

func ToDownloadInfoResponse(d *Download, now time.Time) DownloadInfoResponse {
	return DownloadInfoResponse{
		DownloadResponse: ToDownloadResponse(d),
		Valid:            d.ValidAt(now),
		Reason:           d.InvalidReason(now),
	}
}

func ToPurchaseResponse(p *Purchase) PurchaseResponse {
	return PurchaseResponse{
		OrderID:     p.Order.ID,
		OrderNumber: p.Order.OrderNumber,
		TotalCents:  p.Order.TotalCents,
		Currency:    p.Order.Currency,
		CompletedAt: p.Order.CompletedAt,
		Downloads:   ToDownloadResponseList(p.Downloads),
		Licenses:    ToLicenseResponseList(p.Licenses),
	}
}

func ToPurchaseResponseList(purchases []Purchase) []PurchaseResponse {
	responses := make([]PurchaseResponse, 0, len(purchases))
	for i := range purchases {
		responses = append(responses, ToPurchaseResponse(&purchases[i]))
	}
	return responses
}

func ToLicenseResponse(k *LicenseKey) LicenseResponse {
	return LicenseResponse{
		ID:              k.ID,
		Key:             k.Key,
		ProductID:       k.ProductID,
		OrderID:         k.OrderID,
		IsActive:        k.IsActive,
		ActivationCount: k.ActivationCount,
		MaxActivations:  k.MaxActivations,
		ExpiresAt:       k.ExpiresAt,
		CreatedAt:       k.CreatedAt,
	}
}

func ToDownloadResponseList(downloads []Download) []DownloadResponse {
	responses := make([]DownloadResponse, 0, len(downloads))
	for i := range downloads {
		responses = append(responses, ToDownloadResponse(&downloads[i]))
	}
	return responses
}

func ToLicenseResponseList(licenses []LicenseKey) []LicenseResponse {
	responses := make([]LicenseResponse, 0, len(licenses))
	for i := range licenses {
		responses = append(responses, ToLicenseResponse(&licenses[i]))
	}
	return responses
}
