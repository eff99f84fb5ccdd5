// AngelaMos | 2026
// entity.go

package entitlement

import (
	"time"
)

// Download is a tokenized grant to fetch one product file. The token is
// the only handle a buyer needs; the grant stops working once the count
// reaches MaxDownloads or ExpiresAt passes.
type Download struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	OrderID          string     `db:"order_id"`
	ProductID        string     `db:"product_id"`
	Token            string     `db:"token"`
	DownloadCount    int        `db:"download_count"`
	MaxDownloads     int        `db:"max_downloads"`
	ExpiresAt        *time.Time `db:"expires_at"`
	LastDownloadedAt *time.Time `db:"last_downloaded_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (d *Download) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && !d.ExpiresAt.After(now)
}

func (d *Download) Exhausted() bool {
	return d.DownloadCount >= d.MaxDownloads
}

// ValidAt reports whether the grant permits a download at the given
// instant. Pure; the atomic counter update in the repository is what
// actually enforces this under concurrency.
func (d *Download) ValidAt(now time.Time) bool {
	return !d.Expired(now) && !d.Exhausted()
}

// InvalidReason names why the grant can no longer serve a download, or
// returns the empty string while it still can.
func (d *Download) InvalidReason(now time.Time) string {
	switch {
	case d.Expired(now):
		return ReasonExpired
	case d.Exhausted():
		return ReasonDownloadLimitExceeded
	default:
		return ""
	}
}

func (d *Download) Remaining() int {
	remaining := d.MaxDownloads - d.DownloadCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LicenseKey is a per-product activation credential issued alongside
// the download grant on order completion.
type LicenseKey struct {
	ID              string     `db:"id"`
	Key             string     `db:"key"`
	UserID          string     `db:"user_id"`
	OrderID         string     `db:"order_id"`
	ProductID       string     `db:"product_id"`
	IsActive        bool       `db:"is_active"`
	ActivationCount int        `db:"activation_count"`
	MaxActivations  int        `db:"max_activations"`
	ExpiresAt       *time.Time `db:"expires_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (k *LicenseKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

func (k *LicenseKey) Exhausted() bool {
	return k.ActivationCount >= k.MaxActivations
}

// ValidAt reports whether the key is active, inside its expiry window,
// and still has activation slots left.
func (k *LicenseKey) ValidAt(now time.Time) bool {
	return k.IsActive && !k.Expired(now) && !k.Exhausted()
}

func (k *LicenseKey) CanActivate(now time.Time) bool {
	return k.ValidAt(now)
}

// Invalidity reasons reported by license validation and activation.
const (
	ReasonDeactivated             = "deactivated"
	ReasonExpired                 = "expired"
	ReasonActivationLimitExceeded = "activation_limit_exceeded"
	ReasonDownloadLimitExceeded   = "download_limit_exceeded"
)

// InvalidReason names why a license fails validation, or returns the
// empty string for a valid one.
func (k *LicenseKey) InvalidReason(now time.Time) string {
	switch {
	case !k.IsActive:
		return ReasonDeactivated
	case k.Expired(now):
		return ReasonExpired
	case k.Exhausted():
		return ReasonActivationLimitExceeded
	default:
		return ""
	}
}
