// AngelaMos | 2026
// issuer.go

package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelamos/digitalstore/internal/core"
)

// IssueItem describes one product line to entitle. DownloadLimit is the
// product's per-purchase cap, captured at completion time.
type IssueItem struct {
	ProductID     string
	DownloadLimit int
}

type IssueGrant struct {
	UserID  string
	OrderID string
	Items   []IssueItem
}

// Issuer creates download grants and license keys for completed orders.
// Callers pass a Repository bound to their transaction so issuance
// commits or rolls back with the order status flip.
type Issuer struct {
	maxActivations int
	downloadExpiry time.Duration
}

func NewIssuer(maxActivations int, downloadExpiry time.Duration) *Issuer {
	return &Issuer{
		maxActivations: maxActivations,
		downloadExpiry: downloadExpiry,
	}
}

// IssueForOrder is idempotent per (order, product): replayed completions
// insert nothing thanks to the unique pairing in the repository.
func (i *Issuer) IssueForOrder(
	ctx context.Context,
	repo Repository,
	grant IssueGrant,
) error {
	var expiresAt *time.Time
	if i.downloadExpiry > 0 {
		t := time.Now().Add(i.downloadExpiry)
		expiresAt = &t
	}

	for _, item := range grant.Items {
		token, err := core.GenerateDownloadToken()
		if err != nil {
			return fmt.Errorf("issue download: %w", err)
		}

		download := &Download{
			ID:           uuid.New().String(),
			UserID:       grant.UserID,
			OrderID:      grant.OrderID,
			ProductID:    item.ProductID,
			Token:        token,
			MaxDownloads: item.DownloadLimit,
			ExpiresAt:    expiresAt,
		}

		if _, err := repo.CreateDownload(ctx, download); err != nil {
			return err
		}

		key, err := core.GenerateLicenseKey()
		if err != nil {
			return fmt.Errorf("issue license: %w", err)
		}

		license := &LicenseKey{
			ID:             uuid.New().String(),
			Key:            key,
			UserID:         grant.UserID,
			OrderID:        grant.OrderID,
			ProductID:      item.ProductID,
			MaxActivations: i.maxActivations,
		}

		if _, err := repo.CreateLicenseKey(ctx, license); err != nil {
			return err
		}
	}

	return nil
}
