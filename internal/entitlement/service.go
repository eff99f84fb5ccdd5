// AngelaMos | 2026
// service.go

package entitlement

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/angelamos/digitalstore/internal/catalog"
	"github.com/angelamos/digitalstore/internal/core"
	"github.com/angelamos/digitalstore/internal/order"
)

var tracer = otel.Tracer("digitalstore/entitlement")

// FileInfo is everything the handler needs to stream a purchased file.
type FileInfo struct {
	Path     string
	Name     string
	Size     int64
	Download *Download
}

// ProductSource resolves product file metadata for the download gateway.
type ProductSource interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// OrderSource lists the completed orders whose grants make up a user's
// purchase history.
type OrderSource interface {
	ListForUser(
		ctx context.Context,
		userID string,
		params order.ListOrdersParams,
	) ([]order.Order, int, error)
}

// Purchase pairs a completed order with the grants it produced.
type Purchase struct {
	Order     order.Order
	Downloads []Download
	Licenses  []LicenseKey
}

type Service struct {
	repo     Repository
	products ProductSource
	orders   OrderSource
	filesDir string
}

func NewService(
	repo Repository,
	products ProductSource,
	orders OrderSource,
	filesDir string,
) *Service {
	return &Service{
		repo:     repo,
		products: products,
		orders:   orders,
		filesDir: filesDir,
	}
}

// ResolveDownload authorizes a tokenized download and consumes one unit
// of the grant. The file is stat'd before the counter moves, so a
// missing file never costs the buyer a download.
func (s *Service) ResolveDownload(
	ctx context.Context,
	token, userID string,
) (*FileInfo, error) {
	ctx, span := tracer.Start(ctx, "entitlement.resolve_download")
	defer span.End()

	download, err := s.repo.GetDownloadByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if download.UserID != userID {
		return nil, fmt.Errorf("resolve download: %w", core.ErrNotFound)
	}

	now := time.Now()
	if !download.ValidAt(now) {
		if download.Expired(now) {
			return nil, fmt.Errorf(
				"download link has expired: %w",
				core.ErrForbidden,
			)
		}
		return nil, fmt.Errorf(
			"download limit reached: %w",
			core.ErrForbidden,
		)
	}

	product, err := s.products.GetProduct(ctx, download.ProductID)
	if err != nil {
		return nil, err
	}

	path, err := s.resolveFilePath(product.FilePath)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("product file missing: %w", core.ErrNotFound)
	}

	consumed, err := s.repo.ConsumeDownload(ctx, download.ID, now)
	if err != nil {
		return nil, err
	}

	// A concurrent request may have taken the last unit between the
	// read above and the conditional update.
	if !consumed {
		return nil, fmt.Errorf("download limit reached: %w", core.ErrForbidden)
	}

	download.DownloadCount++
	span.SetAttributes(
		attribute.String("product.id", download.ProductID),
		attribute.Int("download.remaining", download.Remaining()),
	)

	name := product.FileName
	if name == "" {
		name = filepath.Base(path)
	}

	return &FileInfo{
		Path:     path,
		Name:     name,
		Size:     stat.Size(),
		Download: download,
	}, nil
}

// resolveFilePath confines product files to the configured directory.
func (s *Service) resolveFilePath(relative string) (string, error) {
	cleaned := filepath.Clean(relative)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid file path: %w", core.ErrInvalidInput)
	}

	return filepath.Join(s.filesDir, cleaned), nil
}

// GetDownloadInfo resolves a token to its grant metadata without
// consuming anything. Unknown tokens and tokens owned by someone else
// are both a not-found; an exhausted or expired grant still resolves.
func (s *Service) GetDownloadInfo(
	ctx context.Context,
	token, userID string,
) (*Download, error) {
	download, err := s.repo.GetDownloadByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if download.UserID != userID {
		return nil, fmt.Errorf("get download info: %w", core.ErrNotFound)
	}

	return download, nil
}

func (s *Service) ListDownloads(
	ctx context.Context,
	userID string,
) ([]Download, error) {
	return s.repo.ListDownloadsForUser(ctx, userID)
}

// ListPurchases returns the user's completed orders with the downloads
// and license keys each one produced.
func (s *Service) ListPurchases(
	ctx context.Context,
	userID string,
) ([]Purchase, error) {
	params := order.ListOrdersParams{Status: order.StatusCompleted}
	params.Normalize()

	orders, _, err := s.orders.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	purchases := make([]Purchase, 0, len(orders))
	for i := range orders {
		downloads, err := s.repo.ListDownloadsForOrder(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}

		licenses, err := s.repo.ListLicensesForOrder(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}

		purchases = append(purchases, Purchase{
			Order:     orders[i],
			Downloads: downloads,
			Licenses:  licenses,
		})
	}

	return purchases, nil
}

func (s *Service) ListLicenses(
	ctx context.Context,
	userID string,
) ([]LicenseKey, error) {
	return s.repo.ListLicensesForUser(ctx, userID)
}

// ValidateLicense checks a key without consuming an activation. An
// unknown key is a not-found error; a known-but-invalid key reports its
// reason with a successful response.
func (s *Service) ValidateLicense(
	ctx context.Context,
	key string,
) (*ValidateLicenseResponse, error) {
	license, err := s.repo.GetLicenseByKey(ctx, normalizeKey(key))
	if err != nil {
		return nil, err
	}

	if reason := license.InvalidReason(time.Now()); reason != "" {
		return &ValidateLicenseResponse{
			Valid:  false,
			Reason: reason,
		}, nil
	}

	return &ValidateLicenseResponse{
		Valid:     true,
		ProductID: license.ProductID,
	}, nil
}

// ActivateLicense consumes one activation slot. The failure reason
// distinguishes deactivated and expired keys from exhausted ones;
// unknown keys are a not-found error.
func (s *Service) ActivateLicense(
	ctx context.Context,
	key string,
) (*ActivateLicenseResponse, error) {
	license, err := s.repo.GetLicenseByKey(ctx, normalizeKey(key))
	if err != nil {
		return nil, err
	}

	now := time.Now()

	activated, err := s.repo.ActivateLicense(ctx, license.ID, now)
	if err != nil {
		return nil, err
	}

	if !activated {
		reason := license.InvalidReason(now)
		if reason == "" {
			reason = ReasonActivationLimitExceeded
		}
		return &ActivateLicenseResponse{
			Activated:       false,
			Reason:          reason,
			ActivationCount: license.ActivationCount,
			MaxActivations:  license.MaxActivations,
		}, nil
	}

	return &ActivateLicenseResponse{
		Activated:       true,
		ActivationCount: license.ActivationCount + 1,
		MaxActivations:  license.MaxActivations,
	}, nil
}

// ResetDownload zeroes a grant's counter and opens a fresh window,
// for support workflows.
func (s *Service) ResetDownload(
	ctx context.Context,
	id string,
	extend time.Duration,
) (*Download, error) {
	var expiresAt *time.Time
	if extend > 0 {
		t := time.Now().Add(extend)
		expiresAt = &t
	}

	if err := s.repo.ResetDownload(ctx, id, expiresAt); err != nil {
		return nil, err
	}

	return s.repo.GetDownloadByID(ctx, id)
}

func (s *Service) DeactivateLicense(ctx context.Context, id string) error {
	return s.repo.SetLicenseActive(ctx, id, false)
}

func (s *Service) ReactivateLicense(ctx context.Context, id string) error {
	return s.repo.SetLicenseActive(ctx, id, true)
}

func (s *Service) ListAllDownloads(
	ctx context.Context,
	params ListParams,
) ([]Download, int, error) {
	params.Normalize()
	return s.repo.ListDownloads(ctx, params.PageSize, params.Offset())
}

func (s *Service) ListAllLicenses(
	ctx context.Context,
	params ListParams,
) ([]LicenseKey, int, error) {
	params.Normalize()
	return s.repo.ListLicenses(ctx, params.PageSize, params.Offset())
}

func (s *Service) ListDownloadsForOrder(
	ctx context.Context,
	orderID string,
) ([]Download, error) {
	return s.repo.ListDownloadsForOrder(ctx, orderID)
}

func (s *Service) ListLicensesForOrder(
	ctx context.Context,
	orderID string,
) ([]LicenseKey, error) {
	return s.repo.ListLicensesForOrder(ctx, orderID)
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
