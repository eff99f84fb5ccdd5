// AngelaMos | 2026
// repository.go

package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angelamos/digitalstore/internal/core"
)

type Repository interface {
	// CreateDownload inserts a grant unless one already exists for the
	// (order, product) pair, reporting whether a row was inserted. The
	// unique index makes issuance idempotent under replayed completions.
	CreateDownload(ctx context.Context, download *Download) (bool, error)
	CreateLicenseKey(ctx context.Context, key *LicenseKey) (bool, error)

	GetDownloadByToken(ctx context.Context, token string) (*Download, error)
	GetDownloadByID(ctx context.Context, id string) (*Download, error)
	GetLicenseByKey(ctx context.Context, key string) (*LicenseKey, error)
	GetLicenseByID(ctx context.Context, id string) (*LicenseKey, error)

	// ConsumeDownload increments the counter only while the grant is
	// still inside its count and time limits. False means the grant was
	// exhausted, expired, or gone.
	ConsumeDownload(ctx context.Context, id string, now time.Time) (bool, error)
	// ActivateLicense increments the activation counter under the same
	// conditional-update discipline.
	ActivateLicense(ctx context.Context, id string, now time.Time) (bool, error)

	ListDownloadsForUser(ctx context.Context, userID string) ([]Download, error)
	ListLicensesForUser(ctx context.Context, userID string) ([]LicenseKey, error)
	ListDownloadsForOrder(ctx context.Context, orderID string) ([]Download, error)
	ListLicensesForOrder(ctx context.Context, orderID string) ([]LicenseKey, error)
	ListDownloads(ctx context.Context, limit, offset int) ([]Download, int, error)
	ListLicenses(ctx context.Context, limit, offset int) ([]LicenseKey, int, error)

	ResetDownload(ctx context.Context, id string, expiresAt *time.Time) error
	SetLicenseActive(ctx context.Context, id string, active bool) error

	// RevokeForOrder deactivates license keys and expires download
	// grants for a refunded order.
	RevokeForOrder(ctx context.Context, orderID string, now time.Time) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const downloadColumns = `
	id, user_id, order_id, product_id, token, download_count,
	max_downloads, expires_at, last_downloaded_at, created_at, updated_at`

const licenseColumns = `
	id, key, user_id, order_id, product_id, is_active,
	activation_count, max_activations, expires_at, created_at, updated_at`

func (r *repository) CreateDownload(
	ctx context.Context,
	download *Download,
) (bool, error) {
	query := `
		INSERT INTO downloads (
			id, user_id, order_id, product_id, token, max_downloads, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, product_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		download.ID,
		download.UserID,
		download.OrderID,
		download.ProductID,
		download.Token,
		download.MaxDownloads,
		download.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("create download: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create download: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) CreateLicenseKey(
	ctx context.Context,
	key *LicenseKey,
) (bool, error) {
	query := `
		INSERT INTO license_keys (
			id, key, user_id, order_id, product_id, max_activations, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id, product_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.Key,
		key.UserID,
		key.OrderID,
		key.ProductID,
		key.MaxActivations,
		key.ExpiresAt,
	)
	if err != nil {
		return false, fmt.Errorf("create license key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create license key: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) GetDownloadByToken(
	ctx context.Context,
	token string,
) (*Download, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM downloads
		WHERE token = $1`, downloadColumns)

	var download Download
	err := r.db.GetContext(ctx, &download, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get download by token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get download by token: %w", err)
	}

	return &download, nil
}

func (r *repository) GetDownloadByID(
	ctx context.Context,
	id string,
) (*Download, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM downloads
		WHERE id = $1`, downloadColumns)

	var download Download
	err := r.db.GetContext(ctx, &download, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get download: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get download: %w", err)
	}

	return &download, nil
}

func (r *repository) GetLicenseByKey(
	ctx context.Context,
	key string,
) (*LicenseKey, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM license_keys
		WHERE key = $1`, licenseColumns)

	var license LicenseKey
	err := r.db.GetContext(ctx, &license, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get license by key: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}

	return &license, nil
}

func (r *repository) GetLicenseByID(
	ctx context.Context,
	id string,
) (*LicenseKey, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM license_keys
		WHERE id = $1`, licenseColumns)

	var license LicenseKey
	err := r.db.GetContext(ctx, &license, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get license: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get license: %w", err)
	}

	return &license, nil
}

func (r *repository) ConsumeDownload(
	ctx context.Context,
	id string,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE downloads
		SET download_count = download_count + 1,
		    last_downloaded_at = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND download_count < max_downloads
		  AND (expires_at IS NULL OR expires_at > $2)`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("consume download: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume download: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) ActivateLicense(
	ctx context.Context,
	id string,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE license_keys
		SET activation_count = activation_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND is_active
		  AND activation_count < max_activations
		  AND (expires_at IS NULL OR expires_at > $2)`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("activate license: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate license: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) ListDownloadsForUser(
	ctx context.Context,
	userID string,
) ([]Download, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM downloads
		WHERE user_id = $1
		ORDER BY created_at DESC`, downloadColumns)

	var downloads []Download
	if err := r.db.SelectContext(ctx, &downloads, query, userID); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}

	return downloads, nil
}

func (r *repository) ListLicensesForUser(
	ctx context.Context,
	userID string,
) ([]LicenseKey, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM license_keys
		WHERE user_id = $1
		ORDER BY created_at DESC`, licenseColumns)

	var licenses []LicenseKey
	if err := r.db.SelectContext(ctx, &licenses, query, userID); err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}

	return licenses, nil
}

func (r *repository) ListDownloadsForOrder(
	ctx context.Context,
	orderID string,
) ([]Download, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM downloads
		WHERE order_id = $1
		ORDER BY created_at ASC`, downloadColumns)

	var downloads []Download
	if err := r.db.SelectContext(ctx, &downloads, query, orderID); err != nil {
		return nil, fmt.Errorf("list downloads for order: %w", err)
	}

	return downloads, nil
}

func (r *repository) ListLicensesForOrder(
	ctx context.Context,
	orderID string,
) ([]LicenseKey, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM license_keys
		WHERE order_id = $1
		ORDER BY created_at ASC`, licenseColumns)

	var licenses []LicenseKey
	if err := r.db.SelectContext(ctx, &licenses, query, orderID); err != nil {
		return nil, fmt.Errorf("list licenses for order: %w", err)
	}

	return licenses, nil
}

func (r *repository) ListDownloads(
	ctx context.Context,
	limit, offset int,
) ([]Download, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM downloads`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count downloads: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM downloads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, downloadColumns)

	var downloads []Download
	err := r.db.SelectContext(ctx, &downloads, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list all downloads: %w", err)
	}

	return downloads, total, nil
}

func (r *repository) ListLicenses(
	ctx context.Context,
	limit, offset int,
) ([]LicenseKey, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM license_keys`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, fmt.Errorf("count licenses: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM license_keys
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, licenseColumns)

	var licenses []LicenseKey
	err := r.db.SelectContext(ctx, &licenses, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list all licenses: %w", err)
	}

	return licenses, total, nil
}

func (r *repository) ResetDownload(
	ctx context.Context,
	id string,
	expiresAt *time.Time,
) error {
	query := `
		UPDATE downloads
		SET download_count = 0,
		    expires_at = $2,
		    last_downloaded_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, expiresAt)
	if err != nil {
		return fmt.Errorf("reset download: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset download: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("reset download: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) SetLicenseActive(
	ctx context.Context,
	id string,
	active bool,
) error {
	query := `
		UPDATE license_keys
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set license active: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set license active: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set license active: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeForOrder(
	ctx context.Context,
	orderID string,
	now time.Time,
) error {
	deactivate := `
		UPDATE license_keys
		SET is_active = FALSE, updated_at = NOW()
		WHERE order_id = $1`

	if _, err := r.db.ExecContext(ctx, deactivate, orderID); err != nil {
		return fmt.Errorf("revoke licenses: %w", err)
	}

	expire := `
		UPDATE downloads
		SET expires_at = $2, updated_at = NOW()
		WHERE order_id = $1`

	if _, err := r.db.ExecContext(ctx, expire, orderID, now); err != nil {
		return fmt.Errorf("expire downloads: %w", err)
	}

	return nil
}
