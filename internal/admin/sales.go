// AngelaMos | 2026
// sales.go

package admin

import (
	"context"
	"fmt"

	"github.com/angelamos/digitalstore/internal/core"
)

type salesRepository struct {
	db core.DBTX
}

// NewSalesRepository reads sales aggregates straight off the order and
// entitlement tables; cheap enough for an admin dashboard without a
// rollup table.
func NewSalesRepository(db core.DBTX) SalesSource {
	return &salesRepository{db: db}
}

func (r *salesRepository) SalesSummary(
	ctx context.Context,
) (*SalesSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'completed') AS completed_orders,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_orders,
			COUNT(*) FILTER (WHERE status = 'refunded') AS refunded_orders,
			COALESCE(SUM(total_cents) FILTER (WHERE status = 'completed'), 0)
				AS revenue_cents
		FROM orders`

	var summary SalesSummary
	row := struct {
		CompletedOrders int   `db:"completed_orders"`
		PendingOrders   int   `db:"pending_orders"`
		RefundedOrders  int   `db:"refunded_orders"`
		RevenueCents    int64 `db:"revenue_cents"`
	}{}

	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}

	summary.CompletedOrders = row.CompletedOrders
	summary.PendingOrders = row.PendingOrders
	summary.RefundedOrders = row.RefundedOrders
	summary.RevenueCents = row.RevenueCents

	var activeLicenses int
	err := r.db.GetContext(ctx, &activeLicenses,
		`SELECT COUNT(*) FROM license_keys WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	summary.ActiveLicenses = activeLicenses

	var downloadsServed int
	err = r.db.GetContext(ctx, &downloadsServed,
		`SELECT COALESCE(SUM(download_count), 0) FROM downloads`)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	summary.DownloadsServed = downloadsServed

	return &summary, nil
}
