// AngelaMos | 2026
// repository.go

package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/digitalstore/internal/core"
)

type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*Order, error)
	GetPendingForUser(ctx context.Context, userID string) (*Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*Order, error)
	ListForUser(
		ctx context.Context,
		userID string,
		params ListOrdersParams,
	) ([]Order, int, error)

	SetPaymentIntent(ctx context.Context, orderID, intentID string) error
	UpdateTotal(ctx context.Context, orderID string, totalCents int64) error

	// TransitionStatus flips an order from one status to another in a
	// single conditional update and reports whether this call won the
	// transition. A false return with nil error means the order was not
	// in the expected status.
	TransitionStatus(ctx context.Context, orderID, from, to string) (bool, error)
	// MarkRefunded flips a completed order to refunded, reporting whether
	// this call performed the flip. False with nil error means the order
	// was not in completed status.
	MarkRefunded(ctx context.Context, orderID string, at time.Time) (bool, error)

	UpsertItem(ctx context.Context, item *OrderItem) error
	UpdateItemQuantity(
		ctx context.Context,
		orderID, itemID string,
		quantity int,
	) error
	RemoveItem(ctx context.Context, orderID, itemID string) error
	ClearItems(ctx context.Context, orderID string) error
	GetItemDetails(ctx context.Context, orderID string) ([]ItemDetail, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, user_id, order_number, status, total_cents, currency,
	payment_intent_id, completed_at, refunded_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, order *Order) error {
	query := `
		INSERT INTO orders (id, user_id, order_number, status, total_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, order, query,
		order.ID,
		order.UserID,
		order.OrderNumber,
		order.Status,
		order.TotalCents,
		order.Currency,
	)
	if err != nil {
		// The partial unique index on (user_id) WHERE status = 'pending'
		// enforces one cart per user.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create order: %w", core.ErrConflict)
		}
		return fmt.Errorf("create order: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE id = $1`, orderColumns)

	var order Order
	err := r.db.GetContext(ctx, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	return &order, nil
}

func (r *repository) GetByIDForUser(
	ctx context.Context,
	id, userID string,
) (*Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE id = $1 AND user_id = $2`, orderColumns)

	var order Order
	err := r.db.GetContext(ctx, &order, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order for user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order for user: %w", err)
	}

	return &order, nil
}

func (r *repository) GetPendingForUser(
	ctx context.Context,
	userID string,
) (*Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE user_id = $1 AND status = 'pending'`, orderColumns)

	var order Order
	err := r.db.GetContext(ctx, &order, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get pending order: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending order: %w", err)
	}

	return &order, nil
}

func (r *repository) GetByPaymentIntentID(
	ctx context.Context,
	intentID string,
) (*Order, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE payment_intent_id = $1`, orderColumns)

	var order Order
	err := r.db.GetContext(ctx, &order, query, intentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get order by intent: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order by intent: %w", err)
	}

	return &order, nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
	params ListOrdersParams,
) ([]Order, int, error) {
	params.Normalize()

	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM orders WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var orders []Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

func (r *repository) SetPaymentIntent(
	ctx context.Context,
	orderID, intentID string,
) error {
	query := `
		UPDATE orders
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, orderID, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set payment intent: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) UpdateTotal(
	ctx context.Context,
	orderID string,
	totalCents int64,
) error {
	query := `
		UPDATE orders
		SET total_cents = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, orderID, totalCents)
	if err != nil {
		return fmt.Errorf("update total: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update total: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update total: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) TransitionStatus(
	ctx context.Context,
	orderID, from, to string,
) (bool, error) {
	query := `
		UPDATE orders
		SET status = $3,
		    completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition status: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) MarkRefunded(
	ctx context.Context,
	orderID string,
	at time.Time,
) (bool, error) {
	query := `
		UPDATE orders
		SET status = 'refunded', refunded_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'completed'`

	result, err := r.db.ExecContext(ctx, query, orderID, at)
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) UpsertItem(ctx context.Context, item *OrderItem) error {
	// Re-adding a product bumps the quantity on the existing line and
	// refreshes the captured unit price.
	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, product_id) DO UPDATE
		SET quantity = order_items.quantity + EXCLUDED.quantity,
		    unit_price_cents = EXCLUDED.unit_price_cents
		RETURNING id, quantity, created_at`

	err := r.db.GetContext(ctx, item, query,
		item.ID,
		item.OrderID,
		item.ProductID,
		item.Quantity,
		item.UnitPriceCents,
	)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}

	return nil
}

func (r *repository) UpdateItemQuantity(
	ctx context.Context,
	orderID, itemID string,
	quantity int,
) error {
	query := `
		UPDATE order_items
		SET quantity = $3
		WHERE id = $2 AND order_id = $1`

	result, err := r.db.ExecContext(ctx, query, orderID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("update item quantity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item quantity: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update item quantity: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RemoveItem(
	ctx context.Context,
	orderID, itemID string,
) error {
	query := `DELETE FROM order_items WHERE id = $2 AND order_id = $1`

	result, err := r.db.ExecContext(ctx, query, orderID, itemID)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove item: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ClearItems(ctx context.Context, orderID string) error {
	query := `DELETE FROM order_items WHERE order_id = $1`

	if _, err := r.db.ExecContext(ctx, query, orderID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	return nil
}

func (r *repository) GetItemDetails(
	ctx context.Context,
	orderID string,
) ([]ItemDetail, error) {
	query := `
		SELECT i.id, i.order_id, i.product_id, i.quantity,
		       i.unit_price_cents, i.created_at,
		       p.name AS product_name, p.slug AS product_slug,
		       p.file_name, p.download_limit
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.created_at ASC`

	var items []ItemDetail
	if err := r.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("get item details: %w", err)
	}

	return items, nil
}
