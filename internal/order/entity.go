// AngelaMos | 2026
// entity.go

package order

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Order doubles as the cart while pending: each user has at most one
// pending order, and cart mutations edit its items.
type Order struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	OrderNumber     string     `db:"order_number"`
	Status          string     `db:"status"`
	TotalCents      int64      `db:"total_cents"`
	Currency        string     `db:"currency"`
	PaymentIntentID *string    `db:"payment_intent_id"`
	CompletedAt     *time.Time `db:"completed_at"`
	RefundedAt      *time.Time `db:"refunded_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

func (o *Order) IsCompleted() bool {
	return o.Status == StatusCompleted
}

type OrderItem struct {
	ID             string    `db:"id"`
	OrderID        string    `db:"order_id"`
	ProductID      string    `db:"product_id"`
	Quantity       int       `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
	CreatedAt      time.Time `db:"created_at"`
}

func (i *OrderItem) SubtotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// ItemDetail is an order item joined with the product fields needed to
// render carts and to issue entitlements on completion.
type ItemDetail struct {
	OrderItem
	ProductName   string `db:"product_name"`
	ProductSlug   string `db:"product_slug"`
	FileName      string `db:"file_name"`
	DownloadLimit int    `db:"download_limit"`
}

// NewOrderNumber returns a human-referenceable order number of the form
// ORD-20260828-1A2B3C4D.
func NewOrderNumber(now time.Time) (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}

	return fmt.Sprintf(
		"ORD-%s-%s",
		now.UTC().Format("20060102"),
		strings.ToUpper(hex.EncodeToString(raw)),
	), nil
}
