// AngelaMos | 2026
// dto.go

package order

import (
	"time"
)

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity"   validate:"omitempty,gte=1,lte=10"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1,lte=10"`
}

type ItemResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductSlug    string `json:"product_slug"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type OrderResponse struct {
	ID          string         `json:"id"`
	OrderNumber string         `json:"order_number"`
	Status      string         `json:"status"`
	TotalCents  int64          `json:"total_cents"`
	Currency    string         `json:"currency"`
	Items       []ItemResponse `json:"items"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type ListOrdersParams struct {
	Page     int
	PageSize int
	Status   string
}

func (p *ListOrdersParams) Normalize() {
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

func (p *ListOrdersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToItemResponse(d *ItemDetail) ItemResponse {
	return ItemResponse{
		ID:             d.ID,
		ProductID:      d.ProductID,
		ProductName:    d.ProductName,
		ProductSlug:    d.ProductSlug,
		Quantity:       d.Quantity,
		UnitPriceCents: d.UnitPriceCents,
		SubtotalCents:  d.SubtotalCents(),
	}
}

func ToOrderResponse(o *Order, items []ItemDetail) OrderResponse {
	itemResponses := make([]ItemResponse, 0, len(items))
	for i := range items {
		itemResponses = append(itemResponses, ToItemResponse(&items[i]))
	}

	return OrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalCents:  o.TotalCents,
		Currency:    o.Currency,
		Items:       itemResponses,
		CompletedAt: o.CompletedAt,
		CreatedAt:   o.CreatedAt,
	}
}
