// AngelaMos | 2026
// service.go

package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelamos/digitalstore/internal/catalog"
	"github.com/angelamos/digitalstore/internal/core"
)

// ProductSource resolves products for cart mutations, rejecting unknown
// or non-purchasable products.
type ProductSource interface {
	GetPurchasableProducts(
		ctx context.Context,
		ids []string,
	) (map[string]*catalog.Product, error)
}

type Service struct {
	repo     Repository
	products ProductSource
	currency string
}

func NewService(
	repo Repository,
	products ProductSource,
	currency string,
) *Service {
	return &Service{
		repo:     repo,
		products: products,
		currency: currency,
	}
}

// GetCart returns the user's pending order, creating an empty one on
// first use.
func (s *Service) GetCart(
	ctx context.Context,
	userID string,
) (*Order, []ItemDetail, error) {
	order, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.repo.GetItemDetails(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

func (s *Service) AddItem(
	ctx context.Context,
	userID string,
	req AddItemRequest,
) (*Order, []ItemDetail, error) {
	products, err := s.products.GetPurchasableProducts(
		ctx,
		[]string{req.ProductID},
	)
	if err != nil {
		return nil, nil, err
	}
	product := products[req.ProductID]

	order, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	item := &OrderItem{
		ID:             uuid.New().String(),
		OrderID:        order.ID,
		ProductID:      product.ID,
		Quantity:       quantity,
		UnitPriceCents: product.PriceCents,
	}

	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, nil, err
	}

	return s.refreshCart(ctx, order)
}

func (s *Service) UpdateItem(
	ctx context.Context,
	userID, itemID string,
	req UpdateItemRequest,
) (*Order, []ItemDetail, error) {
	order, err := s.repo.GetPendingForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	err = s.repo.UpdateItemQuantity(ctx, order.ID, itemID, req.Quantity)
	if err != nil {
		return nil, nil, err
	}

	return s.refreshCart(ctx, order)
}

func (s *Service) RemoveItem(
	ctx context.Context,
	userID, itemID string,
) (*Order, []ItemDetail, error) {
	order, err := s.repo.GetPendingForUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repo.RemoveItem(ctx, order.ID, itemID); err != nil {
		return nil, nil, err
	}

	return s.refreshCart(ctx, order)
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	order, err := s.repo.GetPendingForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.ClearItems(ctx, order.ID); err != nil {
		return err
	}

	return s.repo.UpdateTotal(ctx, order.ID, 0)
}

func (s *Service) GetOrder(
	ctx context.Context,
	userID, orderID string,
) (*Order, []ItemDetail, error) {
	order, err := s.repo.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.repo.GetItemDetails(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

func (s *Service) ListOrders(
	ctx context.Context,
	userID string,
	params ListOrdersParams,
) ([]OrderResponse, int, error) {
	orders, total, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		items, err := s.repo.GetItemDetails(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		responses = append(responses, ToOrderResponse(&orders[i], items))
	}

	return responses, total, nil
}

// CancelOrder abandons a pending order. Completed orders cannot be
// cancelled, only refunded.
func (s *Service) CancelOrder(
	ctx context.Context,
	userID, orderID string,
) error {
	order, err := s.repo.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return err
	}

	won, err := s.repo.TransitionStatus(
		ctx,
		order.ID,
		StatusPending,
		StatusCancelled,
	)
	if err != nil {
		return err
	}

	if !won {
		return fmt.Errorf("cancel order: %w", core.ErrConflict)
	}

	return nil
}

func (s *Service) getOrCreateCart(
	ctx context.Context,
	userID string,
) (*Order, error) {
	order, err := s.repo.GetPendingForUser(ctx, userID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	orderNumber, err := NewOrderNumber(time.Now())
	if err != nil {
		return nil, err
	}

	order = &Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		OrderNumber: orderNumber,
		Status:      StatusPending,
		Currency:    s.currency,
	}

	createErr := s.repo.Create(ctx, order)
	if createErr == nil {
		return order, nil
	}

	// A concurrent request may have created the cart first.
	if errors.Is(createErr, core.ErrConflict) {
		return s.repo.GetPendingForUser(ctx, userID)
	}

	return nil, createErr
}

func (s *Service) refreshCart(
	ctx context.Context,
	order *Order,
) (*Order, []ItemDetail, error) {
	items, err := s.repo.GetItemDetails(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	var total int64
	for i := range items {
		total += items[i].SubtotalCents()
	}

	if total != order.TotalCents {
		if err := s.repo.UpdateTotal(ctx, order.ID, total); err != nil {
			return nil, nil, err
		}
		order.TotalCents = total
	}

	return order, items, nil
}
