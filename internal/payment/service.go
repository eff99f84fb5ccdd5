// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/angelamos/digitalstore/internal/core"
	"github.com/angelamos/digitalstore/internal/entitlement"
	"github.com/angelamos/digitalstore/internal/order"
)

var tracer = otel.Tracer("digitalstore/payment")

type Service struct {
	db       *sqlx.DB
	provider Provider
	issuer   *entitlement.Issuer
	orders   order.Repository
	currency string
	logger   *slog.Logger
}

func NewService(
	db *sqlx.DB,
	provider Provider,
	issuer *entitlement.Issuer,
	orders order.Repository,
	currency string,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:       db,
		provider: provider,
		issuer:   issuer,
		orders:   orders,
		currency: currency,
		logger:   logger,
	}
}

// CreateIntent opens (or reuses) a payment intent for the user's order.
// Calling it again for the same order returns the existing intent so
// the client can safely retry.
func (s *Service) CreateIntent(
	ctx context.Context,
	userID, orderID string,
) (*CreateIntentResponse, error) {
	ord, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if !ord.IsPending() {
		return nil, fmt.Errorf(
			"order is not payable: %w",
			core.ErrConflict,
		)
	}

	if ord.TotalCents <= 0 {
		return nil, fmt.Errorf("order is empty: %w", core.ErrInvalidInput)
	}

	if ord.PaymentIntentID != nil {
		intent, err := s.provider.GetIntent(ctx, *ord.PaymentIntentID)
		if err == nil && intent.AmountCents == ord.TotalCents {
			return intentResponse(intent), nil
		}
		// Stale or repriced intent; fall through and open a new one.
	}

	intent, err := s.provider.CreateIntent(
		ctx,
		ord.TotalCents,
		s.currency,
		ord.ID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetPaymentIntent(ctx, ord.ID, intent.ID); err != nil {
		return nil, err
	}

	return intentResponse(intent), nil
}

// Confirm checks the intent status with the provider and completes the
// order if payment went through. Safe to call repeatedly: a completed
// order reports success without re-issuing anything.
func (s *Service) Confirm(
	ctx context.Context,
	userID, orderID string,
) (*ConfirmResponse, error) {
	ord, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if ord.IsCompleted() {
		return &ConfirmResponse{
			OrderID:     ord.ID,
			OrderNumber: ord.OrderNumber,
			Status:      ord.Status,
		}, nil
	}

	if !ord.IsPending() {
		return nil, fmt.Errorf("order is not payable: %w", core.ErrConflict)
	}

	if ord.PaymentIntentID == nil {
		return nil, fmt.Errorf(
			"order has no payment intent: %w",
			core.ErrInvalidInput,
		)
	}

	intent, err := s.provider.GetIntent(ctx, *ord.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case IntentStatusSucceeded:
		if err := s.completeOrder(ctx, ord.ID); err != nil {
			return nil, err
		}
		return &ConfirmResponse{
			OrderID:     ord.ID,
			OrderNumber: ord.OrderNumber,
			Status:      order.StatusCompleted,
		}, nil
	case IntentStatusProcessing:
		return nil, fmt.Errorf(
			"payment is still processing: %w",
			core.ErrConflict,
		)
	default:
		return nil, fmt.Errorf(
			"payment has not succeeded (status %s): %w",
			intent.Status,
			core.ErrInvalidInput,
		)
	}
}

// HandleWebhook processes a verified provider event. Events for unknown
// orders are acknowledged as no-ops so the provider stops retrying.
func (s *Service) HandleWebhook(
	ctx context.Context,
	payload []byte,
	signature string,
) error {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case EventPaymentSucceeded:
		return s.onPaymentSucceeded(ctx, event)
	case EventPaymentFailed:
		return s.onPaymentFailed(ctx, event)
	case EventPaymentCanceled:
		s.logger.Info("payment canceled", "intent_id", event.IntentID)
		return nil
	case EventChargeRefunded:
		return s.onChargeRefunded(ctx, event)
	default:
		return nil
	}
}

func (s *Service) onPaymentSucceeded(
	ctx context.Context,
	event *Event,
) error {
	ord, err := s.orders.GetByPaymentIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("webhook for unknown order",
				"intent_id", event.IntentID,
			)
			return nil
		}
		return err
	}

	return s.completeOrder(ctx, ord.ID)
}

// onPaymentFailed marks the pending order failed so the cart slot frees
// up and the failure is visible in order history. Orders that already
// moved on (completed via a racing success event) are left alone.
func (s *Service) onPaymentFailed(ctx context.Context, event *Event) error {
	ord, err := s.orders.GetByPaymentIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("failure webhook for unknown order",
				"intent_id", event.IntentID,
			)
			return nil
		}
		return err
	}

	won, err := s.orders.TransitionStatus(
		ctx,
		ord.ID,
		order.StatusPending,
		order.StatusFailed,
	)
	if err != nil {
		return err
	}

	s.logger.Warn("payment failed",
		"order_id", ord.ID,
		"intent_id", event.IntentID,
		"reason", event.Message,
		"marked_failed", won,
	)

	return nil
}

func (s *Service) onChargeRefunded(ctx context.Context, event *Event) error {
	ord, err := s.orders.GetByPaymentIntentID(ctx, event.IntentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("refund webhook for unknown order",
				"intent_id", event.IntentID,
			)
			return nil
		}
		return err
	}

	return s.RefundOrder(ctx, ord.ID)
}

// completeOrder flips the order to completed and issues entitlements in
// one transaction. The conditional status update makes the whole routine
// idempotent: whichever caller wins the flip issues; everyone else
// no-ops.
func (s *Service) completeOrder(ctx context.Context, orderID string) error {
	ctx, span := tracer.Start(ctx, "payment.complete_order")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.completeOrderTx(
			ctx,
			order.NewRepository(tx),
			entitlement.NewRepository(tx),
			orderID,
		)
	})
}

// completeOrderTx is the transaction body of completeOrder, split out so
// the whole completion routine runs against any pair of repositories.
func (s *Service) completeOrderTx(
	ctx context.Context,
	orders order.Repository,
	grants entitlement.Repository,
	orderID string,
) error {
	won, err := orders.TransitionStatus(
		ctx,
		orderID,
		order.StatusPending,
		order.StatusCompleted,
	)
	if err != nil {
		return err
	}

	if !won {
		return nil
	}

	items, err := orders.GetItemDetails(ctx, orderID)
	if err != nil {
		return err
	}

	ord, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	grant := entitlement.IssueGrant{
		UserID:  ord.UserID,
		OrderID: ord.ID,
		Items:   make([]entitlement.IssueItem, 0, len(items)),
	}
	for i := range items {
		grant.Items = append(grant.Items, entitlement.IssueItem{
			ProductID:     items[i].ProductID,
			DownloadLimit: items[i].DownloadLimit,
		})
	}

	if err := s.issuer.IssueForOrder(ctx, grants, grant); err != nil {
		return err
	}

	s.logger.Info("order completed",
		"order_id", ord.ID,
		"order_number", ord.OrderNumber,
		"items", len(items),
	)

	return nil
}

// RefundOrder marks a completed order refunded and revokes its
// entitlements. Money movement happens at the provider; this records
// the outcome. Replayed refund notifications for an already-refunded
// order are acknowledged as no-ops.
func (s *Service) RefundOrder(ctx context.Context, orderID string) error {
	now := time.Now()

	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return s.refundOrderTx(
			ctx,
			order.NewRepository(tx),
			entitlement.NewRepository(tx),
			orderID,
			now,
		)
	})
}

func (s *Service) refundOrderTx(
	ctx context.Context,
	orders order.Repository,
	grants entitlement.Repository,
	orderID string,
	now time.Time,
) error {
	won, err := orders.MarkRefunded(ctx, orderID, now)
	if err != nil {
		return err
	}

	if !won {
		ord, err := orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		// At-least-once webhook delivery replays refunds.
		if ord.Status == order.StatusRefunded {
			s.logger.Info("order already refunded", "order_id", orderID)
			return nil
		}
		return fmt.Errorf("order is not refundable: %w", core.ErrConflict)
	}

	if err := grants.RevokeForOrder(ctx, orderID, now); err != nil {
		return err
	}

	s.logger.Info("order refunded", "order_id", orderID)

	return nil
}

func (s *Service) Config() ConfigResponse {
	return ConfigResponse{
		PublishableKey: s.provider.PublishableKey(),
		Currency:       s.currency,
	}
}

func intentResponse(intent *Intent) *CreateIntentResponse {
	return &CreateIntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.AmountCents,
		Currency:     intent.Currency,
	}
}
