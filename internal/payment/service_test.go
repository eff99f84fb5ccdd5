// AngelaMos | 2026
// service_test.go

package payment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/digitalstore/internal/core"
	"github.com/angelamos/digitalstore/internal/entitlement"
	"github.com/angelamos/digitalstore/internal/order"
)

type fakeProvider struct {
	intents  map[string]*Intent
	event    *Event
	parseErr error

	createCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{intents: make(map[string]*Intent)}
}

func (f *fakeProvider) CreateIntent(
	_ context.Context,
	amountCents int64,
	currency, _ string,
) (*Intent, error) {
	f.createCalls++
	intent := &Intent{
		ID:           fmt.Sprintf("pi_test_%d", f.createCalls),
		ClientSecret: "cs_test",
		Status:       "requires_payment_method",
		AmountCents:  amountCents,
		Currency:     currency,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakeProvider) GetIntent(
	_ context.Context,
	intentID string,
) (*Intent, error) {
	intent, ok := f.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("get payment intent: %w", core.ErrUpstream)
	}
	return intent, nil
}

func (f *fakeProvider) ParseWebhook(_ []byte, _ string) (*Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeProvider) PublishableKey() string {
	return "pk_test"
}

type fakeOrderRepository struct {
	orders map[string]*order.Order
	items  map[string][]order.ItemDetail
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{
		orders: make(map[string]*order.Order),
		items:  make(map[string][]order.ItemDetail),
	}
}

func (f *fakeOrderRepository) Create(_ context.Context, o *order.Order) error {
	copied := *o
	f.orders[o.ID] = &copied
	return nil
}

func (f *fakeOrderRepository) GetByID(
	_ context.Context,
	id string,
) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepository) GetByIDForUser(
	_ context.Context,
	id, userID string,
) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return nil, core.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepository) GetPendingForUser(
	_ context.Context,
	userID string,
) (*order.Order, error) {
	for _, o := range f.orders {
		if o.UserID == userID && o.Status == order.StatusPending {
			copied := *o
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeOrderRepository) GetByPaymentIntentID(
	_ context.Context,
	intentID string,
) (*order.Order, error) {
	for _, o := range f.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == intentID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeOrderRepository) ListForUser(
	_ context.Context,
	_ string,
	_ order.ListOrdersParams,
) ([]order.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeOrderRepository) SetPaymentIntent(
	_ context.Context,
	orderID, intentID string,
) error {
	o, ok := f.orders[orderID]
	if !ok {
		return core.ErrNotFound
	}
	o.PaymentIntentID = &intentID
	return nil
}

func (f *fakeOrderRepository) UpdateTotal(
	_ context.Context,
	orderID string,
	totalCents int64,
) error {
	o, ok := f.orders[orderID]
	if !ok {
		return core.ErrNotFound
	}
	o.TotalCents = totalCents
	return nil
}

func (f *fakeOrderRepository) TransitionStatus(
	_ context.Context,
	orderID, from, to string,
) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return false, core.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeOrderRepository) MarkRefunded(
	_ context.Context,
	orderID string,
	at time.Time,
) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != order.StatusCompleted {
		return false, nil
	}
	o.Status = order.StatusRefunded
	o.RefundedAt = &at
	return true, nil
}

func (f *fakeOrderRepository) UpsertItem(
	_ context.Context,
	_ *order.OrderItem,
) error {
	return nil
}

func (f *fakeOrderRepository) UpdateItemQuantity(
	_ context.Context,
	_, _ string,
	_ int,
) error {
	return nil
}

func (f *fakeOrderRepository) RemoveItem(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeOrderRepository) ClearItems(_ context.Context, _ string) error {
	return nil
}

func (f *fakeOrderRepository) GetItemDetails(
	_ context.Context,
	orderID string,
) ([]order.ItemDetail, error) {
	return f.items[orderID], nil
}

// fakeGrantRepository covers the entitlement methods the completion and
// refund transaction bodies touch, with the same (order, product)
// idempotency the unique index provides.
type fakeGrantRepository struct {
	downloads map[string]*entitlement.Download
	licenses  map[string]*entitlement.LicenseKey

	revokeCalls int
}

func newFakeGrantRepository() *fakeGrantRepository {
	return &fakeGrantRepository{
		downloads: make(map[string]*entitlement.Download),
		licenses:  make(map[string]*entitlement.LicenseKey),
	}
}

func (f *fakeGrantRepository) CreateDownload(
	_ context.Context,
	download *entitlement.Download,
) (bool, error) {
	for _, d := range f.downloads {
		if d.OrderID == download.OrderID && d.ProductID == download.ProductID {
			return false, nil
		}
	}
	f.downloads[download.ID] = download
	return true, nil
}

func (f *fakeGrantRepository) CreateLicenseKey(
	_ context.Context,
	key *entitlement.LicenseKey,
) (bool, error) {
	for _, k := range f.licenses {
		if k.OrderID == key.OrderID && k.ProductID == key.ProductID {
			return false, nil
		}
	}
	f.licenses[key.ID] = key
	return true, nil
}

func (f *fakeGrantRepository) GetDownloadByToken(
	_ context.Context,
	_ string,
) (*entitlement.Download, error) {
	return nil, core.ErrNotFound
}

func (f *fakeGrantRepository) GetDownloadByID(
	_ context.Context,
	_ string,
) (*entitlement.Download, error) {
	return nil, core.ErrNotFound
}

func (f *fakeGrantRepository) GetLicenseByKey(
	_ context.Context,
	_ string,
) (*entitlement.LicenseKey, error) {
	return nil, core.ErrNotFound
}

func (f *fakeGrantRepository) GetLicenseByID(
	_ context.Context,
	_ string,
) (*entitlement.LicenseKey, error) {
	return nil, core.ErrNotFound
}

func (f *fakeGrantRepository) ConsumeDownload(
	_ context.Context,
	_ string,
	_ time.Time,
) (bool, error) {
	return false, nil
}

func (f *fakeGrantRepository) ActivateLicense(
	_ context.Context,
	_ string,
	_ time.Time,
) (bool, error) {
	return false, nil
}

func (f *fakeGrantRepository) ListDownloadsForUser(
	_ context.Context,
	_ string,
) ([]entitlement.Download, error) {
	return nil, nil
}

func (f *fakeGrantRepository) ListLicensesForUser(
	_ context.Context,
	_ string,
) ([]entitlement.LicenseKey, error) {
	return nil, nil
}

func (f *fakeGrantRepository) ListDownloadsForOrder(
	_ context.Context,
	_ string,
) ([]entitlement.Download, error) {
	return nil, nil
}

func (f *fakeGrantRepository) ListLicensesForOrder(
	_ context.Context,
	_ string,
) ([]entitlement.LicenseKey, error) {
	return nil, nil
}

func (f *fakeGrantRepository) ListDownloads(
	_ context.Context,
	_, _ int,
) ([]entitlement.Download, int, error) {
	return nil, 0, nil
}

func (f *fakeGrantRepository) ListLicenses(
	_ context.Context,
	_, _ int,
) ([]entitlement.LicenseKey, int, error) {
	return nil, 0, nil
}

func (f *fakeGrantRepository) ResetDownload(
	_ context.Context,
	_ string,
	_ *time.Time,
) error {
	return nil
}

func (f *fakeGrantRepository) SetLicenseActive(
	_ context.Context,
	_ string,
	_ bool,
) error {
	return nil
}

func (f *fakeGrantRepository) RevokeForOrder(
	_ context.Context,
	orderID string,
	_ time.Time,
) error {
	f.revokeCalls++
	for _, k := range f.licenses {
		if k.OrderID == orderID {
			k.IsActive = false
		}
	}
	return nil
}

func newTestService(
	provider *fakeProvider,
	orders *fakeOrderRepository,
) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := entitlement.NewIssuer(5, 720*time.Hour)
	return NewService(nil, provider, issuer, orders, "usd", logger)
}

func strPtr(s string) *string {
	return &s
}

func TestCreateIntent(t *testing.T) {
	ctx := context.Background()

	t.Run("opens an intent and records it on the order", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:         "order-1",
			UserID:     "user-1",
			Status:     order.StatusPending,
			TotalCents: 4999,
		}
		svc := newTestService(provider, orders)

		resp, err := svc.CreateIntent(ctx, "user-1", "order-1")
		require.NoError(t, err)

		assert.Equal(t, int64(4999), resp.AmountCents)
		assert.NotEmpty(t, resp.ClientSecret)
		require.NotNil(t, orders.orders["order-1"].PaymentIntentID)
		assert.Equal(t, resp.IntentID, *orders.orders["order-1"].PaymentIntentID)
	})

	t.Run("retry reuses the existing intent", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:         "order-1",
			UserID:     "user-1",
			Status:     order.StatusPending,
			TotalCents: 4999,
		}
		svc := newTestService(provider, orders)

		first, err := svc.CreateIntent(ctx, "user-1", "order-1")
		require.NoError(t, err)

		second, err := svc.CreateIntent(ctx, "user-1", "order-1")
		require.NoError(t, err)

		assert.Equal(t, first.IntentID, second.IntentID)
		assert.Equal(t, 1, provider.createCalls)
	})

	t.Run("repriced order gets a fresh intent", func(t *testing.T) {
		provider := newFakeProvider()
		provider.intents["pi_stale"] = &Intent{
			ID:          "pi_stale",
			AmountCents: 1999,
		}
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:              "order-1",
			UserID:          "user-1",
			Status:          order.StatusPending,
			TotalCents:      4999,
			PaymentIntentID: strPtr("pi_stale"),
		}
		svc := newTestService(provider, orders)

		resp, err := svc.CreateIntent(ctx, "user-1", "order-1")
		require.NoError(t, err)

		assert.NotEqual(t, "pi_stale", resp.IntentID)
		assert.Equal(t, int64(4999), resp.AmountCents)
	})

	t.Run("empty order is not payable", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:     "order-1",
			UserID: "user-1",
			Status: order.StatusPending,
		}
		svc := newTestService(provider, orders)

		_, err := svc.CreateIntent(ctx, "user-1", "order-1")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("completed order is not payable", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:         "order-1",
			UserID:     "user-1",
			Status:     order.StatusCompleted,
			TotalCents: 4999,
		}
		svc := newTestService(provider, orders)

		_, err := svc.CreateIntent(ctx, "user-1", "order-1")
		assert.ErrorIs(t, err, core.ErrConflict)
	})
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()

	t.Run("completed order reports success without the provider", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:          "order-1",
			UserID:      "user-1",
			OrderNumber: "ORD-20260828-AAAABBBB",
			Status:      order.StatusCompleted,
		}
		svc := newTestService(provider, orders)

		resp, err := svc.Confirm(ctx, "user-1", "order-1")
		require.NoError(t, err)

		assert.Equal(t, order.StatusCompleted, resp.Status)
		assert.Equal(t, "ORD-20260828-AAAABBBB", resp.OrderNumber)
	})

	t.Run("cancelled order is not payable", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:     "order-1",
			UserID: "user-1",
			Status: order.StatusCancelled,
		}
		svc := newTestService(provider, orders)

		_, err := svc.Confirm(ctx, "user-1", "order-1")
		assert.ErrorIs(t, err, core.ErrConflict)
	})

	t.Run("order without an intent", func(t *testing.T) {
		provider := newFakeProvider()
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:     "order-1",
			UserID: "user-1",
			Status: order.StatusPending,
		}
		svc := newTestService(provider, orders)

		_, err := svc.Confirm(ctx, "user-1", "order-1")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("processing payment asks the client to retry", func(t *testing.T) {
		provider := newFakeProvider()
		provider.intents["pi_1"] = &Intent{
			ID:     "pi_1",
			Status: IntentStatusProcessing,
		}
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:              "order-1",
			UserID:          "user-1",
			Status:          order.StatusPending,
			PaymentIntentID: strPtr("pi_1"),
		}
		svc := newTestService(provider, orders)

		_, err := svc.Confirm(ctx, "user-1", "order-1")
		assert.ErrorIs(t, err, core.ErrConflict)
	})

	t.Run("unpaid intent", func(t *testing.T) {
		provider := newFakeProvider()
		provider.intents["pi_1"] = &Intent{
			ID:     "pi_1",
			Status: "requires_payment_method",
		}
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:              "order-1",
			UserID:          "user-1",
			Status:          order.StatusPending,
			PaymentIntentID: strPtr("pi_1"),
		}
		svc := newTestService(provider, orders)

		_, err := svc.Confirm(ctx, "user-1", "order-1")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("bad signature propagates", func(t *testing.T) {
		provider := newFakeProvider()
		provider.parseErr = fmt.Errorf(
			"verify webhook signature: %w",
			core.ErrInvalidInput,
		)
		svc := newTestService(provider, newFakeOrderRepository())

		err := svc.HandleWebhook(ctx, []byte("{}"), "bad")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("success event for an unknown order is acknowledged", func(t *testing.T) {
		provider := newFakeProvider()
		provider.event = &Event{
			Type:     EventPaymentSucceeded,
			IntentID: "pi_unknown",
		}
		svc := newTestService(provider, newFakeOrderRepository())

		assert.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	})

	t.Run("refund event for an unknown order is acknowledged", func(t *testing.T) {
		provider := newFakeProvider()
		provider.event = &Event{
			Type:     EventChargeRefunded,
			IntentID: "pi_unknown",
		}
		svc := newTestService(provider, newFakeOrderRepository())

		assert.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	})

	t.Run("failure event marks the pending order failed", func(t *testing.T) {
		provider := newFakeProvider()
		provider.event = &Event{
			Type:     EventPaymentFailed,
			IntentID: "pi_1",
			Message:  "card_declined",
		}
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:              "order-1",
			UserID:          "user-1",
			Status:          order.StatusPending,
			PaymentIntentID: strPtr("pi_1"),
		}
		svc := newTestService(provider, orders)

		require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
		assert.Equal(t, order.StatusFailed, orders.orders["order-1"].Status)
	})

	t.Run("late failure event leaves a completed order alone", func(t *testing.T) {
		provider := newFakeProvider()
		provider.event = &Event{
			Type:     EventPaymentFailed,
			IntentID: "pi_1",
		}
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:              "order-1",
			UserID:          "user-1",
			Status:          order.StatusCompleted,
			PaymentIntentID: strPtr("pi_1"),
		}
		svc := newTestService(provider, orders)

		require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
		assert.Equal(t, order.StatusCompleted, orders.orders["order-1"].Status)
	})

	t.Run("failure event for an unknown order is acknowledged", func(t *testing.T) {
		provider := newFakeProvider()
		provider.event = &Event{
			Type:     EventPaymentFailed,
			IntentID: "pi_unknown",
		}
		svc := newTestService(provider, newFakeOrderRepository())

		assert.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	})

	t.Run("cancel and unhandled events are no-ops", func(t *testing.T) {
		for _, eventType := range []string{
			EventPaymentCanceled,
			EventIgnored,
		} {
			provider := newFakeProvider()
			provider.event = &Event{Type: eventType, IntentID: "pi_1"}
			svc := newTestService(provider, newFakeOrderRepository())

			assert.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
		}
	})
}

func TestCompleteOrder(t *testing.T) {
	ctx := context.Background()

	seed := func() (*fakeOrderRepository, *fakeGrantRepository) {
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:          "order-1",
			UserID:      "user-1",
			OrderNumber: "ORD-20260828-AAAABBBB",
			Status:      order.StatusPending,
		}
		orders.items["order-1"] = []order.ItemDetail{
			{
				OrderItem: order.OrderItem{
					OrderID:   "order-1",
					ProductID: "prod-1",
				},
				DownloadLimit: 5,
			},
		}
		return orders, newFakeGrantRepository()
	}

	t.Run("flips the order and issues grants", func(t *testing.T) {
		orders, grants := seed()
		svc := newTestService(newFakeProvider(), orders)

		require.NoError(t, svc.completeOrderTx(ctx, orders, grants, "order-1"))

		assert.Equal(t, order.StatusCompleted, orders.orders["order-1"].Status)
		assert.Len(t, grants.downloads, 1)
		assert.Len(t, grants.licenses, 1)
	})

	t.Run("replayed completion issues nothing new", func(t *testing.T) {
		orders, grants := seed()
		svc := newTestService(newFakeProvider(), orders)

		require.NoError(t, svc.completeOrderTx(ctx, orders, grants, "order-1"))
		require.NoError(t, svc.completeOrderTx(ctx, orders, grants, "order-1"))

		assert.Len(t, grants.downloads, 1)
		assert.Len(t, grants.licenses, 1)
	})

	t.Run("concurrent completions produce one set of grants", func(t *testing.T) {
		orders, grants := seed()
		svc := newTestService(newFakeProvider(), orders)

		// The conditional flip admits one caller; everyone else sees a
		// non-pending order and no-ops without touching the grants.
		won, err := orders.TransitionStatus(
			ctx, "order-1", order.StatusPending, order.StatusCompleted)
		require.NoError(t, err)
		require.True(t, won)

		require.NoError(t, svc.completeOrderTx(ctx, orders, grants, "order-1"))
		assert.Empty(t, grants.downloads)
		assert.Empty(t, grants.licenses)
	})
}

func TestRefundOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	seed := func(status string) (*fakeOrderRepository, *fakeGrantRepository) {
		orders := newFakeOrderRepository()
		orders.orders["order-1"] = &order.Order{
			ID:     "order-1",
			UserID: "user-1",
			Status: status,
		}
		grants := newFakeGrantRepository()
		grants.licenses["lic-1"] = &entitlement.LicenseKey{
			ID:       "lic-1",
			OrderID:  "order-1",
			IsActive: true,
		}
		return orders, grants
	}

	t.Run("marks refunded and revokes grants", func(t *testing.T) {
		orders, grants := seed(order.StatusCompleted)
		svc := newTestService(newFakeProvider(), orders)

		require.NoError(t, svc.refundOrderTx(ctx, orders, grants, "order-1", now))

		assert.Equal(t, order.StatusRefunded, orders.orders["order-1"].Status)
		assert.False(t, grants.licenses["lic-1"].IsActive)
		assert.Equal(t, 1, grants.revokeCalls)
	})

	t.Run("replayed refund is acknowledged without revoking again", func(t *testing.T) {
		orders, grants := seed(order.StatusCompleted)
		svc := newTestService(newFakeProvider(), orders)

		require.NoError(t, svc.refundOrderTx(ctx, orders, grants, "order-1", now))
		require.NoError(t, svc.refundOrderTx(ctx, orders, grants, "order-1", now))

		assert.Equal(t, 1, grants.revokeCalls)
	})

	t.Run("pending order is not refundable", func(t *testing.T) {
		orders, grants := seed(order.StatusPending)
		svc := newTestService(newFakeProvider(), orders)

		err := svc.refundOrderTx(ctx, orders, grants, "order-1", now)
		assert.ErrorIs(t, err, core.ErrConflict)
		assert.Zero(t, grants.revokeCalls)
	})

	t.Run("unknown order", func(t *testing.T) {
		orders := newFakeOrderRepository()
		svc := newTestService(newFakeProvider(), orders)

		err := svc.refundOrderTx(
			ctx, orders, newFakeGrantRepository(), "order-404", now)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestConfig(t *testing.T) {
	svc := newTestService(newFakeProvider(), newFakeOrderRepository())

	cfg := svc.Config()
	assert.Equal(t, "pk_test", cfg.PublishableKey)
	assert.Equal(t, "usd", cfg.Currency)
}
