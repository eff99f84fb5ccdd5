// AngelaMos | 2026
// provider.go

package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/angelamos/digitalstore/internal/config"
	"github.com/angelamos/digitalstore/internal/core"
)

// Intent is the provider-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
}

// Event is a verified webhook notification.
type Event struct {
	Type     string
	IntentID string
	Status   string
	Message  string
}

// Provider event types the service reacts to.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCanceled  = "payment.canceled"
	EventChargeRefunded   = "charge.refunded"
	EventIgnored          = "ignored"
)

// Intent statuses reported by ConfirmIntent.
const (
	IntentStatusSucceeded  = "succeeded"
	IntentStatusProcessing = "processing"
	IntentStatusCanceled   = "canceled"
)

// Provider abstracts the payment processor so the service and its tests
// never touch the Stripe SDK directly.
type Provider interface {
	CreateIntent(
		ctx context.Context,
		amountCents int64,
		currency, orderID string,
	) (*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	PublishableKey() string
}

type stripeProvider struct {
	cfg config.StripeConfig
}

func NewStripeProvider(cfg config.StripeConfig) Provider {
	stripe.Key = cfg.SecretKey
	return &stripeProvider{cfg: cfg}
}

func (p *stripeProvider) CreateIntent(
	ctx context.Context,
	amountCents int64,
	currency, orderID string,
) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id": orderID,
		},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", core.ErrUpstream)
	}

	return toIntent(intent), nil
}

func (p *stripeProvider) GetIntent(
	ctx context.Context,
	intentID string,
) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", core.ErrUpstream)
	}

	return toIntent(intent), nil
}

func (p *stripeProvider) ParseWebhook(
	payload []byte,
	signature string,
) (*Event, error) {
	event, err := webhook.ConstructEvent(
		payload,
		signature,
		p.cfg.WebhookSecret,
	)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", core.ErrInvalidInput)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		return &Event{
			Type:     EventPaymentSucceeded,
			IntentID: objectID(event),
		}, nil
	case "payment_intent.payment_failed":
		return &Event{
			Type:     EventPaymentFailed,
			IntentID: objectID(event),
			Message:  failureMessage(event),
		}, nil
	case "payment_intent.canceled":
		return &Event{
			Type:     EventPaymentCanceled,
			IntentID: objectID(event),
		}, nil
	case "charge.refunded":
		return &Event{
			Type:     EventChargeRefunded,
			IntentID: chargeIntentID(event),
		}, nil
	default:
		return &Event{Type: EventIgnored}, nil
	}
}

func (p *stripeProvider) PublishableKey() string {
	return p.cfg.PublishableKey
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
	}
}

func objectID(event stripe.Event) string {
	if id, ok := event.Data.Object["id"].(string); ok {
		return id
	}
	return ""
}

func chargeIntentID(event stripe.Event) string {
	if id, ok := event.Data.Object["payment_intent"].(string); ok {
		return id
	}
	return ""
}

func failureMessage(event stripe.Event) string {
	lastErr, ok := event.Data.Object["last_payment_error"].(map[string]any)
	if !ok {
		return ""
	}
	if msg, ok := lastErr["message"].(string); ok {
		return msg
	}
	return ""
}
