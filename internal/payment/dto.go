// AngelaMos | 2026
// dto.go

package payment

type CreateIntentRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

type CreateIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

type ConfirmRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
}

type ConfirmResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

type ConfigResponse struct {
	PublishableKey string `json:"publishable_key"`
	Currency       string `json:"currency"`
}

type PaymentMethodsResponse struct {
	Methods []string `json:"methods"`
}
