package adapter

import "context"

// PaymentIntent is what a created gateway payment gives the buyer: an id on
// the gateway side plus whatever affordance the method uses (a checkout URL
// and, for pix, a copy-paste code).
type PaymentIntent struct {
	ID           string
	PayURL       string
	PixCopyPaste string
}

// PaymentResource is the authoritative payment record re-fetched from the
// gateway API. Webhook bodies are never trusted for these fields.
type PaymentResource struct {
	ID                string
	Status            string // gateway-native status, e.g. approved, cancelled, expired
	ExternalReference string // our Sale id
	TransactionAmount int64  // centavos
}

// PaymentGateway is the hex port for payment providers. Implementations are
// bound to one tenant's credentials.
type PaymentGateway interface {
	Name() string

	// CreatePayment initiates a payment with externalRef as the reconciliation
	// key echoed back on webhooks.
	CreatePayment(ctx context.Context, method string, amount int64, description, externalRef string) (*PaymentIntent, error)
	// GetPayment fetches the authoritative payment resource by gateway id.
	GetPayment(ctx context.Context, paymentID string) (*PaymentResource, error)
}
