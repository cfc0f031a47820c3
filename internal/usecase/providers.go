package usecase

import (
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
)

// MessengerProvider hands out a Messenger bound to one tenant's credentials
// for the given transport.
type MessengerProvider interface {
	For(t *model.Tenant, transport model.Transport) (adapter.Messenger, error)
}

// GatewayProvider hands out a payment gateway client bound to per-tenant
// credentials.
type GatewayProvider interface {
	For(name string, creds model.GatewayCredentials) (adapter.PaymentGateway, error)
}
