// File: internal/infra/transport/provider.go
package transport

import (
	"sync"

	"chatbot-commerce/internal/config"
	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/infra/transport/telegram"
	"chatbot-commerce/internal/infra/transport/whatsapp"
	"chatbot-commerce/internal/usecase"
)

var _ usecase.MessengerProvider = (*Provider)(nil)

// Provider hands out per-tenant messenger clients. Telegram clients are
// cached by bot token because constructing one performs a getMe round trip;
// WhatsApp clients are plain HTTP wrappers and are built on demand.
type Provider struct {
	wa config.WhatsAppConfig

	mu sync.Mutex
	tg map[string]*telegram.Messenger
}

func NewProvider(wa config.WhatsAppConfig) *Provider {
	return &Provider{wa: wa, tg: make(map[string]*telegram.Messenger)}
}

func (p *Provider) For(t *model.Tenant, tr model.Transport) (adapter.Messenger, error) {
	switch tr {
	case model.TransportTelegram:
		token := t.Credentials.BotToken
		if token == "" {
			return nil, domain.ErrNotConfigured
		}
		return p.telegramFor(token)
	case model.TransportWhatsApp:
		instance := t.Credentials.InstanceName
		if instance == "" || p.wa.BaseURL == "" {
			return nil, domain.ErrNotConfigured
		}
		return whatsapp.NewMessenger(p.wa.BaseURL, p.wa.APIKey, instance), nil
	default:
		return nil, domain.ErrUnsupported
	}
}

func (p *Provider) telegramFor(token string) (*telegram.Messenger, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.tg[token]; ok {
		return m, nil
	}
	m, err := telegram.NewMessenger(token)
	if err != nil {
		return nil, err
	}
	p.tg[token] = m
	return m, nil
}
