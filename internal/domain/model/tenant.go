package model

import "time"

type TenantStatus string

const (
	TenantStatusTrialing TenantStatus = "trialing"
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
	TenantStatusCanceled TenantStatus = "canceled"
)

type Transport string

const (
	TransportTelegram Transport = "telegram"
	TransportWhatsApp Transport = "whatsapp"
)

// TransportCredentials identifies the tenant's bot on each messenger.
// BotToken is the Telegram bot token; InstanceName addresses the tenant's
// WhatsApp instance on the gateway host.
type TransportCredentials struct {
	BotToken     string `json:"botToken,omitempty"`
	InstanceName string `json:"instanceName,omitempty"`
}

// GatewayCredentials holds per-tenant payment gateway settings. An empty
// WebhookSecret on a production gateway puts the tenant in insecure mode,
// which is allowed but loudly logged.
type GatewayCredentials struct {
	AccessToken   string `json:"accessToken,omitempty"`
	WebhookSecret string `json:"webhookSecret,omitempty"`
	Sandbox       bool   `json:"sandbox,omitempty"`
}

// Tenant is one merchant account. Status and expiry mirror the same
// expiry-authority rule as user purchases, one tier up: SubscriptionEndsAt /
// TrialEndsAt alone decide validity.
type Tenant struct {
	ID                 string
	Subdomain          string
	Status             TenantStatus
	PlanID             string
	TrialEndsAt        *time.Time
	SubscriptionEndsAt *time.Time

	Credentials TransportCredentials
	Gateways    map[string]GatewayCredentials // keyed by gateway name

	FlowModel       *FlowModel
	InactiveMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanRespond decides whether the tenant's bot answers end users at all.
func (t *Tenant) CanRespond() bool {
	return t.Status == TenantStatusActive || t.Status == TenantStatusTrialing
}

// SubscriptionExpired reports whether the relevant expiry for the current
// status has passed ref. A missing expiry never expires.
func (t *Tenant) SubscriptionExpired(ref time.Time) bool {
	switch t.Status {
	case TenantStatusTrialing:
		return t.TrialEndsAt != nil && t.TrialEndsAt.Before(ref)
	case TenantStatusActive:
		return t.SubscriptionEndsAt != nil && t.SubscriptionEndsAt.Before(ref)
	default:
		return false
	}
}

// Gateway returns the credentials for a named gateway and whether it is
// configured at all.
func (t *Tenant) Gateway(name string) (GatewayCredentials, bool) {
	gc, ok := t.Gateways[name]
	return gc, ok
}
