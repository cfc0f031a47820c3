package model

import "time"

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusApproved  SaleStatus = "approved"
	SaleStatusCancelled SaleStatus = "cancelled"
	SaleStatusFailed    SaleStatus = "failed"
	SaleStatusRefunded  SaleStatus = "refunded"
)

// Sale anchors one attempted purchase transaction. Its status machine is
// monotonic: approved is terminal and must never revert, which is what makes
// replayed gateway webhooks safe.
type Sale struct {
	ID        string // ULID; doubles as the gateway external_reference
	TenantID  string
	ProductID string
	UserID    string // buyer
	Transport Transport
	ChatID    string
	MessageID string // message the payment prompt was rendered into

	Status         SaleStatus
	PaymentGateway string
	GatewayRefID   string // gateway-side payment id, set on initiation
	TotalValue     int64  // recorded from the authoritative gateway resource

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the status admits no further transition.
func (s SaleStatus) Terminal() bool {
	switch s {
	case SaleStatusApproved, SaleStatusCancelled, SaleStatusFailed, SaleStatusRefunded:
		return true
	}
	return false
}
