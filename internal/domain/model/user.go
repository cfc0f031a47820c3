package model

import (
	"strconv"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusExpired  PurchaseStatus = "expired"
)

// Purchase is a granted entitlement, appended once per successful
// subscription fulfillment. It is independent from the Sale that paid for
// it. ExpiresAt, once set, is the sole authority for validity; nil means
// lifetime access.
type Purchase struct {
	ID           string // UUID
	UserID       string
	ProductID    string
	ProductName  string
	Type         ProductType
	Status       PurchaseStatus
	ExpiresAt    *time.Time
	LastNotified *time.Time
	CreatedAt    time.Time
}

// User is an end user of one tenant's bot, identified by the transport-side
// id on whichever messenger they arrived from.
type User struct {
	ID           string // UUID
	TenantID     string
	TelegramID   int64
	WhatsAppID   string
	Name         string
	HasActiveSub bool // aggregate marker maintained by the sweeper
	Purchases    []Purchase
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transport reports which messenger the user arrived from.
func (u *User) Transport() Transport {
	if u.TelegramID != 0 {
		return TransportTelegram
	}
	return TransportWhatsApp
}

// ChatID is the transport-side conversation id as a string.
func (u *User) ChatID() string {
	if u.TelegramID != 0 {
		return strconv.FormatInt(u.TelegramID, 10)
	}
	return u.WhatsAppID
}

// Expired reports whether the purchase has run out as of ref.
func (p *Purchase) Expired(ref time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(ref)
}

// HasActiveSubscription scans for any still-approved subscription purchase.
func (u *User) HasActiveSubscription(ref time.Time) bool {
	for i := range u.Purchases {
		p := &u.Purchases[i]
		if p.Type == ProductTypeSubscription && p.Status == PurchaseStatusApproved && !p.Expired(ref) {
			return true
		}
	}
	return false
}
