//go:build !integration

package model

import (
	"testing"
	"time"
)

func TestProductEffectivePrice(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		p    Product
		want int64
	}{
		{"no discount", Product{Price: 9900}, 9900},
		{"open offer", Product{Price: 9900, DiscountPrice: 4900, OfferExpiresAt: &future}, 4900},
		{"closed offer", Product{Price: 9900, DiscountPrice: 4900, OfferExpiresAt: &past}, 9900},
		{"discount without window", Product{Price: 9900, DiscountPrice: 4900}, 9900},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.EffectivePrice(now); got != tc.want {
				t.Errorf("EffectivePrice = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProductStockAndAvailability(t *testing.T) {
	codes := Product{Subtype: SubtypeActivationCodes, ActivationCodes: []string{"A", "B"}}
	if codes.Stock() != 2 || !codes.Available() {
		t.Errorf("stocked codes product: Stock=%d Available=%v", codes.Stock(), codes.Available())
	}
	empty := Product{Subtype: SubtypeActivationCodes}
	if empty.Stock() != 0 || empty.Available() {
		t.Errorf("empty codes product: Stock=%d Available=%v", empty.Stock(), empty.Available())
	}
	// everything else has no stock concept and always sells
	digital := Product{Subtype: SubtypeDigitalFile}
	if digital.Stock() != -1 || !digital.Available() {
		t.Errorf("digital product: Stock=%d Available=%v", digital.Stock(), digital.Available())
	}
}

func TestPurchaseExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (&Purchase{}).Expired(now) {
		t.Error("lifetime purchase must never expire")
	}
	if !(&Purchase{ExpiresAt: &past}).Expired(now) {
		t.Error("past expiry must read as expired")
	}
	if (&Purchase{ExpiresAt: &future}).Expired(now) {
		t.Error("future expiry must read as live")
	}
}

func TestUserHasActiveSubscription(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	u := &User{Purchases: []Purchase{
		{Type: ProductTypeProduct, Status: PurchaseStatusApproved},
		{Type: ProductTypeSubscription, Status: PurchaseStatusExpired, ExpiresAt: &past},
	}}
	if u.HasActiveSubscription(now) {
		t.Error("no approved subscription, marker must be false")
	}
	u.Purchases = append(u.Purchases, Purchase{Type: ProductTypeSubscription, Status: PurchaseStatusApproved, ExpiresAt: &future})
	if !u.HasActiveSubscription(now) {
		t.Error("a live subscription must flip the marker")
	}
}

func TestUserTransportIdentity(t *testing.T) {
	tg := &User{TelegramID: 1001}
	if tg.Transport() != TransportTelegram || tg.ChatID() != "1001" {
		t.Errorf("telegram user: %v %q", tg.Transport(), tg.ChatID())
	}
	wa := &User{WhatsAppID: "5511999990000"}
	if wa.Transport() != TransportWhatsApp || wa.ChatID() != "5511999990000" {
		t.Errorf("whatsapp user: %v %q", wa.Transport(), wa.ChatID())
	}
}

func TestTenantLifecycle(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("CanRespond", func(t *testing.T) {
		for status, want := range map[TenantStatus]bool{
			TenantStatusActive:   true,
			TenantStatusTrialing: true,
			TenantStatusInactive: false,
			TenantStatusCanceled: false,
		} {
			if got := (&Tenant{Status: status}).CanRespond(); got != want {
				t.Errorf("CanRespond(%s) = %v, want %v", status, got, want)
			}
		}
	})

	t.Run("SubscriptionExpired", func(t *testing.T) {
		cases := []struct {
			name string
			tn   Tenant
			want bool
		}{
			{"trial overdue", Tenant{Status: TenantStatusTrialing, TrialEndsAt: &past}, true},
			{"trial live", Tenant{Status: TenantStatusTrialing, TrialEndsAt: &future}, false},
			{"active overdue", Tenant{Status: TenantStatusActive, SubscriptionEndsAt: &past}, true},
			{"active without expiry", Tenant{Status: TenantStatusActive}, false},
			{"already inactive", Tenant{Status: TenantStatusInactive, SubscriptionEndsAt: &past}, false},
		}
		for _, tc := range cases {
			if got := tc.tn.SubscriptionExpired(now); got != tc.want {
				t.Errorf("%s: SubscriptionExpired = %v, want %v", tc.name, got, tc.want)
			}
		}
	})
}
