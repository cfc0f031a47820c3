//go:build !integration

package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
)

type sweeperFixture struct {
	uc        *sweeperUC
	tenants   *memTenantRepo
	users     *memUserRepo
	purchases *memPurchaseRepo
	products  *memProductRepo
	messenger *mockMessenger
}

func newSweeperFixture(t *testing.T, opts SweeperOptions) *sweeperFixture {
	t.Helper()
	f := &sweeperFixture{
		tenants:   newMemTenantRepo(),
		users:     newMemUserRepo(),
		purchases: newMemPurchaseRepo(),
		products:  newMemProductRepo(),
		messenger: &mockMessenger{},
	}
	f.uc = NewSweeperUseCase(f.tenants, f.users, f.purchases, f.products,
		&staticMessengers{m: f.messenger}, opts, testTranslator(t), nopLogger())

	ctx := context.Background()
	_ = f.tenants.Save(ctx, repository.NoTX, testTenant("prod-1"))
	user := testUser()
	user.HasActiveSub = true
	_ = f.users.Save(ctx, repository.NoTX, user)
	return f
}

func (f *sweeperFixture) seedPurchase(t *testing.T, id string, expiresAt time.Time) {
	t.Helper()
	exp := expiresAt
	p := &model.Purchase{
		ID:          id,
		UserID:      "user-1",
		ProductID:   "prod-1",
		ProductName: "Clube VIP",
		Type:        model.ProductTypeSubscription,
		Status:      model.PurchaseStatusApproved,
		ExpiresAt:   &exp,
		CreatedAt:   time.Now().Add(-30 * 24 * time.Hour),
	}
	if err := f.purchases.Save(context.Background(), repository.NoTX, p); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
}

func TestSweepPurchases_ExpiresOverdue(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{})
	f.seedPurchase(t, "pu-1", time.Now().Add(-time.Hour))

	n, err := f.uc.SweepPurchases(ctx)
	if err != nil {
		t.Fatalf("SweepPurchases: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
	got, _ := f.purchases.ListByUser(ctx, repository.NoTX, "user-1")
	if got[0].Status != model.PurchaseStatusExpired {
		t.Errorf("status = %q, want expired", got[0].Status)
	}
	// buyer was told
	if got := f.messenger.lastSent(t).Msg.Text; !strings.Contains(got, "Clube VIP") {
		t.Errorf("notice = %q, want product name mentioned", got)
	}
	// aggregate marker cleared once nothing approved remains
	u, _ := f.users.FindByID(ctx, repository.NoTX, "user-1")
	if u.HasActiveSub {
		t.Error("HasActiveSub still set after the last subscription expired")
	}
}

func TestSweepPurchases_SecondPassIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{})
	f.seedPurchase(t, "pu-1", time.Now().Add(-time.Hour))

	if _, err := f.uc.SweepPurchases(ctx); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	n, err := f.uc.SweepPurchases(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass expired = %d, want 0", n)
	}
	if len(f.messenger.Sent) != 1 {
		t.Errorf("sent = %d, want exactly one notice", len(f.messenger.Sent))
	}
}

func TestSweepPurchases_SkipsNotYetDue(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{})
	f.seedPurchase(t, "pu-1", time.Now().Add(48*time.Hour))

	n, err := f.uc.SweepPurchases(ctx)
	if err != nil {
		t.Fatalf("SweepPurchases: %v", err)
	}
	if n != 0 {
		t.Errorf("expired = %d, want 0", n)
	}
}

func TestSweepPurchases_GroupAccessRevoked(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{})
	_ = f.products.Save(ctx, repository.NoTX, &model.Product{
		ID:                    "prod-1",
		TenantID:              "tenant-1",
		Name:                  "Clube VIP",
		Type:                  model.ProductTypeSubscription,
		IsTelegramGroupAccess: true,
		TelegramGroupID:       -100123,
	})
	f.seedPurchase(t, "pu-1", time.Now().Add(-time.Hour))

	if _, err := f.uc.SweepPurchases(ctx); err != nil {
		t.Fatalf("SweepPurchases: %v", err)
	}
	if len(f.messenger.Banned) != 1 || f.messenger.Banned[0] != 1001 {
		t.Errorf("banned = %v, want the buyer kicked from the group", f.messenger.Banned)
	}
}

func TestSweepPurchases_MarkerSurvivesOtherActiveSub(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{})
	f.seedPurchase(t, "pu-old", time.Now().Add(-time.Hour))
	f.seedPurchase(t, "pu-live", time.Now().Add(20*24*time.Hour))

	if _, err := f.uc.SweepPurchases(ctx); err != nil {
		t.Fatalf("SweepPurchases: %v", err)
	}
	u, _ := f.users.FindByID(ctx, repository.NoTX, "user-1")
	if !u.HasActiveSub {
		t.Error("HasActiveSub cleared even though another subscription is live")
	}
}

func TestSweepTenants_DeactivatesExpired(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{})

	past := time.Now().Add(-time.Hour)
	expired := testTenant("prod-1")
	expired.ID = "tenant-expired"
	expired.Subdomain = "velho"
	expired.SubscriptionEndsAt = &past
	_ = f.tenants.Save(ctx, repository.NoTX, expired)

	n, err := f.uc.SweepTenants(ctx)
	if err != nil {
		t.Fatalf("SweepTenants: %v", err)
	}
	if n != 1 {
		t.Fatalf("deactivated = %d, want 1", n)
	}
	got, _ := f.tenants.FindByID(ctx, repository.NoTX, "tenant-expired")
	if got.Status != model.TenantStatusInactive {
		t.Errorf("status = %q, want inactive", got.Status)
	}
	// the paid-up tenant is untouched
	live, _ := f.tenants.FindByID(ctx, repository.NoTX, "tenant-1")
	if live.Status != model.TenantStatusActive {
		t.Errorf("live tenant status = %q", live.Status)
	}
}

func TestNotifyExpiring(t *testing.T) {
	ctx := context.Background()
	f := newSweeperFixture(t, SweeperOptions{NotifyWindow: 5 * 24 * time.Hour, NotifyThrottle: 23 * time.Hour})
	f.seedPurchase(t, "pu-soon", time.Now().Add(2*24*time.Hour))
	f.seedPurchase(t, "pu-far", time.Now().Add(30*24*time.Hour))

	n, err := f.uc.NotifyExpiring(ctx)
	if err != nil {
		t.Fatalf("NotifyExpiring: %v", err)
	}
	if n != 1 {
		t.Fatalf("notified = %d, want only the purchase inside the window", n)
	}
	if got := f.messenger.lastSent(t).Msg.Text; !strings.Contains(got, "Clube VIP") {
		t.Errorf("warning = %q", got)
	}

	// same pass again within the throttle period stays quiet
	n, err = f.uc.NotifyExpiring(ctx)
	if err != nil {
		t.Fatalf("NotifyExpiring second run: %v", err)
	}
	if n != 0 {
		t.Errorf("second run notified = %d, want 0", n)
	}
}
