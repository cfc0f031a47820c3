//go:build !integration

package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
)

func signedNotification(secret, paymentID string) WebhookNotification {
	const ts = "1700000000"
	const reqID = "req-1"
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", paymentID, reqID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return WebhookNotification{
		PaymentID:       paymentID,
		RequestID:       reqID,
		SignatureHeader: fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))),
	}
}

type reconcileFixture struct {
	uc        *reconcileUC
	sales     *memSaleRepo
	gateway   *mockGateway
	messenger *mockMessenger
	fulfiller *fulfillRecorder
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		sales:     newMemSaleRepo(),
		gateway:   &mockGateway{},
		messenger: &mockMessenger{},
		fulfiller: &fulfillRecorder{},
	}
	f.uc = NewReconcileUseCase(
		f.sales,
		&staticGateways{gw: f.gateway},
		&staticMessengers{m: f.messenger},
		f.fulfiller,
		NewStepExecutor(nopLogger()),
		testTranslator(t),
		nopLogger(),
	)
	return f
}

func (f *reconcileFixture) seedSale(t *testing.T, status model.SaleStatus) *model.Sale {
	t.Helper()
	s := &model.Sale{
		ID:             "01HSALE",
		TenantID:       "tenant-1",
		ProductID:      "prod-1",
		UserID:         "user-1",
		Transport:      model.TransportTelegram,
		ChatID:         "1001",
		MessageID:      "55",
		Status:         status,
		PaymentGateway: "mercadopago",
		GatewayRefID:   "pay-9",
	}
	if err := f.sales.Save(context.Background(), repository.NoTX, s); err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *reconcileFixture) scriptPayment(saleID, status string, amount int64) {
	f.gateway.GetPaymentFunc = func(ctx context.Context, paymentID string) (*adapter.PaymentResource, error) {
		return &adapter.PaymentResource{
			ID:                paymentID,
			Status:            status,
			ExternalReference: saleID,
			TransactionAmount: amount,
		}, nil
	}
}

func TestReconcile_RejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	f.scriptPayment(sale.ID, "approved", 9900)

	n := signedNotification("wrong-secret", "pay-9")
	err := f.uc.Process(ctx, testTenant("prod-1"), "mercadopago", n)
	if !errors.Is(err, domain.ErrBadSignature) {
		t.Fatalf("Process = %v, want ErrBadSignature", err)
	}

	got, _ := f.sales.FindByID(ctx, repository.NoTX, sale.ID)
	if got.Status != model.SaleStatusPending {
		t.Errorf("sale status = %s, want pending untouched", got.Status)
	}
	if len(f.fulfiller.calls) != 0 {
		t.Error("nothing may be fulfilled on a rejected webhook")
	}
}

func TestReconcile_RejectsMissingSignatureHeader(t *testing.T) {
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	f.scriptPayment(sale.ID, "approved", 9900)

	err := f.uc.Process(context.Background(), testTenant("prod-1"), "mercadopago",
		WebhookNotification{PaymentID: "pay-9"})
	if !errors.Is(err, domain.ErrBadSignature) {
		t.Fatalf("Process = %v, want ErrBadSignature", err)
	}
}

func TestReconcile_ApprovesAndFulfillsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	f.scriptPayment(sale.ID, "approved", 9900)

	tenant := testTenant("prod-1")
	n := signedNotification("whs-1", "pay-9")

	// Gateways redeliver webhooks aggressively; three deliveries, one
	// fulfillment.
	for i := 0; i < 3; i++ {
		if err := f.uc.Process(ctx, tenant, "mercadopago", n); err != nil {
			t.Fatalf("Process #%d: %v", i+1, err)
		}
	}

	got, _ := f.sales.FindByID(ctx, repository.NoTX, sale.ID)
	if got.Status != model.SaleStatusApproved {
		t.Errorf("sale status = %s, want approved", got.Status)
	}
	if got.TotalValue != 9900 {
		t.Errorf("total value = %d, want the gateway-reported 9900", got.TotalValue)
	}
	if len(f.fulfiller.calls) != 1 {
		t.Errorf("fulfillments = %d, want exactly 1", len(f.fulfiller.calls))
	}
}

func TestReconcile_ApprovedIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusApproved)
	f.scriptPayment(sale.ID, "cancelled", 0)

	if err := f.uc.Process(ctx, testTenant("prod-1"), "mercadopago", signedNotification("whs-1", "pay-9")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, _ := f.sales.FindByID(ctx, repository.NoTX, sale.ID)
	if got.Status != model.SaleStatusApproved {
		t.Errorf("status = %s, approved must never revert", got.Status)
	}
}

func TestReconcile_CancelRepaintsPrompt(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	f.scriptPayment(sale.ID, "expired", 0)

	if err := f.uc.Process(ctx, testTenant("prod-1"), "mercadopago", signedNotification("whs-1", "pay-9")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, _ := f.sales.FindByID(ctx, repository.NoTX, sale.ID)
	if got.Status != model.SaleStatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	// The stale payment prompt is edited into the expiry notice.
	if len(f.messenger.Edited) != 1 {
		t.Fatalf("edited = %d, want 1", len(f.messenger.Edited))
	}
	buttons := f.messenger.Edited[0].Msg.Buttons
	if len(buttons) == 0 || buttons[0][0].Data != string(model.ActionMainMenu) {
		t.Error("expiry notice should offer a restart button")
	}
}

func TestReconcile_PendingStatusIgnored(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	f.scriptPayment(sale.ID, "in_process", 0)

	if err := f.uc.Process(ctx, testTenant("prod-1"), "mercadopago", signedNotification("whs-1", "pay-9")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, _ := f.sales.FindByID(ctx, repository.NoTX, sale.ID)
	if got.Status != model.SaleStatusPending {
		t.Errorf("status = %s, informational updates must not transition", got.Status)
	}
}

func TestReconcile_MissingSecretStillProcesses(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	f.scriptPayment(sale.ID, "approved", 9900)

	tenant := testTenant("prod-1")
	tenant.Gateways["mercadopago"] = model.GatewayCredentials{AccessToken: "at-1"} // no webhook secret

	// No signature at all: trust-but-warn keeps onboarding tenants working.
	if err := f.uc.Process(ctx, tenant, "mercadopago", WebhookNotification{PaymentID: "pay-9"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(f.fulfiller.calls) != 1 {
		t.Errorf("fulfillments = %d, want 1", len(f.fulfiller.calls))
	}
}

func TestReconcile_FallsBackToGatewayRefLookup(t *testing.T) {
	ctx := context.Background()
	f := newReconcileFixture(t)
	sale := f.seedSale(t, model.SaleStatusPending)
	// older payments lack the external reference
	f.gateway.GetPaymentFunc = func(ctx context.Context, paymentID string) (*adapter.PaymentResource, error) {
		return &adapter.PaymentResource{ID: "pay-9", Status: "approved", TransactionAmount: 500}, nil
	}

	if err := f.uc.Process(ctx, testTenant("prod-1"), "mercadopago", signedNotification("whs-1", "pay-9")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, _ := f.sales.FindByID(ctx, repository.NoTX, sale.ID)
	if got.Status != model.SaleStatusApproved {
		t.Errorf("status = %s, want approved via gateway ref lookup", got.Status)
	}
}
