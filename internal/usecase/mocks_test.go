//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/i18n"
)

func testTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	return tr
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ===== in-memory repositories =====

type memTenantRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Tenant
}

func newMemTenantRepo() *memTenantRepo {
	return &memTenantRepo{store: make(map[string]*model.Tenant)}
}

func (m *memTenantRepo) Save(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *memTenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenantRepo) FindBySubdomain(ctx context.Context, tx repository.Tx, subdomain string) (*model.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if t.Subdomain == subdomain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTenantRepo) ListExpired(ctx context.Context, tx repository.Tx, ref time.Time, limit int) ([]*model.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Tenant
	for _, t := range m.store {
		if t.SubscriptionExpired(ref) {
			cp := *t
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memTenantRepo) UpdateStatusIfExpired(ctx context.Context, tx repository.Tx, id string, ref time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || !t.SubscriptionExpired(ref) {
		return false, nil
	}
	t.Status = model.TenantStatusInactive
	return true, nil
}

func (m *memTenantRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TenantStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.TenantStatus]int)
	for _, t := range m.store {
		out[t.Status]++
	}
	return out, nil
}

type memProductRepo struct {
	mu    sync.Mutex
	store map[string]*model.Product
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{store: make(map[string]*model.Product)}
}

func (m *memProductRepo) Save(ctx context.Context, tx repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memProductRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) ListByTenant(ctx context.Context, tx repository.Tx, tenantID string) ([]*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Product
	for _, p := range m.store {
		if p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProductRepo) PopActivationCode(ctx context.Context, tx repository.Tx, tenantID, productID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[productID]
	if !ok || p.TenantID != tenantID || len(p.ActivationCodes) == 0 {
		return "", domain.ErrOutOfStock
	}
	code := p.ActivationCodes[0]
	p.ActivationCodes = p.ActivationCodes[1:]
	p.ActivationCodesUsed = append(p.ActivationCodesUsed, code)
	return code, nil
}

type memSaleRepo struct {
	mu    sync.Mutex
	store map[string]*model.Sale
}

func newMemSaleRepo() *memSaleRepo {
	return &memSaleRepo{store: make(map[string]*model.Sale)}
}

func (m *memSaleRepo) Save(ctx context.Context, tx repository.Tx, s *model.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == model.SaleStatusPending {
		for _, other := range m.store {
			if other.ID != s.ID && other.Status == model.SaleStatusPending &&
				other.TenantID == s.TenantID && other.ProductID == s.ProductID && other.UserID == s.UserID {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSaleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSaleRepo) FindByGatewayRef(ctx context.Context, tx repository.Tx, gateway, refID string) (*model.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.PaymentGateway == gateway && s.GatewayRefID == refID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSaleRepo) FindPending(ctx context.Context, tx repository.Tx, tenantID, productID, userID string) (*model.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.Status == model.SaleStatusPending && s.TenantID == tenantID && s.ProductID == productID && s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSaleRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.SaleStatus, totalValue int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != model.SaleStatusPending {
		return false, nil
	}
	s.Status = status
	if totalValue >= 0 {
		s.TotalValue = totalValue
	}
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *memSaleRepo) SetGatewayRef(ctx context.Context, tx repository.Tx, id, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.GatewayRefID = refID
	return nil
}

func (m *memSaleRepo) CountByStatus(ctx context.Context, tx repository.Tx, tenantID string) (map[model.SaleStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.SaleStatus]int)
	for _, s := range m.store {
		if s.TenantID == tenantID {
			out[s.Status]++
		}
	}
	return out, nil
}

func (m *memSaleRepo) SumApprovedByTenant(ctx context.Context, tx repository.Tx, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, s := range m.store {
		if s.TenantID == tenantID && s.Status == model.SaleStatusApproved {
			total += s.TotalValue
		}
	}
	return total, nil
}

type memUserRepo struct {
	mu      sync.Mutex
	store   map[string]*model.User
	saveErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByTransportID(ctx context.Context, tx repository.Tx, tenantID string, transport model.Transport, transportID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.TenantID != tenantID {
			continue
		}
		if transport == model.TransportTelegram && strconv.FormatInt(u.TelegramID, 10) == transportID {
			cp := *u
			return &cp, nil
		}
		if transport == model.TransportWhatsApp && u.WhatsAppID == transportID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *memUserRepo) SetHasActiveSub(ctx context.Context, tx repository.Tx, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.HasActiveSub = active
	return nil
}

type memPurchaseRepo struct {
	mu    sync.Mutex
	store map[string]*model.Purchase
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{store: make(map[string]*model.Purchase)}
}

func (m *memPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) ListExpired(ctx context.Context, tx repository.Tx, ref time.Time, limit int) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.Status == model.PurchaseStatusApproved && p.Expired(ref) {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) MarkExpiredIfDue(ctx context.Context, tx repository.Tx, id string, ref time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PurchaseStatusApproved || !p.Expired(ref) {
		return false, nil
	}
	p.Status = model.PurchaseStatusExpired
	return true, nil
}

func (m *memPurchaseRepo) ListExpiringWithin(ctx context.Context, tx repository.Tx, ref time.Time, window time.Duration, lastNotifiedBefore time.Time, limit int) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.Status != model.PurchaseStatusApproved || p.ExpiresAt == nil {
			continue
		}
		if !p.ExpiresAt.After(ref) || p.ExpiresAt.After(ref.Add(window)) {
			continue
		}
		if p.LastNotified != nil && !p.LastNotified.Before(lastNotifiedBefore) {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) SetLastNotified(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	cp := at
	p.LastNotified = &cp
	return nil
}

// ===== adapter mocks =====

type sentMessage struct {
	ChatID string
	Msg    adapter.OutMessage
}

// mockMessenger records outbound traffic; Func hooks override behavior per
// test.
type mockMessenger struct {
	mu      sync.Mutex
	nextID  int
	Sent    []sentMessage
	Edited  []sentMessage
	Deleted []string
	Banned  []int64

	SendFunc   func(ctx context.Context, chatID string, msg adapter.OutMessage) (string, error)
	EditFunc   func(ctx context.Context, chatID, messageID string, msg adapter.OutMessage) error
	DeleteFunc func(ctx context.Context, chatID, messageID string) error
	InviteFunc func(ctx context.Context, groupID int64, expiresIn time.Duration, memberLimit int) (string, error)
}

func (m *mockMessenger) Name() string { return "mock" }

func (m *mockMessenger) SendMessage(ctx context.Context, chatID string, msg adapter.OutMessage) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, chatID, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Msg: msg})
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *mockMessenger) EditMessage(ctx context.Context, chatID, messageID string, msg adapter.OutMessage) error {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, chatID, messageID, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, sentMessage{ChatID: chatID, Msg: msg})
	return nil
}

func (m *mockMessenger) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, chatID, messageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *mockMessenger) CreateInviteLink(ctx context.Context, groupID int64, expiresIn time.Duration, memberLimit int) (string, error) {
	if m.InviteFunc != nil {
		return m.InviteFunc(ctx, groupID, expiresIn, memberLimit)
	}
	return "https://t.me/+invite", nil
}

func (m *mockMessenger) BanMember(ctx context.Context, groupID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Banned = append(m.Banned, userID)
	return nil
}

func (m *mockMessenger) UnbanMember(ctx context.Context, groupID, userID int64) error { return nil }

func (m *mockMessenger) lastSent(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		t.Fatal("no message sent")
	}
	return m.Sent[len(m.Sent)-1]
}

// staticMessengers hands the same mock to every tenant.
type staticMessengers struct {
	m   adapter.Messenger
	err error
}

func (s *staticMessengers) For(t *model.Tenant, transport model.Transport) (adapter.Messenger, error) {
	return s.m, s.err
}

// mockGateway scripts the payment provider side.
type mockGateway struct {
	CreatePaymentFunc func(ctx context.Context, method string, amount int64, description, externalRef string) (*adapter.PaymentIntent, error)
	GetPaymentFunc    func(ctx context.Context, paymentID string) (*adapter.PaymentResource, error)
}

func (g *mockGateway) Name() string { return "mercadopago" }

func (g *mockGateway) CreatePayment(ctx context.Context, method string, amount int64, description, externalRef string) (*adapter.PaymentIntent, error) {
	if g.CreatePaymentFunc != nil {
		return g.CreatePaymentFunc(ctx, method, amount, description, externalRef)
	}
	return &adapter.PaymentIntent{ID: "pay-1", PayURL: "https://mp.example/pay-1", PixCopyPaste: "00020126pix"}, nil
}

func (g *mockGateway) GetPayment(ctx context.Context, paymentID string) (*adapter.PaymentResource, error) {
	if g.GetPaymentFunc != nil {
		return g.GetPaymentFunc(ctx, paymentID)
	}
	return nil, domain.ErrNotFound
}

type staticGateways struct {
	gw  adapter.PaymentGateway
	err error
}

func (s *staticGateways) For(name string, creds model.GatewayCredentials) (adapter.PaymentGateway, error) {
	return s.gw, s.err
}

// ===== fixtures =====

func testFlowModel(productID string) *model.FlowModel {
	return &model.FlowModel{Flows: []model.Flow{{
		ID:             "main",
		TriggerCommand: "/start",
		StartStepID:    "welcome",
		Steps: []model.Step{
			{
				ID:              "welcome",
				Name:            "Welcome",
				MessageTemplate: "Hello, {firstName}!",
				Buttons: []model.Button{
					{ID: "b1", Text: "Products", Action: model.Action{Type: model.ActionGoToStep, Payload: "catalog"}},
					{ID: "b2", Text: "Profile", Action: model.Action{Type: model.ActionShowProfile}},
				},
			},
			{
				ID:              "catalog",
				Name:            "Catalog",
				MessageTemplate: "Pick a product:",
				Buttons: []model.Button{
					{ID: "b1", Text: "Course", Action: model.Action{Type: model.ActionLinkToProduct, Payload: productID}},
					{ID: "b2", Text: "Back", Action: model.Action{Type: model.ActionMainMenu}},
				},
			},
		},
	}}}
}

func testTenant(productID string) *model.Tenant {
	return &model.Tenant{
		ID:        "tenant-1",
		Subdomain: "loja",
		Status:    model.TenantStatusActive,
		Credentials: model.TransportCredentials{
			BotToken: "token-1",
		},
		Gateways: map[string]model.GatewayCredentials{
			"mercadopago": {AccessToken: "at-1", WebhookSecret: "whs-1"},
		},
		FlowModel: testFlowModel(productID),
	}
}

func testUser() *model.User {
	return &model.User{
		ID:         "user-1",
		TenantID:   "tenant-1",
		TelegramID: 1001,
		Name:       "maria",
	}
}
