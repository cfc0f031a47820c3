// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/i18n"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// ProductOffer renders the buyer-facing view of a product: free acquire
	// button, payment-method chooser, or an unavailable notice.
	ProductOffer(ctx context.Context, tenant *model.Tenant, user *model.User, productID string) (adapter.OutMessage, error)
	// Buy idempotently gets or creates the pending sale for (tenant, product,
	// buyer) and initiates payment with the chosen method. Free products are
	// approved and fulfilled on the spot through the same conditional gate.
	Buy(ctx context.Context, tenant *model.Tenant, user *model.User, method, gateway, productID string) (adapter.OutMessage, *model.Sale, error)
	// AttachMessage records which rendered message carries the payment
	// prompt, so the reconciler can edit it later.
	AttachMessage(ctx context.Context, saleID, messageID string) error
	// Cancel transitions a sale to cancelled unless it is already approved.
	Cancel(ctx context.Context, saleID string) error
}

type checkoutUC struct {
	sales     repository.SaleRepository
	products  repository.ProductRepository
	gateways  GatewayProvider
	fulfiller FulfillmentUseCase
	tr        *i18n.Translator
	log       *zerolog.Logger
}

func NewCheckoutUseCase(sales repository.SaleRepository, products repository.ProductRepository, gateways GatewayProvider, fulfiller FulfillmentUseCase, tr *i18n.Translator, logger *zerolog.Logger) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{sales: sales, products: products, gateways: gateways, fulfiller: fulfiller, tr: tr, log: &l}
}

func (u *checkoutUC) ProductOffer(ctx context.Context, tenant *model.Tenant, user *model.User, productID string) (adapter.OutMessage, error) {
	p, err := u.products.FindByID(ctx, repository.NoTX, tenant.ID, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return textWithMenu(u.tr, u.tr.T("product_not_found")), nil
		}
		return adapter.OutMessage{}, err
	}
	if !p.Available() {
		return textWithMenu(u.tr, u.tr.T("product_out_of_stock")), nil
	}

	now := time.Now()
	price := p.EffectivePrice(now)

	if price == 0 {
		return adapter.OutMessage{
			Text: p.Name + "\n\n" + p.Description,
			Buttons: [][]adapter.InlineButton{
				{{Text: u.tr.T("product_free_acquire"), Data: buyToken("free", "internal", p.ID)}},
				{{Text: u.tr.T("back_to_menu"), Data: string(model.ActionMainMenu)}},
			},
		}, nil
	}

	var text string
	if price != p.Price {
		text = u.tr.T("product_offer_discount", p.Name, formatCentavos(p.Price), formatCentavos(price))
	} else {
		text = u.tr.T("product_offer", p.Name, formatCentavos(price))
	}

	var rows [][]adapter.InlineButton
	for gwName := range tenant.Gateways {
		rows = append(rows,
			[]adapter.InlineButton{{Text: u.tr.T("method_pix"), Data: buyToken("pix", gwName, p.ID)}},
			[]adapter.InlineButton{{Text: u.tr.T("method_checkout"), Data: buyToken("checkout", gwName, p.ID)}},
		)
	}
	if len(rows) == 0 {
		return textWithMenu(u.tr, u.tr.T("payment_not_configured")), nil
	}
	rows = append(rows, []adapter.InlineButton{{Text: u.tr.T("back_to_menu"), Data: string(model.ActionMainMenu)}})
	return adapter.OutMessage{Text: text + "\n\n" + u.tr.T("choose_payment_method"), Buttons: rows}, nil
}

func (u *checkoutUC) Buy(ctx context.Context, tenant *model.Tenant, user *model.User, method, gateway, productID string) (adapter.OutMessage, *model.Sale, error) {
	p, err := u.products.FindByID(ctx, repository.NoTX, tenant.ID, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return textWithMenu(u.tr, u.tr.T("product_not_found")), nil, nil
		}
		return adapter.OutMessage{}, nil, err
	}

	sale, err := u.getOrCreateSale(ctx, tenant, user, p, gateway)
	if err != nil {
		return adapter.OutMessage{}, nil, err
	}

	now := time.Now()
	price := p.EffectivePrice(now)

	if price == 0 {
		// Same gate as webhook approval: double taps fulfill once.
		won, err := u.sales.UpdateStatusIfPending(ctx, repository.NoTX, sale.ID, model.SaleStatusApproved, 0)
		if err != nil {
			return adapter.OutMessage{}, nil, err
		}
		if won {
			sale.Status = model.SaleStatusApproved
			if err := u.fulfiller.Deliver(ctx, tenant, sale); err != nil {
				u.log.Error().Err(err).Str("sale_id", sale.ID).Msg("free product fulfillment failed")
			}
		}
		return adapter.OutMessage{}, sale, nil
	}

	// The price decides the path, never the token: a stale or forged "free"
	// method on a priced product is rejected.
	if method == "free" {
		u.log.Warn().Str("sale_id", sale.ID).Str("product_id", p.ID).Msg("free method on priced product rejected")
		return textWithMenu(u.tr, u.tr.T("error_generic")), sale, nil
	}

	gwCreds, ok := tenant.Gateway(gateway)
	if !ok {
		return textWithMenu(u.tr, u.tr.T("payment_not_configured")), sale, nil
	}
	gw, err := u.gateways.For(gateway, gwCreds)
	if err != nil {
		return textWithMenu(u.tr, u.tr.T("payment_not_configured")), sale, nil
	}

	intent, err := gw.CreatePayment(ctx, method, price, p.Name, sale.ID)
	if err != nil {
		u.log.Error().Err(err).Str("sale_id", sale.ID).Str("gateway", gateway).Msg("payment initiation failed")
		return textWithMenu(u.tr, u.tr.T("error_generic")), sale, nil
	}
	if err := u.sales.SetGatewayRef(ctx, repository.NoTX, sale.ID, intent.ID); err != nil {
		return adapter.OutMessage{}, nil, err
	}
	sale.GatewayRefID = intent.ID

	msg := adapter.OutMessage{}
	if method == "pix" && intent.PixCopyPaste != "" {
		msg.Text = u.tr.T("payment_instructions_pix")
		msg.Code = intent.PixCopyPaste
	} else {
		msg.Text = u.tr.T("payment_instructions_link")
	}
	if intent.PayURL != "" {
		msg.Buttons = append(msg.Buttons, []adapter.InlineButton{{Text: u.tr.T("pay_now"), URL: intent.PayURL}})
	}
	msg.Buttons = append(msg.Buttons, []adapter.InlineButton{{Text: u.tr.T("cancel_purchase"), Data: string(model.ActionTypeCancelSale) + ":" + sale.ID}})
	return msg, sale, nil
}

func (u *checkoutUC) AttachMessage(ctx context.Context, saleID, messageID string) error {
	s, err := u.sales.FindByID(ctx, repository.NoTX, saleID)
	if err != nil {
		return err
	}
	s.MessageID = messageID
	s.UpdatedAt = time.Now()
	return u.sales.Save(ctx, repository.NoTX, s)
}

func (u *checkoutUC) Cancel(ctx context.Context, saleID string) error {
	won, err := u.sales.UpdateStatusIfPending(ctx, repository.NoTX, saleID, model.SaleStatusCancelled, -1)
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrSaleAlreadyFinal
	}
	return nil
}

// getOrCreateSale reuses an open pending sale for the same (tenant, product,
// buyer) so repeated method taps do not pile up transactions.
func (u *checkoutUC) getOrCreateSale(ctx context.Context, tenant *model.Tenant, user *model.User, p *model.Product, gateway string) (*model.Sale, error) {
	if s, err := u.sales.FindPending(ctx, repository.NoTX, tenant.ID, p.ID, user.ID); err == nil && s != nil {
		return s, nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	s := &model.Sale{
		ID:             ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		TenantID:       tenant.ID,
		ProductID:      p.ID,
		UserID:         user.ID,
		Transport:      user.Transport(),
		ChatID:         user.ChatID(),
		Status:         model.SaleStatusPending,
		PaymentGateway: gateway,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.sales.Save(ctx, repository.NoTX, s); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// lost a race with a concurrent tap; use the winner's sale
			return u.sales.FindPending(ctx, repository.NoTX, tenant.ID, p.ID, user.ID)
		}
		return nil, err
	}
	return s, nil
}

func buyToken(method, gateway, productID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", model.ActionTypeBuyWithMethod, method, gateway, productID)
}

func textWithMenu(tr *i18n.Translator, text string) adapter.OutMessage {
	return adapter.OutMessage{
		Text:    text,
		Buttons: [][]adapter.InlineButton{{{Text: tr.T("back_to_menu"), Data: string(model.ActionMainMenu)}}},
	}
}

func formatCentavos(v int64) string {
	return fmt.Sprintf("%d,%02d", v/100, v%100)
}
