// File: internal/usecase/fulfillment_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/i18n"
	"chatbot-commerce/internal/infra/metrics"
)

// Compile-time check
var _ FulfillmentUseCase = (*fulfillmentUC)(nil)

// FulfillmentUseCase delivers what an approved sale paid for. Callers must
// hold the approval gate: Deliver runs at most once per sale because only
// the winner of UpdateStatusIfPending invokes it.
type FulfillmentUseCase interface {
	Deliver(ctx context.Context, tenant *model.Tenant, sale *model.Sale) error
}

type fulfillmentUC struct {
	products   repository.ProductRepository
	users      repository.UserRepository
	purchases  repository.PurchaseRepository
	messengers MessengerProvider
	executor   *StepExecutor
	tr         *i18n.Translator
	log        *zerolog.Logger
}

func NewFulfillmentUseCase(products repository.ProductRepository, users repository.UserRepository, purchases repository.PurchaseRepository, messengers MessengerProvider, executor *StepExecutor, tr *i18n.Translator, logger *zerolog.Logger) *fulfillmentUC {
	l := logger.With().Str("component", "FulfillmentUC").Logger()
	return &fulfillmentUC{
		products:   products,
		users:      users,
		purchases:  purchases,
		messengers: messengers,
		executor:   executor,
		tr:         tr,
		log:        &l,
	}
}

func (u *fulfillmentUC) Deliver(ctx context.Context, tenant *model.Tenant, sale *model.Sale) error {
	p, err := u.products.FindByID(ctx, repository.NoTX, sale.TenantID, sale.ProductID)
	if err != nil {
		// Data integrity: the product was deleted after the sale was created.
		// The payment stays approved; support has to step in.
		u.log.Error().Err(err).Str("sale_id", sale.ID).Str("product_id", sale.ProductID).Msg("fulfillment: product missing")
		return err
	}
	user, err := u.users.FindByID(ctx, repository.NoTX, sale.UserID)
	if err != nil {
		u.log.Error().Err(err).Str("sale_id", sale.ID).Str("user_id", sale.UserID).Msg("fulfillment: buyer missing")
		return err
	}
	m, err := u.messengers.For(tenant, sale.Transport)
	if err != nil {
		return err
	}

	var msg adapter.OutMessage
	kind := "content"

	switch {
	case p.Type == model.ProductTypeProduct && p.Subtype == model.SubtypeActivationCodes:
		kind = "activation_code"
		code, err := u.products.PopActivationCode(ctx, repository.NoTX, p.TenantID, p.ID)
		if err != nil {
			if errors.Is(err, domain.ErrOutOfStock) {
				u.log.Error().Str("sale_id", sale.ID).Str("product_id", p.ID).Msg("fulfillment: code pool exhausted after approval")
				msg = adapter.OutMessage{Text: u.tr.T("code_delivery_failed")}
				break
			}
			return err
		}
		metrics.IncActivationCodeDelivered()
		msg = adapter.OutMessage{
			Text: u.tr.T("payment_approved") + "\n\n" + u.tr.T("your_activation_code"),
			Code: code,
		}

	case p.Type == model.ProductTypeProduct:
		msg = adapter.OutMessage{Text: u.tr.T("payment_approved") + "\n\n" + p.Description}

	case p.Type == model.ProductTypeSubscription && p.IsTelegramGroupAccess:
		kind = "group_invite"
		msg = u.groupInviteMessage(ctx, m, p)

	default: // subscription without group access
		kind = "subscription"
		msg = adapter.OutMessage{Text: u.tr.T("payment_approved") + "\n\n" + u.tr.T("subscription_active")}
	}

	if p.Type == model.ProductTypeSubscription {
		if err := u.appendPurchase(ctx, user, p); err != nil {
			return err
		}
	}

	if _, err := u.executor.Deliver(ctx, m, sale.ChatID, sale.MessageID, msg); err != nil {
		// Delivery and payment outcomes are decoupled: the sale stays
		// approved, the entitlement is already recorded.
		metrics.IncFulfillment(kind, "delivery_failed")
		u.log.Error().Err(err).Str("sale_id", sale.ID).Msg("fulfillment delivery failed")
		return nil
	}
	metrics.IncFulfillment(kind, "delivered")
	return nil
}

// groupInviteMessage asks the transport for a single-use, hour-long invite.
// Provider failure degrades to an apology; it never fails the sale.
func (u *fulfillmentUC) groupInviteMessage(ctx context.Context, m adapter.Messenger, p *model.Product) adapter.OutMessage {
	link, err := m.CreateInviteLink(ctx, p.TelegramGroupID, time.Hour, 1)
	if err != nil {
		u.log.Error().Err(err).Str("product_id", p.ID).Int64("group_id", p.TelegramGroupID).Msg("invite link creation failed")
		return adapter.OutMessage{Text: u.tr.T("group_invite_failed")}
	}
	return adapter.OutMessage{
		Text:    u.tr.T("group_invite_text"),
		Buttons: [][]adapter.InlineButton{{{Text: u.tr.T("group_invite_button"), URL: link}}},
	}
}

func (u *fulfillmentUC) appendPurchase(ctx context.Context, user *model.User, p *model.Product) error {
	now := time.Now()
	pu := &model.Purchase{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Type:        p.Type,
		Status:      model.PurchaseStatusApproved,
		CreatedAt:   now,
	}
	if p.DurationDays > 0 {
		exp := now.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
		pu.ExpiresAt = &exp
	}
	if err := u.purchases.Save(ctx, repository.NoTX, pu); err != nil {
		return err
	}
	return u.users.SetHasActiveSub(ctx, repository.NoTX, user.ID, true)
}
