// File: internal/usecase/router_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/i18n"
)

// Compile-time check
var _ RouterUseCase = (*routerUC)(nil)

// Turn is one inbound conversation event, already resolved to a tenant by
// the web layer. Exactly one of Command/Callback is set. There is no
// server-held conversation state; everything needed to answer is here.
type Turn struct {
	Transport       model.Transport
	ChatID          string
	TransportUserID string
	UserName        string
	FirstName       string
	Command         string // typed text, e.g. "/start"
	Callback        string // button token, e.g. "GO_TO_STEP:abc"
	OriginMessageID string // message whose button produced this turn
}

type RouterUseCase interface {
	// HandleTurn resolves and answers one conversation turn. It always
	// responds with something conversational; errors escape only when even
	// the fallback reply could not be sent.
	HandleTurn(ctx context.Context, tenant *model.Tenant, turn Turn) error
}

type routerUC struct {
	users      repository.UserRepository
	purchases  repository.PurchaseRepository
	checkout   CheckoutUseCase
	messengers MessengerProvider
	executor   *StepExecutor
	tr         *i18n.Translator
	log        *zerolog.Logger
}

func NewRouterUseCase(users repository.UserRepository, purchases repository.PurchaseRepository, checkout CheckoutUseCase, messengers MessengerProvider, executor *StepExecutor, tr *i18n.Translator, logger *zerolog.Logger) *routerUC {
	l := logger.With().Str("component", "RouterUC").Logger()
	return &routerUC{
		users:      users,
		purchases:  purchases,
		checkout:   checkout,
		messengers: messengers,
		executor:   executor,
		tr:         tr,
		log:        &l,
	}
}

func (u *routerUC) HandleTurn(ctx context.Context, tenant *model.Tenant, turn Turn) error {
	m, err := u.messengers.For(tenant, turn.Transport)
	if err != nil {
		return err
	}

	if !tenant.CanRespond() {
		text := tenant.InactiveMessage
		if text == "" {
			text = u.tr.T("tenant_inactive_default")
		}
		_, err := m.SendMessage(ctx, turn.ChatID, adapter.OutMessage{Text: text})
		return err
	}

	user, err := u.ensureUser(ctx, tenant, turn)
	if err != nil {
		_, _ = m.SendMessage(ctx, turn.ChatID, adapter.OutMessage{Text: u.tr.T("error_generic")})
		return err
	}
	vars := RenderVars{UserName: turn.UserName, FirstName: turn.FirstName}

	if turn.Callback != "" {
		return u.handleCallback(ctx, tenant, user, m, turn, vars)
	}
	return u.handleCommand(ctx, tenant, user, m, turn, vars)
}

func (u *routerUC) handleCommand(ctx context.Context, tenant *model.Tenant, user *model.User, m adapter.Messenger, turn Turn, vars RenderVars) error {
	cmd := strings.TrimSpace(turn.Command)

	if cmd == "/perfil" {
		msg := u.profileView(ctx, user)
		_, err := m.SendMessage(ctx, turn.ChatID, msg)
		return err
	}

	if tenant.FlowModel == nil {
		_, err := m.SendMessage(ctx, turn.ChatID, adapter.OutMessage{Text: u.tr.T("bot_not_configured")})
		return err
	}

	flow := tenant.FlowModel.FindFlowByTrigger(cmd)
	if flow == nil {
		_, err := m.SendMessage(ctx, turn.ChatID, adapter.OutMessage{Text: u.tr.T("command_not_recognized")})
		return err
	}
	step := flow.StartStep()
	if step == nil {
		u.log.Warn().Str("tenant", tenant.ID).Str("flow", flow.ID).Msg("flow start step dangling")
		_, err := m.SendMessage(ctx, turn.ChatID, adapter.OutMessage{Text: u.tr.T("step_not_found")})
		return err
	}
	_, err := m.SendMessage(ctx, turn.ChatID, u.executor.Render(step, vars))
	return err
}

func (u *routerUC) handleCallback(ctx context.Context, tenant *model.Tenant, user *model.User, m adapter.Messenger, turn Turn, vars RenderVars) error {
	action, payload, _ := strings.Cut(turn.Callback, ":")

	deliver := func(msg adapter.OutMessage) error {
		_, err := u.executor.Deliver(ctx, m, turn.ChatID, turn.OriginMessageID, msg)
		return err
	}

	switch model.ActionType(action) {
	case model.ActionGoToStep:
		step := tenant.FlowModel.FindStep(payload)
		if step == nil {
			u.log.Warn().Str("tenant", tenant.ID).Str("step_id", payload).Msg("callback references dangling step")
			return deliver(adapter.OutMessage{Text: u.tr.T("step_not_found")})
		}
		return deliver(u.executor.Render(step, vars))

	case model.ActionMainMenu:
		return deliver(u.mainMenuView(tenant, vars))

	case model.ActionShowProfile:
		return deliver(u.profileView(ctx, user))

	case model.ActionLinkToProduct:
		msg, err := u.checkout.ProductOffer(ctx, tenant, user, payload)
		if err != nil {
			u.log.Error().Err(err).Str("product_id", payload).Msg("product offer failed")
			return deliver(adapter.OutMessage{Text: u.tr.T("error_generic")})
		}
		return deliver(msg)

	case model.ActionTypeBuyWithMethod:
		return u.handleBuy(ctx, tenant, user, m, turn, payload, vars)

	case model.ActionTypeCancelSale:
		return u.handleCancel(ctx, tenant, turn, payload, deliver, vars)

	case model.ActionTypeDeleteConfirm:
		return deliver(adapter.OutMessage{
			Text: u.tr.T("delete_confirm_text"),
			Buttons: [][]adapter.InlineButton{
				{{Text: u.tr.T("delete_confirm_button"), Data: string(model.ActionTypeDeleteExecute)}},
				{{Text: u.tr.T("back_to_menu"), Data: string(model.ActionMainMenu)}},
			},
		})

	case model.ActionTypeDeleteExecute:
		if err := u.users.Delete(ctx, repository.NoTX, user.ID); err != nil {
			u.log.Error().Err(err).Str("user_id", user.ID).Msg("user deletion failed")
			return deliver(adapter.OutMessage{Text: u.tr.T("error_generic")})
		}
		return deliver(adapter.OutMessage{Text: u.tr.T("delete_done")})

	default:
		// Unknown tokens are acknowledged, never crashed on.
		u.log.Warn().Str("tenant", tenant.ID).Str("token", turn.Callback).Msg("unknown callback token")
		return deliver(adapter.OutMessage{Text: u.tr.T("command_not_recognized")})
	}
}

// handleBuy parses BUY_WITH_METHOD:<method>:<gateway>:<productId>.
func (u *routerUC) handleBuy(ctx context.Context, tenant *model.Tenant, user *model.User, m adapter.Messenger, turn Turn, payload string, vars RenderVars) error {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 {
		u.log.Warn().Str("payload", payload).Msg("malformed buy token")
		_, err := u.executor.Deliver(ctx, m, turn.ChatID, turn.OriginMessageID, adapter.OutMessage{Text: u.tr.T("error_generic")})
		return err
	}
	method, gateway, productID := parts[0], parts[1], parts[2]

	msg, sale, err := u.checkout.Buy(ctx, tenant, user, method, gateway, productID)
	if err != nil {
		u.log.Error().Err(err).Str("product_id", productID).Msg("buy failed")
		_, derr := u.executor.Deliver(ctx, m, turn.ChatID, turn.OriginMessageID, adapter.OutMessage{Text: u.tr.T("error_generic")})
		if derr != nil {
			return derr
		}
		return nil
	}
	if msg.Text == "" {
		// Free acquisition: fulfillment already answered the conversation.
		return nil
	}
	msgID, err := u.executor.Deliver(ctx, m, turn.ChatID, turn.OriginMessageID, msg)
	if err != nil {
		return err
	}
	if sale != nil && sale.Status == model.SaleStatusPending {
		if err := u.checkout.AttachMessage(ctx, sale.ID, msgID); err != nil {
			u.log.Error().Err(err).Str("sale_id", sale.ID).Msg("attach payment message failed")
		}
	}
	return nil
}

func (u *routerUC) handleCancel(ctx context.Context, tenant *model.Tenant, turn Turn, saleID string, deliver func(adapter.OutMessage) error, vars RenderVars) error {
	err := u.checkout.Cancel(ctx, saleID)
	switch {
	case err == nil:
		menu := u.mainMenuView(tenant, vars)
		menu.Text = u.tr.T("sale_cancelled") + "\n\n" + menu.Text
		return deliver(menu)
	case errors.Is(err, domain.ErrSaleAlreadyFinal):
		return deliver(adapter.OutMessage{Text: u.tr.T("sale_already_paid")})
	default:
		u.log.Error().Err(err).Str("sale_id", saleID).Msg("cancel failed")
		return deliver(adapter.OutMessage{Text: u.tr.T("error_generic")})
	}
}

// mainMenuView renders the start step of the flow triggered by /start.
func (u *routerUC) mainMenuView(tenant *model.Tenant, vars RenderVars) adapter.OutMessage {
	if tenant.FlowModel == nil {
		return adapter.OutMessage{Text: u.tr.T("bot_not_configured")}
	}
	flow := tenant.FlowModel.FindFlowByTrigger("/start")
	if flow == nil {
		return adapter.OutMessage{Text: u.tr.T("main_menu_missing")}
	}
	step := flow.StartStep()
	if step == nil {
		return adapter.OutMessage{Text: u.tr.T("step_not_found")}
	}
	return u.executor.Render(step, vars)
}

// profileView is a terminal, non-graph view built from the purchase trail.
func (u *routerUC) profileView(ctx context.Context, user *model.User) adapter.OutMessage {
	purchases, err := u.purchases.ListByUser(ctx, repository.NoTX, user.ID)
	if err != nil {
		u.log.Error().Err(err).Str("user_id", user.ID).Msg("purchase list failed")
		return adapter.OutMessage{Text: u.tr.T("error_generic")}
	}

	var b strings.Builder
	b.WriteString(u.tr.T("profile_header") + "\n\n")
	if len(purchases) == 0 {
		b.WriteString(u.tr.T("profile_no_purchases"))
	}
	now := time.Now()
	for _, p := range purchases {
		var expiry string
		switch {
		case p.ExpiresAt == nil:
			expiry = u.tr.T("profile_lifetime")
		default:
			expiry = u.tr.T("profile_expires", p.ExpiresAt.Format("02/01/2006"))
		}
		badge := u.tr.T("profile_status_active")
		if p.Status == model.PurchaseStatusExpired || p.Expired(now) {
			badge = u.tr.T("profile_status_expired")
		}
		line := u.tr.T("profile_purchase_line", p.ProductName, p.CreatedAt.Format("02/01/2006"), expiry)
		b.WriteString(fmt.Sprintf("• %s (%s)\n", line, badge))
	}

	return adapter.OutMessage{
		Text: b.String(),
		Buttons: [][]adapter.InlineButton{
			{{Text: u.tr.T("profile_delete_button"), Data: string(model.ActionTypeDeleteConfirm)}},
			{{Text: u.tr.T("back_to_menu"), Data: string(model.ActionMainMenu)}},
		},
	}
}

// ensureUser finds or registers the end user for this tenant+transport.
func (u *routerUC) ensureUser(ctx context.Context, tenant *model.Tenant, turn Turn) (*model.User, error) {
	user, err := u.users.FindByTransportID(ctx, repository.NoTX, tenant.ID, turn.Transport, turn.TransportUserID)
	if err == nil {
		if turn.UserName != "" && user.Name != turn.UserName {
			user.Name = turn.UserName
			user.UpdatedAt = time.Now()
			if err := u.users.Save(ctx, repository.NoTX, user); err != nil {
				u.log.Debug().Err(err).Str("user_id", user.ID).Msg("user name refresh failed")
			}
		}
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	user = &model.User{
		ID:        uuid.NewString(),
		TenantID:  tenant.ID,
		Name:      turn.UserName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch turn.Transport {
	case model.TransportTelegram:
		id, perr := strconv.ParseInt(turn.TransportUserID, 10, 64)
		if perr != nil {
			return nil, domain.ErrInvalidArgument
		}
		user.TelegramID = id
	case model.TransportWhatsApp:
		user.WhatsAppID = turn.TransportUserID
	default:
		return nil, domain.ErrInvalidArgument
	}
	if err := u.users.Save(ctx, repository.NoTX, user); err != nil {
		return nil, err
	}
	return user, nil
}
