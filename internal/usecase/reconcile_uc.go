// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/i18n"
	"chatbot-commerce/internal/infra/logging"
	"chatbot-commerce/internal/infra/metrics"
	"chatbot-commerce/internal/infra/payment"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// WebhookNotification is the untrusted shape of an inbound payment webhook
// after the web layer has pulled out the interesting parts. Everything here
// except the ids is re-fetched from the gateway before being believed.
type WebhookNotification struct {
	PaymentID       string // data.id query parameter
	RequestID       string // x-request-id header
	SignatureHeader string // raw x-signature header
}

type ReconcileUseCase interface {
	// Process verifies and applies one payment webhook for a tenant+gateway
	// pair. domain.ErrBadSignature means the caller must answer non-2xx; any
	// other unresolvable condition is terminal for this attempt and the
	// caller acks to stop gateway retries.
	Process(ctx context.Context, tenant *model.Tenant, gatewayName string, n WebhookNotification) error
}

type reconcileUC struct {
	sales      repository.SaleRepository
	gateways   GatewayProvider
	messengers MessengerProvider
	fulfiller  FulfillmentUseCase
	executor   *StepExecutor
	tr         *i18n.Translator
	log        *zerolog.Logger
}

func NewReconcileUseCase(sales repository.SaleRepository, gateways GatewayProvider, messengers MessengerProvider, fulfiller FulfillmentUseCase, executor *StepExecutor, tr *i18n.Translator, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		sales:      sales,
		gateways:   gateways,
		messengers: messengers,
		fulfiller:  fulfiller,
		executor:   executor,
		tr:         tr,
		log:        &l,
	}
}

func (u *reconcileUC) Process(ctx context.Context, tenant *model.Tenant, gatewayName string, n WebhookNotification) error {
	creds, ok := tenant.Gateway(gatewayName)
	if !ok {
		u.log.Warn().Str("tenant", tenant.ID).Str("gateway", gatewayName).Msg("webhook for unconfigured gateway")
		return domain.ErrNotConfigured
	}

	if err := u.verifySignature(tenant, creds, n); err != nil {
		return err
	}

	gw, err := u.gateways.For(gatewayName, creds)
	if err != nil {
		return err
	}

	// Never trust the webhook body: re-fetch the payment by id.
	res, err := gw.GetPayment(ctx, n.PaymentID)
	if err != nil {
		u.log.Error().Err(err).Str("payment_id", n.PaymentID).Msg("gateway payment fetch failed")
		return err
	}

	sale, err := u.lookupSale(ctx, gatewayName, res)
	if err != nil {
		u.log.Warn().Str("payment_id", n.PaymentID).Str("external_reference", res.ExternalReference).Msg("webhook references unknown sale")
		return err
	}
	ctx = logging.WithSaleID(ctx, sale.ID)

	switch mapGatewayStatus(res.Status) {
	case model.SaleStatusApproved:
		return u.approve(ctx, tenant, sale, res)
	case model.SaleStatusCancelled:
		return u.cancel(ctx, tenant, sale)
	default:
		// Informational update only; terminal guarantees stay untouched.
		logging.With(ctx, u.log).Info().Str("gateway_status", res.Status).Msg("payment status update ignored")
		return nil
	}
}

func (u *reconcileUC) verifySignature(tenant *model.Tenant, creds model.GatewayCredentials, n WebhookNotification) error {
	if creds.WebhookSecret == "" {
		if !creds.Sandbox {
			// Deliberate trust-but-warn posture for tenants still onboarding.
			metrics.IncInsecureWebhook(tenant.Subdomain)
			u.log.Warn().Str("tenant", tenant.ID).Msg("payment webhook accepted WITHOUT signature verification; configure a webhook secret")
		}
		return nil
	}
	ts, v1, ok := payment.ParseSignatureHeader(n.SignatureHeader)
	if !ok || n.RequestID == "" {
		metrics.IncSignatureFailure("missing_header")
		return domain.ErrBadSignature
	}
	if !payment.VerifyWebhookSignature(creds.WebhookSecret, n.PaymentID, n.RequestID, ts, v1) {
		metrics.IncSignatureFailure("mismatch")
		return domain.ErrBadSignature
	}
	return nil
}

func (u *reconcileUC) lookupSale(ctx context.Context, gatewayName string, res *adapter.PaymentResource) (*model.Sale, error) {
	if res.ExternalReference != "" {
		if s, err := u.sales.FindByID(ctx, repository.NoTX, res.ExternalReference); err == nil {
			return s, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return u.sales.FindByGatewayRef(ctx, repository.NoTX, gatewayName, res.ID)
}

// approve applies pending -> approved through the single conditional-update
// gate. Losing the race (or replaying a webhook) is a no-op, which is what
// makes duplicate delivery safe.
func (u *reconcileUC) approve(ctx context.Context, tenant *model.Tenant, sale *model.Sale, res *adapter.PaymentResource) error {
	won, err := u.sales.UpdateStatusIfPending(ctx, repository.NoTX, sale.ID, model.SaleStatusApproved, res.TransactionAmount)
	if err != nil {
		return err
	}
	if !won {
		metrics.IncSaleTransition("approved", "noop")
		logging.With(ctx, u.log).Info().Msg("sale already settled; duplicate webhook ignored")
		return nil
	}
	metrics.IncSaleTransition("approved", "applied")
	sale.Status = model.SaleStatusApproved
	sale.TotalValue = res.TransactionAmount

	if err := u.fulfiller.Deliver(ctx, tenant, sale); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("fulfillment failed for approved sale")
	}
	return nil
}

// cancel handles gateway-side expiry/cancellation while the sale is still
// open, and repaints the buyer's payment prompt with a restart affordance.
func (u *reconcileUC) cancel(ctx context.Context, tenant *model.Tenant, sale *model.Sale) error {
	won, err := u.sales.UpdateStatusIfPending(ctx, repository.NoTX, sale.ID, model.SaleStatusCancelled, -1)
	if err != nil {
		return err
	}
	if !won {
		metrics.IncSaleTransition("cancelled", "noop")
		return nil
	}
	metrics.IncSaleTransition("cancelled", "applied")

	m, err := u.messengers.For(tenant, sale.Transport)
	if err != nil {
		return nil
	}
	msg := adapter.OutMessage{
		Text:    u.tr.T("sale_expired"),
		Buttons: [][]adapter.InlineButton{{{Text: u.tr.T("start_over"), Data: string(model.ActionMainMenu)}}},
	}
	if _, err := u.executor.Deliver(ctx, m, sale.ChatID, sale.MessageID, msg); err != nil {
		logging.With(ctx, u.log).Debug().Err(err).Msg("expiry notice delivery failed")
	}
	return nil
}

// mapGatewayStatus folds gateway-native statuses into sale transitions.
func mapGatewayStatus(s string) model.SaleStatus {
	switch s {
	case "approved":
		return model.SaleStatusApproved
	case "cancelled", "expired", "rejected":
		return model.SaleStatusCancelled
	default:
		return model.SaleStatusPending
	}
}
