// File: internal/usecase/sweeper_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/i18n"
	"chatbot-commerce/internal/infra/metrics"
)

// Compile-time check
var _ SweeperUseCase = (*sweeperUC)(nil)

// SweeperUseCase is the scan-and-act core of the periodic lifecycle job.
// It tolerates running concurrently with live webhook processing: scans
// select already-expired records and every mutation is a narrow conditional
// update, so a second pass over the same records is a no-op.
type SweeperUseCase interface {
	// SweepPurchases expires overdue purchases, revokes group access and
	// notifies the buyers. Returns how many purchases were expired.
	SweepPurchases(ctx context.Context) (int, error)
	// SweepTenants deactivates tenants whose subscription or trial ran out.
	SweepTenants(ctx context.Context) (int, error)
	// NotifyExpiring warns buyers whose purchases expire within the window,
	// at most once per throttle period.
	NotifyExpiring(ctx context.Context) (int, error)
}

type SweeperOptions struct {
	NotifyWindow   time.Duration // how far ahead to warn
	NotifyThrottle time.Duration // min gap between warnings per purchase
	BatchLimit     int
}

type sweeperUC struct {
	tenants    repository.TenantRepository
	users      repository.UserRepository
	purchases  repository.PurchaseRepository
	products   repository.ProductRepository
	messengers MessengerProvider
	opts       SweeperOptions
	tr         *i18n.Translator
	log        *zerolog.Logger
}

func NewSweeperUseCase(tenants repository.TenantRepository, users repository.UserRepository, purchases repository.PurchaseRepository, products repository.ProductRepository, messengers MessengerProvider, opts SweeperOptions, tr *i18n.Translator, logger *zerolog.Logger) *sweeperUC {
	if opts.NotifyWindow <= 0 {
		opts.NotifyWindow = 5 * 24 * time.Hour
	}
	if opts.NotifyThrottle <= 0 {
		opts.NotifyThrottle = 23 * time.Hour
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 200
	}
	l := logger.With().Str("component", "SweeperUC").Logger()
	return &sweeperUC{
		tenants:    tenants,
		users:      users,
		purchases:  purchases,
		products:   products,
		messengers: messengers,
		opts:       opts,
		tr:         tr,
		log:        &l,
	}
}

func (u *sweeperUC) SweepPurchases(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { metrics.ObserveSweep("purchases", time.Since(started).Seconds()) }()

	due, err := u.purchases.ListExpired(ctx, repository.NoTX, time.Now(), u.opts.BatchLimit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if u.expireOne(ctx, p) {
			expired++
		}
	}
	if expired > 0 {
		metrics.AddPurchasesExpired(expired)
		u.log.Info().Int("count", expired).Msg("purchases expired")
	}
	return expired, nil
}

// expireOne revokes access for a single overdue purchase. Transport failures
// are logged and skipped; the conditional mark is what decides whether this
// pass counted.
func (u *sweeperUC) expireOne(ctx context.Context, p *model.Purchase) bool {
	user, err := u.users.FindByID(ctx, repository.NoTX, p.UserID)
	if err != nil {
		u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("sweep: buyer missing")
		return false
	}
	tenant, err := u.tenants.FindByID(ctx, repository.NoTX, user.TenantID)
	if err != nil {
		u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("sweep: tenant missing")
		return false
	}

	m, merr := u.messengers.For(tenant, user.Transport())

	// Revoke group membership first; ban+unban leaves the user free to
	// re-join after a future purchase.
	product, perr := u.products.FindByID(ctx, repository.NoTX, tenant.ID, p.ProductID)
	if perr == nil && product.IsTelegramGroupAccess && merr == nil && user.TelegramID != 0 {
		if err := m.BanMember(ctx, product.TelegramGroupID, user.TelegramID); err != nil {
			u.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("sweep: ban failed")
		} else if err := m.UnbanMember(ctx, product.TelegramGroupID, user.TelegramID); err != nil {
			u.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("sweep: unban failed")
		}
	}

	changed, err := u.purchases.MarkExpiredIfDue(ctx, repository.NoTX, p.ID, time.Now())
	if err != nil {
		u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("sweep: expire update failed")
		return false
	}
	if !changed {
		// another sweep pass got here first
		return false
	}

	if merr == nil {
		notice := adapter.OutMessage{Text: u.tr.T("subscription_expired_notice", p.ProductName)}
		if _, err := m.SendMessage(ctx, user.ChatID(), notice); err != nil {
			u.log.Debug().Err(err).Str("purchase_id", p.ID).Msg("sweep: expiry notice failed")
		}
	}

	u.refreshActiveMarker(ctx, user)
	return true
}

// refreshActiveMarker clears the aggregate "has active plan" flag once no
// approved subscription purchase remains.
func (u *sweeperUC) refreshActiveMarker(ctx context.Context, user *model.User) {
	remaining, err := u.purchases.ListByUser(ctx, repository.NoTX, user.ID)
	if err != nil {
		u.log.Error().Err(err).Str("user_id", user.ID).Msg("sweep: purchase list failed")
		return
	}
	now := time.Now()
	active := false
	for _, rp := range remaining {
		if rp.Type == model.ProductTypeSubscription && rp.Status == model.PurchaseStatusApproved && !rp.Expired(now) {
			active = true
			break
		}
	}
	if !active {
		if err := u.users.SetHasActiveSub(ctx, repository.NoTX, user.ID, false); err != nil {
			u.log.Error().Err(err).Str("user_id", user.ID).Msg("sweep: marker update failed")
		}
	}
}

func (u *sweeperUC) SweepTenants(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { metrics.ObserveSweep("tenants", time.Since(started).Seconds()) }()

	now := time.Now()
	due, err := u.tenants.ListExpired(ctx, repository.NoTX, now, u.opts.BatchLimit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range due {
		changed, err := u.tenants.UpdateStatusIfExpired(ctx, repository.NoTX, t.ID, now)
		if err != nil {
			u.log.Error().Err(err).Str("tenant_id", t.ID).Msg("sweep: tenant deactivation failed")
			continue
		}
		if changed {
			n++
			u.log.Info().Str("tenant_id", t.ID).Str("subdomain", t.Subdomain).Msg("tenant deactivated")
		}
	}
	if n > 0 {
		metrics.AddTenantsDeactivated(n)
	}
	return n, nil
}

func (u *sweeperUC) NotifyExpiring(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { metrics.ObserveSweep("notify", time.Since(started).Seconds()) }()

	now := time.Now()
	soon, err := u.purchases.ListExpiringWithin(ctx, repository.NoTX, now, u.opts.NotifyWindow, now.Add(-u.opts.NotifyThrottle), u.opts.BatchLimit)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, p := range soon {
		if p.ExpiresAt == nil {
			continue
		}
		user, err := u.users.FindByID(ctx, repository.NoTX, p.UserID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("notify: buyer lookup failed")
			}
			continue
		}
		tenant, err := u.tenants.FindByID(ctx, repository.NoTX, user.TenantID)
		if err != nil {
			continue
		}
		m, err := u.messengers.For(tenant, user.Transport())
		if err != nil {
			continue
		}

		days := int(time.Until(*p.ExpiresAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		msg := adapter.OutMessage{Text: u.tr.T("expiry_warning", p.ProductName, days)}
		if _, err := m.SendMessage(ctx, user.ChatID(), msg); err != nil {
			u.log.Debug().Err(err).Str("purchase_id", p.ID).Msg("notify: send failed")
			continue
		}
		if err := u.purchases.SetLastNotified(ctx, repository.NoTX, p.ID, now); err != nil {
			u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("notify: mark failed")
			continue
		}
		sent++
	}
	if sent > 0 {
		metrics.AddExpiryNotifications(sent)
		u.log.Info().Int("count", sent).Msg("expiry notifications sent")
	}
	return sent, nil
}
