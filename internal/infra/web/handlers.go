// File: internal/infra/web/handlers.go
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/logging"
	"chatbot-commerce/internal/infra/metrics"
	"chatbot-commerce/internal/infra/redis"
	"chatbot-commerce/internal/infra/transport/telegram"
	"chatbot-commerce/internal/infra/transport/whatsapp"
	"chatbot-commerce/internal/usecase"
)

const maxWebhookBody = 1 << 20

// callbackAcker is the optional messenger capability of clearing a button
// tap's loading state.
type callbackAcker interface {
	AnswerCallback(ctx context.Context, callbackID string) error
}

// handleTransportWebhook is the messaging ingress. It answers 200 for every
// well-formed request, including ones it drops: a transport that sees errors
// retries the same update in a loop, which is worse than losing one turn.
func (s *Server) handleTransportWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() { metrics.ObserveWebhookDuration("transport", time.Since(started).Seconds()) }()

	ctx := r.Context()
	l := logging.With(ctx, s.log)

	tenant, err := s.tenants.FindBySubdomain(ctx, repository.NoTX, chi.URLParam(r, "subdomain"))
	if err != nil {
		l.Warn().Err(err).Str("subdomain", chi.URLParam(r, "subdomain")).Msg("webhook for unknown tenant")
		metrics.IncWebhook("transport", "unknown_tenant")
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx = logging.WithTenantID(ctx, tenant.ID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhook("transport", "bad_body")
		w.WriteHeader(http.StatusOK)
		return
	}

	var turn usecase.Turn
	var callbackID string
	var ok bool
	switch model.Transport(chi.URLParam(r, "transport")) {
	case model.TransportTelegram:
		turn, callbackID, ok = telegram.ParseTurn(body)
	case model.TransportWhatsApp:
		turn, ok = whatsapp.ParseTurn(body)
	default:
		metrics.IncWebhook("transport", "unknown_transport")
		w.WriteHeader(http.StatusOK)
		return
	}
	if !ok {
		metrics.IncWebhook("transport", "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	allowed, err := s.limiter.Allow(ctx, redis.ChatKey(tenant.ID, turn.ChatID), s.cfg.Web.RateLimit, time.Minute)
	if err != nil {
		// limiter outage must not take the bot down
		logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter unavailable, letting turn through")
		allowed = true
	}
	if !allowed {
		metrics.IncWebhook("transport", "rate_limited")
		w.WriteHeader(http.StatusOK)
		return
	}

	if callbackID != "" {
		if m, err := s.messengers.For(tenant, turn.Transport); err == nil {
			if acker, ok := m.(callbackAcker); ok {
				_ = acker.AnswerCallback(ctx, callbackID)
			}
		}
	}

	if err := s.router.HandleTurn(ctx, tenant, turn); err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("turn handling failed")
		metrics.IncWebhook("transport", "error")
		w.WriteHeader(http.StatusOK)
		return
	}
	metrics.IncWebhook("transport", "ok")
	w.WriteHeader(http.StatusOK)
}

// handlePaymentWebhook is the payment ingress. Unlike the messaging side, a
// bad signature answers 401 so the gateway knows verification failed; every
// verified-but-unprocessable notification still answers 200 because the
// gateway would otherwise retry a payment we already rejected on purpose.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer func() { metrics.ObserveWebhookDuration("payment", time.Since(started).Seconds()) }()

	ctx := r.Context()

	tenant, err := s.tenants.FindBySubdomain(ctx, repository.NoTX, chi.URLParam(r, "subdomain"))
	if err != nil {
		metrics.IncWebhook("payment", "unknown_tenant")
		http.NotFound(w, r)
		return
	}
	ctx = logging.WithTenantID(ctx, tenant.ID)

	n := usecase.WebhookNotification{
		PaymentID:       r.URL.Query().Get("data.id"),
		RequestID:       r.Header.Get("x-request-id"),
		SignatureHeader: r.Header.Get("x-signature"),
	}
	if n.PaymentID == "" {
		// some notification modes carry the id in the body instead
		var payload struct {
			Data struct {
				ID json.Number `json:"id"`
			} `json:"data"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&payload); err == nil {
			n.PaymentID = payload.Data.ID.String()
		}
	}

	err = s.reconcile.Process(ctx, tenant, chi.URLParam(r, "gateway"), n)
	switch {
	case err == nil:
		metrics.IncWebhook("payment", "ok")
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrBadSignature):
		metrics.IncWebhook("payment", "bad_signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		logging.With(ctx, s.log).Error().Err(err).Msg("payment webhook not applied")
		metrics.IncWebhook("payment", "error")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Sweep-Secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.Sweeper.Secret)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	l := logging.With(ctx, s.log)

	purchases, err := s.sweeper.SweepPurchases(ctx)
	if err != nil {
		l.Error().Err(err).Msg("purchase sweep failed")
	}
	tenants, err := s.sweeper.SweepTenants(ctx)
	if err != nil {
		l.Error().Err(err).Msg("tenant sweep failed")
	}
	notified, err := s.sweeper.NotifyExpiring(ctx)
	if err != nil {
		l.Error().Err(err).Msg("expiry notification pass failed")
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"purchases_expired":   purchases,
		"tenants_deactivated": tenants,
		"users_notified":      notified,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.cfg.Ops.APIKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.cfg.Ops.APIKey)) != 1 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if tenantID := r.URL.Query().Get("tenant"); tenantID != "" {
		out, err := s.stats.Tenant(ctx, tenantID)
		if err != nil {
			http.Error(w, "Failed to get tenant stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	out, err := s.stats.Platform(ctx)
	if err != nil {
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
