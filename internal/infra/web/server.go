// File: internal/infra/web/server.go
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatbot-commerce/internal/config"
	"chatbot-commerce/internal/domain/ports/repository"
	"chatbot-commerce/internal/infra/logging"
	"chatbot-commerce/internal/infra/redis"
	"chatbot-commerce/internal/usecase"
)

// Server is the single HTTP surface of the platform: transport webhooks in,
// payment webhooks in, the sweep trigger, and the ops API.
type Server struct {
	router    usecase.RouterUseCase
	reconcile usecase.ReconcileUseCase
	sweeper   usecase.SweeperUseCase
	stats     usecase.StatsUseCase
	tenants   repository.TenantRepository

	messengers usecase.MessengerProvider
	limiter    *redis.RateLimiter
	auth       *AuthManager
	cfg        *config.Config
	log        *zerolog.Logger

	srv *http.Server
}

func NewServer(
	router usecase.RouterUseCase,
	reconcile usecase.ReconcileUseCase,
	sweeper usecase.SweeperUseCase,
	stats usecase.StatsUseCase,
	tenants repository.TenantRepository,
	messengers usecase.MessengerProvider,
	limiter *redis.RateLimiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		router:     router,
		reconcile:  reconcile,
		sweeper:    sweeper,
		stats:      stats,
		tenants:    tenants,
		messengers: messengers,
		limiter:    limiter,
		auth:       NewAuthManager(cfg.Ops.JWTSecret, !cfg.Runtime.Dev, cfg.Ops.SessionTTL),
		cfg:        cfg,
		log:        &l,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/t/{subdomain}", func(r chi.Router) {
		r.Post("/webhook/{transport}", s.handleTransportWebhook)
		r.Post("/api/webhook/{gateway}", s.handlePaymentWebhook)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Post("/sweep", s.handleSweep)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.With(s.opsAuth).Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Web.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Web.Port).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ===== middleware =====

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		l := logging.With(r.Context(), s.log)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

func (s *Server) opsAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Ops.JWTSecret == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
