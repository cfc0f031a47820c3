// File: internal/infra/sched/sweep_worker.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/infra/redis"
	"chatbot-commerce/internal/usecase"
)

const sweepLockKey = "lock:sweep"

// SweepWorker periodically expires due purchases and deactivates lapsed
// tenants. A redis lock keeps concurrent replicas from sweeping the same
// batch; the conditional updates underneath make a lost lock harmless
// anyway.
type SweepWorker struct {
	interval time.Duration
	sweeper  usecase.SweeperUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewSweepWorker(interval time.Duration, sweeper usecase.SweeperUseCase, locker redis.Locker, logger *zerolog.Logger) *SweepWorker {
	l := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		sweeper:  sweeper,
		locker:   locker,
		log:      &l,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *SweepWorker) runPass(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			w.log.Debug().Msg("sweep already running elsewhere")
			return
		}
		w.log.Warn().Err(err).Msg("sweep lock unavailable, sweeping anyway")
	} else {
		defer func() { _ = w.locker.Unlock(ctx, sweepLockKey, token) }()
	}

	purchases, err := w.sweeper.SweepPurchases(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("purchase sweep error")
	}
	if purchases > 0 {
		w.log.Info().Int("count", purchases).Msg("purchases expired")
	}

	tenants, err := w.sweeper.SweepTenants(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("tenant sweep error")
	}
	if tenants > 0 {
		w.log.Info().Int("count", tenants).Msg("tenants deactivated")
	}
}
