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

const notifyLockKey = "lock:notify"

// NotifyWorker warns users whose subscription is about to lapse. The
// per-purchase notification throttle lives in the use case; this worker only
// paces the passes.
type NotifyWorker struct {
	interval time.Duration
	sweeper  usecase.SweeperUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewNotifyWorker(interval time.Duration, sweeper usecase.SweeperUseCase, locker redis.Locker, logger *zerolog.Logger) *NotifyWorker {
	l := logger.With().Str("component", "NotifyWorker").Logger()
	return &NotifyWorker{
		interval: interval,
		sweeper:  sweeper,
		locker:   locker,
		log:      &l,
	}
}

func (w *NotifyWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting notify worker")
	// Run once on startup, then on every tick
	w.runPass(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notify worker")
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *NotifyWorker) runPass(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, notifyLockKey, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return
		}
		w.log.Warn().Err(err).Msg("notify lock unavailable, notifying anyway")
	} else {
		defer func() { _ = w.locker.Unlock(ctx, notifyLockKey, token) }()
	}

	n, err := w.sweeper.NotifyExpiring(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("expiry notification error")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expiry warnings sent")
	}
}
