package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"invoicebot/internal/metrics"
	"invoicebot/internal/services"
)

type sweeper interface {
	ScanOnce(ctx context.Context) (services.SweepResult, error)
}

// startReminderScheduler sweeps once immediately and then every interval
// until ctx is done. Ticks that arrive while a sweep runs are skipped.
func startReminderScheduler(ctx context.Context, svc sweeper, interval, timeout time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if svc == nil || interval <= 0 {
		close(done)
		return done
	}
	logger = logger.With(zap.String("op", "reminder_scheduler"))

	busy := make(chan struct{}, 1)
	run := func() {
		select {
		case busy <- struct{}{}:
		default:
			metrics.SweepSkipped()
			logger.Warn("previous sweep still running; tick skipped")
			return
		}
		go func() {
			defer func() { <-busy }()
			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res, err := svc.ScanOnce(runCtx)
			switch {
			case errors.Is(err, services.ErrSweepInProgress):
				metrics.SweepSkipped()
				logger.Info("sweep already running elsewhere; tick skipped")
			case err != nil:
				logger.Error("reminder sweep failed", zap.Error(err))
			case len(res.Sent) > 0:
				logger.Info("reminders sent", zap.Int("count", len(res.Sent)))
			}
		}()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		run()
		for {
			select {
			case <-ctx.Done():
				// wait for an in-flight sweep to flush its ledger
				busy <- struct{}{}
				return
			case <-ticker.C:
				run()
			}
		}
	}()
	return done
}
