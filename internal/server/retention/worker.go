// Package retention runs the periodic purge of expired files.
package retention

import (
	"context"
	"time"

	"github.com/pockethour/image-sentinel/internal/logging"
)

// Sweeper purges records older than window and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context, window time.Duration) (int, error)
}

// RetentionWorker calls Sweep on a fixed interval.
type RetentionWorker struct {
	sweeper  Sweeper
	window   time.Duration
	interval time.Duration
	logger   logging.Logger
}

// NewRetentionWorker returns a worker that keeps records for window and
// sweeps every interval. A non-positive interval means daily.
func NewRetentionWorker(sweeper Sweeper, window, interval time.Duration, logger logging.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionWorker{
		sweeper:  sweeper,
		window:   window,
		interval: interval,
		logger:   logger.With("module", "retention"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done. It
// always returns nil so it can share an errgroup with the HTTP server.
func (w *RetentionWorker) Run(ctx context.Context) error {
	if w.sweeper == nil || w.window <= 0 {
		w.logger.Info(ctx, "retention worker disabled", "window", w.window.String())
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info(ctx, "retention worker started", "window", w.window.String(), "interval", w.interval.String())
	w.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "retention worker stopped")
			return nil
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *RetentionWorker) cleanup(ctx context.Context) {
	deleted, err := w.sweeper.Sweep(ctx, w.window)
	if err != nil {
		w.logger.Error(ctx, "retention sweep failed", "deleted", deleted, "error", err)
		return
	}
	if deleted > 0 {
		w.logger.Info(ctx, "retention sweep completed", "deleted", deleted)
	}
}
