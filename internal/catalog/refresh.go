package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultRefreshInterval is used when a Refresher is given no interval.
const DefaultRefreshInterval = 10 * time.Minute

// Refresher periodically reloads a CachedSource so Airtable edits show up
// without waiting for entries to expire on read.
type Refresher struct {
	src         *CachedSource
	interval    time.Duration
	concurrency int
}

// NewRefresher creates a background refresher for src.
func NewRefresher(src *CachedSource, interval time.Duration, concurrency int) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{src: src, interval: interval, concurrency: concurrency}
}

// Run refreshes on every tick. It blocks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "catalog.refresher"))
	log.Info("starting catalog refresher", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("catalog refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx, log)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context, log *zap.Logger) {
	start := time.Now()
	if err := r.src.Reload(ctx, r.concurrency); err != nil {
		log.Warn("catalog: refresh failed, keeping cached catalog", zap.Error(err))
		return
	}
	log.Debug("catalog: refreshed", zap.Duration("elapsed", time.Since(start)))
}
