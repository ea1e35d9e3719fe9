package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/event"
)

// Janitor periodically purges expired dedup claims and aged-out sync events.
// Dedup rows must outlive the longest plausible redelivery window; sync
// events are kept for the configured audit retention.
type Janitor struct {
	ledger   event.Ledger
	events   connection.SyncEventRepository
	logger   *zap.Logger
	interval time.Duration
	dedupTTL time.Duration
	eventTTL time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewJanitor creates a retention cleanup loop
func NewJanitor(ledger event.Ledger, events connection.SyncEventRepository, logger *zap.Logger, interval, dedupTTL, eventTTL time.Duration) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if dedupTTL <= 0 {
		dedupTTL = 72 * time.Hour
	}
	if eventTTL <= 0 {
		eventTTL = 30 * 24 * time.Hour
	}
	return &Janitor{
		ledger:   ledger,
		events:   events,
		logger:   logger,
		interval: interval,
		dedupTTL: dedupTTL,
		eventTTL: eventTTL,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the cleanup loop in its own goroutine
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// Stop signals the loop to exit and waits for it
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// Sweep runs one purge pass; exported so operators can trigger it directly
func (j *Janitor) Sweep(ctx context.Context) {
	j.sweep(ctx)
}

func (j *Janitor) sweep(ctx context.Context) {
	now := time.Now()

	purged, err := j.ledger.PurgeOlderThan(ctx, now.Add(-j.dedupTTL))
	if err != nil {
		j.logger.Warn("dedup ledger purge failed", zap.Error(err))
	} else if purged > 0 {
		j.logger.Info("purged dedup claims", zap.Int64("rows", purged))
	}

	purged, err = j.events.PurgeOlderThan(ctx, now.Add(-j.eventTTL))
	if err != nil {
		j.logger.Warn("sync event purge failed", zap.Error(err))
	} else if purged > 0 {
		j.logger.Info("purged sync events", zap.Int64("rows", purged))
	}
}
