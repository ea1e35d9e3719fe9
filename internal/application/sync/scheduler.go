package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// Scheduler drives the pull path on a fixed cadence. One batch runs at a
// time; a batch still in flight when the ticker fires is simply skipped,
// never stacked.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a poll scheduler
func NewScheduler(service *Service, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduling loop in its own goroutine
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the loop to exit and waits for the in-flight batch to finish
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped", zap.Error(ctx.Err()))
			return
		case <-s.stop:
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			batchCtx, cancel := context.WithTimeout(ctx, s.service.batchBudget)
			if _, err := s.service.RunBatch(batchCtx, connection.SyncTriggerScheduled); err != nil {
				s.logger.Error("scheduled sync batch failed", zap.Error(err))
			}
			cancel()
		}
	}
}
