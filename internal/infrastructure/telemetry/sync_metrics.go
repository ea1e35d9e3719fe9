// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics tracks the synchronization engine: per-connection pull
// outcomes, item upserts, webhook dedup behavior and credential
// refresh activity.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	connectionSyncTotal    *Counter
	itemsUpsertedTotal     *Counter
	itemsSkippedTotal      *Counter
	batchDuration          *Histogram
	webhookEventTotal      *Counter
	credentialRefreshTotal *Counter
}

// SyncResult labels the outcome of one connection sync.
type SyncResult string

const (
	SyncResultSuccess SyncResult = "success"
	SyncResultFailure SyncResult = "failure"
)

// RefreshResult labels the outcome of one credential refresh.
type RefreshResult string

const (
	RefreshResultRotated   RefreshResult = "rotated"
	RefreshResultCoalesced RefreshResult = "coalesced"
	RefreshResultFailed    RefreshResult = "failed"
)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(meter metric.Meter, logger *zap.Logger) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{
		meter:  meter,
		logger: logger,
	}

	var err error
	sm.connectionSyncTotal, err = NewCounter(
		meter,
		"sync_connection_total",
		"Total connection sync attempts",
		"{sync}",
	)
	if err != nil {
		return nil, err
	}

	sm.itemsUpsertedTotal, err = NewCounter(
		meter,
		"sync_items_upserted_total",
		"Total unified items written",
		"{item}",
	)
	if err != nil {
		return nil, err
	}

	sm.itemsSkippedTotal, err = NewCounter(
		meter,
		"sync_items_skipped_total",
		"Total provider items skipped as malformed or invalid",
		"{item}",
	)
	if err != nil {
		return nil, err
	}

	sm.batchDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "sync_batch_duration_seconds",
		Description: "Wall-clock duration of pull batches in seconds",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	if err != nil {
		return nil, err
	}

	sm.webhookEventTotal, err = NewCounter(
		meter,
		"webhook_event_total",
		"Total inbound webhook events by outcome",
		"{event}",
	)
	if err != nil {
		return nil, err
	}

	sm.credentialRefreshTotal, err = NewCounter(
		meter,
		"credential_refresh_total",
		"Total credential refresh attempts by result",
		"{refresh}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordConnectionSync records one connection sync attempt.
func (sm *SyncMetrics) RecordConnectionSync(ctx context.Context, provider, trigger string, result SyncResult) {
	sm.connectionSyncTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrTrigger.String(trigger),
		AttrResult.String(string(result)),
	)
}

// RecordItems records the item counts of one sync or push.
func (sm *SyncMetrics) RecordItems(ctx context.Context, provider string, orders, products, skipped int) {
	if orders > 0 {
		sm.itemsUpsertedTotal.Add(ctx, int64(orders),
			AttrProvider.String(provider),
			AttrItemType.String("order"),
		)
	}
	if products > 0 {
		sm.itemsUpsertedTotal.Add(ctx, int64(products),
			AttrProvider.String(provider),
			AttrItemType.String("product"),
		)
	}
	if skipped > 0 {
		sm.itemsSkippedTotal.Add(ctx, int64(skipped),
			AttrProvider.String(provider),
		)
	}
}

// RecordBatch records the duration of one pull batch.
func (sm *SyncMetrics) RecordBatch(ctx context.Context, trigger string, duration time.Duration, timedOut bool) {
	sm.batchDuration.RecordDuration(ctx, duration,
		AttrTrigger.String(trigger),
		AttrTimedOut.Bool(timedOut),
	)
}

// RecordWebhookEvent records one inbound webhook by outcome. Duplicate
// deliveries show up here under the already-processed outcome, which is
// the dedup hit rate.
func (sm *SyncMetrics) RecordWebhookEvent(ctx context.Context, provider, outcome string) {
	sm.webhookEventTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrOutcome.String(outcome),
	)
}

// RecordCredentialRefresh records one refresh attempt.
func (sm *SyncMetrics) RecordCredentialRefresh(ctx context.Context, provider string, result RefreshResult) {
	sm.credentialRefreshTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrResult.String(string(result)),
	)
}
