package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sellerhub/backend/internal/infrastructure/telemetry"
)

func newTestMeter(t *testing.T) *telemetry.MeterProvider {
	t.Helper()
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:     false,
		ServiceName: "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mp
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewSyncMetrics(nil, nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestSyncMetrics_RecordingDoesNotPanic(t *testing.T) {
	mp := newTestMeter(t)
	sm, err := telemetry.NewSyncMetrics(mp.Meter("sync"), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordConnectionSync(ctx, "ETSY", "SCHEDULED", telemetry.SyncResultSuccess)
	sm.RecordConnectionSync(ctx, "EBAY", "MANUAL", telemetry.SyncResultFailure)
	sm.RecordItems(ctx, "SHOPIFY", 3, 2, 1)
	sm.RecordItems(ctx, "SHOPIFY", 0, 0, 0)
	sm.RecordBatch(ctx, "SCHEDULED", 2*time.Second, false)
	sm.RecordWebhookEvent(ctx, "SHOPIFY", "ALREADY_PROCESSED")
	sm.RecordCredentialRefresh(ctx, "ETSY", telemetry.RefreshResultRotated)
}
