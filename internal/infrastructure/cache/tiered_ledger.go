package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/event"
)

// DedupCache is the fast-path lookup in front of the durable ledger
type DedupCache interface {
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	Remember(ctx context.Context, provider, eventID string) error
	Forget(ctx context.Context, provider, eventID string) error
}

// TieredLedger layers a shared cache over the durable dedup ledger. A cache
// hit short-circuits the database insert; a cache miss or any cache error
// falls through to the durable ledger, which remains the source of truth.
type TieredLedger struct {
	cache   DedupCache
	durable event.Ledger
	logger  *zap.Logger
}

// NewTieredLedger creates a ledger with a cache fast path. The cache may be
// nil, in which case every claim goes straight to the durable ledger.
func NewTieredLedger(cache DedupCache, durable event.Ledger, logger *zap.Logger) *TieredLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredLedger{
		cache:   cache,
		durable: durable,
		logger:  logger,
	}
}

// Claim attempts to record (provider, eventID) as processed. Cache failures
// are logged and ignored so a degraded cache never blocks event intake.
func (l *TieredLedger) Claim(ctx context.Context, provider connection.ProviderCode, eventID string) (bool, error) {
	if l.cache != nil {
		seen, err := l.cache.Seen(ctx, string(provider), eventID)
		if err != nil {
			l.logger.Warn("dedup cache lookup failed, falling through to store",
				zap.String("provider", string(provider)),
				zap.Error(err))
		} else if seen {
			return false, nil
		}
	}

	accepted, err := l.durable.Claim(ctx, provider, eventID)
	if err != nil {
		return false, err
	}

	if l.cache != nil {
		// Populate the cache on both outcomes: a duplicate means the key
		// is durably present but the cache entry expired or was lost.
		if cacheErr := l.cache.Remember(ctx, string(provider), eventID); cacheErr != nil {
			l.logger.Warn("dedup cache write failed",
				zap.String("provider", string(provider)),
				zap.Error(cacheErr))
		}
	}

	return accepted, nil
}

// Release drops the claim from both tiers. The durable ledger is released
// first: a stale cache entry is only an optimization hazard, a stale durable
// row would suppress the redelivery forever.
func (l *TieredLedger) Release(ctx context.Context, provider connection.ProviderCode, eventID string) error {
	if err := l.durable.Release(ctx, provider, eventID); err != nil {
		return err
	}
	if l.cache != nil {
		if err := l.cache.Forget(ctx, string(provider), eventID); err != nil {
			l.logger.Warn("dedup cache release failed",
				zap.String("provider", string(provider)),
				zap.Error(err))
		}
	}
	return nil
}

// PurgeOlderThan delegates to the durable ledger; cache entries expire via TTL
func (l *TieredLedger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return l.durable.PurgeOlderThan(ctx, cutoff)
}

// Ensure TieredLedger implements event.Ledger
var _ event.Ledger = (*TieredLedger)(nil)
