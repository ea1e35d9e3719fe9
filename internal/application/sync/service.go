package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/domain/event"
	"github.com/sellerhub/backend/internal/domain/unified"
	"github.com/sellerhub/backend/internal/infrastructure/telemetry"
)

// budgetGuardRatio is the share of the batch budget after which no new
// connection is started; the remainder absorbs the in-flight connection.
const budgetGuardRatio = 0.8

// cursorUpdateRetries bounds the optimistic-lock retry loop when advancing
// the sync cursor races a concurrent credential rotation.
const cursorUpdateRetries = 3

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// CredentialSource hands out plaintext access credentials, refreshing them
// when needed. Implemented by the credential coordinator.
type CredentialSource interface {
	GetAccessCredential(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (string, error)
}

// Archiver persists raw inbound payloads for replay and audit. Archiving is
// best effort and must never block or fail event intake.
type Archiver interface {
	Archive(ctx context.Context, provider connection.ProviderCode, eventID string, payload []byte)
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// BatchSummary reports the outcome of one pull batch
type BatchSummary struct {
	// Candidates is how many connections were selected
	Candidates int `json:"candidates"`
	// Succeeded / Failed / Skipped partition the processed candidates
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	// TimedOut is true when the budget guard stopped the batch early;
	// unprocessed candidates are picked up by the next run
	TimedOut bool `json:"timed_out"`
	// OrdersUpserted / ProductsUpserted / ItemsSkipped aggregate item counts
	OrdersUpserted   int `json:"orders_upserted"`
	ProductsUpserted int `json:"products_upserted"`
	ItemsSkipped     int `json:"items_skipped"`
}

// PushOutcome classifies the handling of one inbound push event. It maps
// onto the HTTP response the webhook endpoint returns: acks for the first
// two, a permanent rejection for the third, a retryable error for the last.
type PushOutcome string

const (
	// PushOutcomeAccepted means the event was processed for the first time
	PushOutcomeAccepted PushOutcome = "ACCEPTED"
	// PushOutcomeAlreadyProcessed means the event was a duplicate delivery
	PushOutcomeAlreadyProcessed PushOutcome = "ALREADY_PROCESSED"
	// PushOutcomePermanentReject means the event can never be processed
	PushOutcomePermanentReject PushOutcome = "PERMANENT_REJECT"
	// PushOutcomeTransientRetry means the provider should redeliver later
	PushOutcomeTransientRetry PushOutcome = "TRANSIENT_RETRY"
)

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the sync orchestrator: it owns the scheduled pull path and the
// webhook push path, funneling both into the same mapping and upsert flow.
type Service struct {
	connections connection.Repository
	orders      unified.OrderRepository
	products    unified.ProductRepository
	events      connection.SyncEventRepository
	ledger      event.Ledger
	registry    connection.AdapterRegistry
	credentials CredentialSource
	archiver    Archiver
	logger      *zap.Logger

	metrics *telemetry.SyncMetrics

	batchSize       int
	batchBudget     time.Duration
	initialLookback time.Duration
}

// Config carries the orchestration knobs
type Config struct {
	// BatchSize is the maximum connections per pull batch
	BatchSize int
	// BatchBudget is the wall-clock budget of one pull batch
	BatchBudget time.Duration
	// InitialLookback is the delta window for never-synced connections
	InitialLookback time.Duration
}

// NewService creates a sync orchestrator. archiver may be nil.
func NewService(
	connections connection.Repository,
	orders unified.OrderRepository,
	products unified.ProductRepository,
	events connection.SyncEventRepository,
	ledger event.Ledger,
	registry connection.AdapterRegistry,
	credentials CredentialSource,
	archiver Archiver,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.BatchBudget <= 0 {
		cfg.BatchBudget = 5 * time.Minute
	}
	if cfg.InitialLookback <= 0 {
		cfg.InitialLookback = 30 * 24 * time.Hour
	}
	return &Service{
		connections:     connections,
		orders:          orders,
		products:        products,
		events:          events,
		ledger:          ledger,
		registry:        registry,
		credentials:     credentials,
		archiver:        archiver,
		logger:          logger,
		batchSize:       cfg.BatchSize,
		batchBudget:     cfg.BatchBudget,
		initialLookback: cfg.InitialLookback,
	}
}

// SetMetrics attaches sync metrics recording. Safe to leave unset.
func (s *Service) SetMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

// ---------------------------------------------------------------------------
// Pull path
// ---------------------------------------------------------------------------

// RunBatch selects up to BatchSize poll-based connections, least recently
// attempted first, and syncs each one. Failures are isolated per connection:
// one broken integration never blocks the rest of the batch.
func (s *Service) RunBatch(ctx context.Context, trigger connection.SyncTrigger) (*BatchSummary, error) {
	start := time.Now()
	guard := time.Duration(float64(s.batchBudget) * budgetGuardRatio)

	candidates, err := s.connections.ListSyncCandidates(ctx, s.pollProviders(), s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync candidates: %w", err)
	}

	summary := &BatchSummary{Candidates: len(candidates)}

	for i := range candidates {
		if ctx.Err() != nil {
			summary.TimedOut = true
			break
		}
		// Budget guard: leave headroom for the in-flight connection
		// rather than starting one that cannot finish.
		if time.Since(start) > guard {
			summary.TimedOut = true
			s.logger.Warn("sync batch stopped by budget guard",
				zap.Int("processed", i),
				zap.Int("remaining", len(candidates)-i))
			break
		}

		conn := candidates[i]
		counts, err := s.syncConnection(ctx, &conn, trigger)

		summary.OrdersUpserted += counts.orders
		summary.ProductsUpserted += counts.products
		summary.ItemsSkipped += counts.skipped

		switch {
		case err == nil:
			summary.Succeeded++
			s.recordSync(ctx, conn.Provider, trigger, telemetry.SyncResultSuccess)
		case errors.Is(err, connection.ErrNotConnected):
			summary.Skipped++
		default:
			summary.Failed++
			s.recordSync(ctx, conn.Provider, trigger, telemetry.SyncResultFailure)
			s.logger.Warn("connection sync failed",
				zap.String("connection_id", conn.ID.String()),
				zap.String("provider", string(conn.Provider)),
				zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordItems(ctx, string(conn.Provider), counts.orders, counts.products, counts.skipped)
		}
	}

	s.logger.Info("sync batch finished",
		zap.String("trigger", string(trigger)),
		zap.Int("candidates", summary.Candidates),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Bool("timed_out", summary.TimedOut),
		zap.Duration("elapsed", time.Since(start)))

	if s.metrics != nil {
		s.metrics.RecordBatch(ctx, string(trigger), time.Since(start), summary.TimedOut)
	}

	return summary, nil
}

func (s *Service) recordSync(ctx context.Context, provider connection.ProviderCode, trigger connection.SyncTrigger, result telemetry.SyncResult) {
	if s.metrics != nil {
		s.metrics.RecordConnectionSync(ctx, string(provider), string(trigger), result)
	}
}

// SyncOne runs the pull flow for a single connection, used by the manual
// re-sync endpoint.
func (s *Service) SyncOne(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) error {
	conn, err := s.connections.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return err
	}
	_, err = s.syncConnection(ctx, conn, connection.SyncTriggerManual)
	return err
}

// pollProviders returns the provider codes synced by pulling
func (s *Service) pollProviders() []connection.ProviderCode {
	var codes []connection.ProviderCode
	for _, adapter := range s.registry.List() {
		if meta := adapter.Metadata(); !meta.SupportsPush {
			codes = append(codes, meta.Code)
		}
	}
	return codes
}

type itemCounts struct {
	orders   int
	products int
	skipped  int
}

// syncConnection pulls one connection's delta window and upserts the results.
// The cursor only advances after the upsert batches have committed, so a
// failure re-syncs the same window on the next attempt.
func (s *Service) syncConnection(ctx context.Context, conn *connection.Connection, trigger connection.SyncTrigger) (itemCounts, error) {
	started := time.Now()

	// Stamp the attempt first: candidate selection orders by this column,
	// so even a failing connection rotates to the back of the queue.
	if err := s.connections.TouchAttempt(ctx, conn.ID, started); err != nil {
		return itemCounts{}, fmt.Errorf("failed to stamp sync attempt: %w", err)
	}

	adapter, err := s.registry.Get(conn.Provider)
	if err != nil {
		return itemCounts{}, err
	}

	since := started.Add(-s.initialLookback)
	if conn.LastSyncAt != nil {
		since = *conn.LastSyncAt
	}
	// The window's upper bound is captured before the fetch; anything
	// changing mid-fetch lands in the next window.
	until := started

	counts, syncErr := s.pullWindow(ctx, conn, adapter, since, until)

	outcome := connection.SyncOutcomeSucceeded
	errText := ""
	if syncErr != nil {
		outcome = connection.SyncOutcomeFailed
		errText = syncErr.Error()
		if errors.Is(syncErr, connection.ErrNotConnected) {
			outcome = connection.SyncOutcomeSkipped
		}
		s.recordFailure(ctx, conn, syncErr)
	} else if err := s.advanceCursor(ctx, conn.ID, until); err != nil {
		// The data is committed; only the cursor write failed. The next
		// run re-pulls the same window and converges via keyed upserts.
		s.logger.Warn("failed to advance sync cursor",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
	}

	s.appendEvent(ctx, &connection.SyncEvent{
		TenantID:         conn.TenantID,
		ConnectionID:     conn.ID,
		Provider:         conn.Provider,
		Trigger:          trigger,
		Outcome:          outcome,
		OrdersUpserted:   counts.orders,
		ProductsUpserted: counts.products,
		ItemsSkipped:     counts.skipped,
		Error:            errText,
		StartedAt:        started,
		FinishedAt:       time.Now(),
	})

	return counts, syncErr
}

// pullWindow fetches and upserts one delta window
func (s *Service) pullWindow(ctx context.Context, conn *connection.Connection, adapter connection.ProviderAdapter, since, until time.Time) (itemCounts, error) {
	token, err := s.credentials.GetAccessCredential(ctx, conn.TenantID, conn.Provider)
	if err != nil {
		return itemCounts{}, err
	}

	items, err := adapter.FetchDeltas(ctx, token, since, until)
	if err != nil {
		return itemCounts{}, fmt.Errorf("delta fetch failed: %w", err)
	}

	return s.upsertItems(ctx, conn, adapter, items)
}

// upsertItems maps raw items and writes them in keyed upsert batches.
// Unmappable items are counted and skipped, never fatal.
func (s *Service) upsertItems(ctx context.Context, conn *connection.Connection, adapter connection.ProviderAdapter, items []connection.RawItem) (itemCounts, error) {
	var counts itemCounts
	var orders []unified.Order
	var products []unified.Product

	for _, item := range items {
		switch item.Kind {
		case connection.ItemKindOrder:
			order, err := adapter.MapOrder(item)
			if err != nil || order == nil {
				counts.skipped++
				if err != nil {
					s.logger.Warn("skipping unmappable order",
						zap.String("connection_id", conn.ID.String()),
						zap.String("external_id", item.ExternalID),
						zap.Error(err))
				}
				continue
			}
			order.TenantID = conn.TenantID
			order.ConnectionID = conn.ID
			if err := order.Validate(); err != nil {
				counts.skipped++
				s.logger.Warn("skipping invalid order",
					zap.String("connection_id", conn.ID.String()),
					zap.String("external_id", item.ExternalID),
					zap.Error(err))
				continue
			}
			orders = append(orders, *order)
		case connection.ItemKindProduct:
			product, err := adapter.MapProduct(item)
			if err != nil || product == nil {
				counts.skipped++
				if err != nil {
					s.logger.Warn("skipping unmappable product",
						zap.String("connection_id", conn.ID.String()),
						zap.String("external_id", item.ExternalID),
						zap.Error(err))
				}
				continue
			}
			product.TenantID = conn.TenantID
			product.ConnectionID = conn.ID
			if err := product.Validate(); err != nil {
				counts.skipped++
				s.logger.Warn("skipping invalid product",
					zap.String("connection_id", conn.ID.String()),
					zap.String("external_id", item.ExternalID),
					zap.Error(err))
				continue
			}
			products = append(products, *product)
		default:
			counts.skipped++
		}
	}

	if err := s.orders.UpsertBatch(ctx, orders); err != nil {
		return counts, fmt.Errorf("order upsert batch failed: %w", err)
	}
	counts.orders = len(orders)

	if err := s.products.UpsertBatch(ctx, products); err != nil {
		return counts, fmt.Errorf("product upsert batch failed: %w", err)
	}
	counts.products = len(products)

	return counts, nil
}

// advanceCursor moves the delta cursor under the optimistic lock, re-reading
// on conflict so a concurrent credential rotation is never clobbered.
func (s *Service) advanceCursor(ctx context.Context, connectionID uuid.UUID, until time.Time) error {
	var lastErr error
	for attempt := 0; attempt < cursorUpdateRetries; attempt++ {
		fresh, err := s.connections.FindByID(ctx, connectionID)
		if err != nil {
			return err
		}
		fresh.AdvanceCursor(until)

		lastErr = s.connections.UpdateWithVersion(ctx, fresh, fresh.Version)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, connection.ErrVersionConflict) {
			return lastErr
		}
	}
	return lastErr
}

// recordFailure stores the failure reason on the connection. Authentication
// failures flip the connection into ERROR because only the tenant can fix
// them; everything else is left CONNECTED for the next attempt.
func (s *Service) recordFailure(ctx context.Context, conn *connection.Connection, syncErr error) {
	permanent := errors.Is(syncErr, connection.ErrProviderAuthFailed) ||
		errors.Is(syncErr, connection.ErrCredentialDecrypt) ||
		errors.Is(syncErr, connection.ErrNoRefreshToken)

	for attempt := 0; attempt < cursorUpdateRetries; attempt++ {
		fresh, err := s.connections.FindByID(ctx, conn.ID)
		if err != nil {
			return
		}
		if permanent {
			fresh.MarkError(syncErr.Error())
		} else {
			fresh.LastError = syncErr.Error()
		}

		err = s.connections.UpdateWithVersion(ctx, fresh, fresh.Version)
		if err == nil || !errors.Is(err, connection.ErrVersionConflict) {
			return
		}
	}
}

// appendEvent writes the audit record; failures are logged, never propagated
func (s *Service) appendEvent(ctx context.Context, evt *connection.SyncEvent) {
	if err := s.events.Append(ctx, evt); err != nil {
		s.logger.Warn("failed to append sync event",
			zap.String("connection_id", evt.ConnectionID.String()),
			zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Push path
// ---------------------------------------------------------------------------

// HandlePush processes one inbound webhook delivery end to end: signature
// verification, structural parsing, connection routing, exactly-once claim,
// then the shared mapping and upsert flow.
func (s *Service) HandlePush(ctx context.Context, provider connection.ProviderCode, headers http.Header, body []byte) (PushOutcome, error) {
	outcome, err := s.handlePush(ctx, provider, headers, body)
	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(ctx, string(provider), string(outcome))
	}
	return outcome, err
}

func (s *Service) handlePush(ctx context.Context, provider connection.ProviderCode, headers http.Header, body []byte) (PushOutcome, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return PushOutcomePermanentReject, err
	}
	push, ok := adapter.(connection.PushAdapter)
	if !ok || !adapter.Metadata().SupportsPush {
		return PushOutcomePermanentReject, fmt.Errorf("provider %s does not deliver webhooks", provider)
	}

	// Authenticity first: nothing from an unverified body is parsed or logged.
	if !push.VerifyWebhook(headers, body) {
		return PushOutcomePermanentReject, connection.ErrInvalidSignature
	}

	evt, err := push.ParseWebhookEvent(headers, body)
	if err != nil {
		return PushOutcomePermanentReject, err
	}

	conn, err := s.connections.FindByProviderAccount(ctx, provider, evt.ExternalAccountID)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			// No connection wants this event; acking would be wrong, the
			// account may connect later, but retrying is pointless too.
			return PushOutcomePermanentReject, fmt.Errorf("no connection for %s account %s", provider, evt.ExternalAccountID)
		}
		return PushOutcomeTransientRetry, err
	}
	if !conn.IsUsable() {
		return PushOutcomePermanentReject, connection.ErrNotConnected
	}

	accepted, err := s.ledger.Claim(ctx, provider, evt.EventID)
	if err != nil {
		// Without the ledger there is no dedup guarantee; make the
		// provider redeliver rather than risk double-processing.
		return PushOutcomeTransientRetry, err
	}
	if !accepted {
		return PushOutcomeAlreadyProcessed, nil
	}

	if s.archiver != nil {
		s.archiver.Archive(ctx, provider, evt.EventID, body)
	}

	started := time.Now()
	counts, err := s.upsertItems(ctx, conn, adapter, evt.Items)
	if err != nil {
		// Roll the claim back so the provider's redelivery is not
		// swallowed as a duplicate.
		if relErr := s.ledger.Release(ctx, provider, evt.EventID); relErr != nil {
			s.logger.Error("failed to release dedup claim after processing failure",
				zap.String("provider", string(provider)),
				zap.String("event_id", evt.EventID),
				zap.Error(relErr))
		}
		s.appendEvent(ctx, &connection.SyncEvent{
			TenantID:     conn.TenantID,
			ConnectionID: conn.ID,
			Provider:     provider,
			Trigger:      connection.SyncTriggerPush,
			Outcome:      connection.SyncOutcomeFailed,
			ItemsSkipped: counts.skipped,
			Error:        err.Error(),
			StartedAt:    started,
			FinishedAt:   time.Now(),
		})
		return PushOutcomeTransientRetry, err
	}

	s.appendEvent(ctx, &connection.SyncEvent{
		TenantID:         conn.TenantID,
		ConnectionID:     conn.ID,
		Provider:         provider,
		Trigger:          connection.SyncTriggerPush,
		Outcome:          connection.SyncOutcomeSucceeded,
		OrdersUpserted:   counts.orders,
		ProductsUpserted: counts.products,
		ItemsSkipped:     counts.skipped,
		StartedAt:        started,
		FinishedAt:       time.Now(),
	})

	return PushOutcomeAccepted, nil
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// History returns recent sync events for a tenant's connection
func (s *Service) History(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode, limit int) ([]connection.SyncEvent, error) {
	conn, err := s.connections.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.events.ListByConnection(ctx, conn.ID, limit)
}
