package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/infrastructure/telemetry"
)

const (
	defaultRefreshTimeout = 15 * time.Second
	defaultLockWait       = 10 * time.Second
	defaultPollInterval   = 100 * time.Millisecond
	maxPollInterval       = 2 * time.Second
	defaultPersistRetries = 3
)

// Service is the refresh coordinator. It hands out plaintext access
// credentials, transparently refreshing expired ones. Two layers keep
// concurrent refreshes of the same connection from racing:
//
//   - an in-process single-flight group collapses concurrent callers onto
//     one refresh per (tenant, provider) key
//   - the store's conditional version update is claimed BEFORE the provider
//     call, so at most one instance ever has a refresh in flight per
//     connection; the loser polls until the winner's fresh credential lands
//
// Plaintext credentials only ever live on the stack; they are never logged
// and never persisted.
type Service struct {
	repo     connection.Repository
	registry connection.AdapterRegistry
	cipher   connection.CredentialCipher
	logger   *zap.Logger
	metrics  *telemetry.SyncMetrics

	group *flightGroup

	refreshTimeout time.Duration
	lockWait       time.Duration
	pollInterval   time.Duration
	persistRetries int
}

// Option configures the Service
type Option func(*Service)

// WithRefreshTimeout bounds one provider refresh call
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) { s.refreshTimeout = d }
}

// WithLockWait bounds how long a caller waits for a concurrent refresh
func WithLockWait(d time.Duration) Option {
	return func(s *Service) { s.lockWait = d }
}

// WithPollInterval sets the initial store-poll backoff while waiting out a
// refresh owned by another instance
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithPersistRetries sets how often persisting a rotated credential is retried
func WithPersistRetries(n int) Option {
	return func(s *Service) { s.persistRetries = n }
}

// NewService creates a refresh coordinator
func NewService(
	repo connection.Repository,
	registry connection.AdapterRegistry,
	cipher connection.CredentialCipher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:           repo,
		registry:       registry,
		cipher:         cipher,
		logger:         logger,
		group:          newFlightGroup(),
		refreshTimeout: defaultRefreshTimeout,
		lockWait:       defaultLockWait,
		pollInterval:   defaultPollInterval,
		persistRetries: defaultPersistRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMetrics attaches sync metrics; safe to leave unset.
func (s *Service) SetMetrics(m *telemetry.SyncMetrics) {
	s.metrics = m
}

func (s *Service) recordRefresh(ctx context.Context, provider connection.ProviderCode, result telemetry.RefreshResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCredentialRefresh(ctx, string(provider), result)
}

// GetAccessCredential returns a usable plaintext access credential for the
// tenant's connection to the provider, refreshing it first when it is within
// the provider's refresh buffer of expiry.
func (s *Service) GetAccessCredential(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (string, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return "", err
	}
	buffer := adapter.Metadata().RefreshBuffer

	conn, err := s.loadUsable(ctx, tenantID, provider)
	if err != nil {
		return "", err
	}

	if !conn.NeedsRefresh(buffer, time.Now()) {
		return s.decryptAccess(conn)
	}

	// Expired or expiring: collapse concurrent callers onto one refresh.
	key := tenantID.String() + "/" + string(provider)
	return s.group.do(key, func() (string, error) {
		return s.refresh(ctx, tenantID, provider, adapter)
	})
}

// loadUsable fetches the connection and enforces the usability gate
func (s *Service) loadUsable(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (*connection.Connection, error) {
	conn, err := s.repo.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			return nil, connection.ErrNotConnected
		}
		return nil, err
	}
	if !conn.IsUsable() {
		return nil, connection.ErrNotConnected
	}
	return conn, nil
}

// decryptAccess opens the stored access credential blob
func (s *Service) decryptAccess(conn *connection.Connection) (string, error) {
	plaintext, err := s.cipher.Decrypt(conn.AccessCredential)
	if err != nil {
		return "", fmt.Errorf("%w: access credential for connection %s", connection.ErrCredentialDecrypt, conn.ID)
	}
	return plaintext, nil
}

// refresh drives the refresh loop: try to rotate, and when another instance
// holds the version lock, poll the store until its fresh credential appears
// or the lock wait expires.
func (s *Service) refresh(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode, adapter connection.ProviderAdapter) (string, error) {
	deadline := time.Now().Add(s.lockWait)
	backoff := s.pollInterval

	for {
		token, settled, err := s.tryRefresh(ctx, tenantID, provider, adapter)
		if settled {
			return token, err
		}

		// Lost the version race: another process is rotating this
		// credential right now.
		if !time.Now().Before(deadline) {
			// One final attempt to take over before giving up, in case
			// the other process died mid-refresh.
			token, settled, err = s.tryRefresh(ctx, tenantID, provider, adapter)
			if settled {
				return token, err
			}
			return "", connection.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxPollInterval {
			backoff = maxPollInterval
		}
	}
}

// tryRefresh performs one refresh attempt against the current stored state.
// settled=false means the version-conditional claim lost to a concurrent
// writer and the caller should poll and retry.
func (s *Service) tryRefresh(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode, adapter connection.ProviderAdapter) (token string, settled bool, err error) {
	conn, err := s.loadUsable(ctx, tenantID, provider)
	if err != nil {
		return "", true, err
	}

	// Re-check against fresh state: a concurrent refresh may already have
	// produced a usable credential.
	if !conn.NeedsRefresh(adapter.Metadata().RefreshBuffer, time.Now()) {
		s.recordRefresh(ctx, provider, telemetry.RefreshResultCoalesced)
		token, err := s.decryptAccess(conn)
		return token, true, err
	}

	// Claim refresh ownership BEFORE touching the provider. The conditional
	// version bump is the cross-instance lock: two processes that read the
	// same version race here, exactly one wins, and only the winner may
	// present the refresh credential to the provider. For dual-rotation
	// providers a second presentation would consume an already-rotated
	// token and kill a healthy connection.
	if err := s.repo.UpdateWithVersion(ctx, conn, conn.Version); err != nil {
		if errors.Is(err, connection.ErrVersionConflict) {
			return "", false, nil
		}
		return "", true, fmt.Errorf("failed to claim refresh ownership: %w", err)
	}
	ownedVersion := conn.Version

	if conn.RefreshCredential == "" {
		s.markError(ctx, conn, connection.ErrNoRefreshToken.Error())
		return "", true, connection.ErrNoRefreshToken
	}
	refreshPlain, err := s.cipher.Decrypt(conn.RefreshCredential)
	if err != nil {
		s.markError(ctx, conn, "refresh credential cannot be decrypted")
		return "", true, fmt.Errorf("%w: refresh credential for connection %s", connection.ErrCredentialDecrypt, conn.ID)
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	tokens, err := adapter.Refresh(refreshCtx, refreshPlain)
	cancel()
	if err != nil {
		s.recordRefresh(ctx, provider, telemetry.RefreshResultFailed)
		if isTransient(err) {
			// The provider may recover; leave the connection intact.
			return "", true, fmt.Errorf("%w: %v", connection.ErrRefreshFailed, err)
		}
		// The refresh credential is dead; only re-authorization helps.
		s.markError(ctx, conn, fmt.Sprintf("refresh rejected by provider: %v", err))
		return "", true, fmt.Errorf("%w: %v", connection.ErrRefreshFailed, err)
	}

	encAccess, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", true, fmt.Errorf("failed to encrypt rotated access credential: %w", err)
	}
	encRefresh := ""
	if tokens.RefreshToken != "" {
		encRefresh, err = s.cipher.Encrypt(tokens.RefreshToken)
		if err != nil {
			return "", true, fmt.Errorf("failed to encrypt rotated refresh credential: %w", err)
		}
	}

	conn.ApplyTokenSet(encAccess, encRefresh, tokens.ExpiresAt)
	conn.LastError = ""
	s.recordRefresh(ctx, provider, telemetry.RefreshResultRotated)

	if err := s.persistRotated(ctx, conn, ownedVersion); err != nil {
		if errors.Is(err, connection.ErrVersionConflict) {
			return "", false, nil
		}
		// The provider already rotated; for dual-rotation providers the old
		// refresh token is dead and only this process holds the new one.
		// Serve the caller and surface the persistence failure loudly.
		s.logger.Error("rotated credential could not be persisted, serving unpersisted token",
			zap.String("connection_id", conn.ID.String()),
			zap.String("provider", string(provider)),
			zap.Error(err))
		s.markError(ctx, conn, fmt.Sprintf("credential rotated but not persisted: %v", err))
		return tokens.AccessToken, true, nil
	}

	return tokens.AccessToken, true, nil
}

// persistRotated writes the rotated credential with bounded retries. Version
// conflicts are returned immediately; they mean another writer won.
func (s *Service) persistRotated(ctx context.Context, conn *connection.Connection, expectedVersion int) error {
	var lastErr error
	for attempt := 0; attempt < s.persistRetries; attempt++ {
		err := s.repo.UpdateWithVersion(ctx, conn, expectedVersion)
		if err == nil || errors.Is(err, connection.ErrVersionConflict) {
			return err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(s.pollInterval):
		}
	}
	return lastErr
}

// markError transitions the connection into ERROR. The write is conditional
// on the version the caller holds, so a stale failure can never clobber a
// concurrent winner's freshly persisted credentials.
func (s *Service) markError(ctx context.Context, conn *connection.Connection, reason string) {
	version := conn.Version
	conn.MarkError(reason)
	err := s.repo.UpdateWithVersion(ctx, conn, version)
	if errors.Is(err, connection.ErrVersionConflict) {
		s.logger.Debug("skipped error transition, connection changed concurrently",
			zap.String("connection_id", conn.ID.String()))
		return
	}
	if err != nil {
		s.logger.Warn("failed to persist connection error state",
			zap.String("connection_id", conn.ID.String()),
			zap.Error(err))
	}
}

// isTransient reports whether a refresh failure is worth retrying later
// without invalidating the connection
func isTransient(err error) bool {
	return errors.Is(err, connection.ErrProviderUnavailable) ||
		errors.Is(err, connection.ErrProviderRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
