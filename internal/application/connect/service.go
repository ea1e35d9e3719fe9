package connect

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/infrastructure/providers"
)

// defaultStateTTL bounds how long a tenant has between the authorize redirect
// and the provider callback.
const defaultStateTTL = 10 * time.Minute

// Service drives the connection lifecycle: the OAuth authorization handshake,
// explicit disconnection and the tenant-facing connection listing. Plaintext
// credentials exist only inside CompleteAuthorization's stack frame; the
// cipher seals them before anything touches the repository.
type Service struct {
	connections connection.Repository
	registry    connection.AdapterRegistry
	cipher      connection.CredentialCipher
	states      connection.StateStore
	logger      *zap.Logger
	stateTTL    time.Duration
}

// NewService creates a connect service
func NewService(
	connections connection.Repository,
	registry connection.AdapterRegistry,
	cipher connection.CredentialCipher,
	states connection.StateStore,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		connections: connections,
		registry:    registry,
		cipher:      cipher,
		states:      states,
		logger:      logger,
		stateTTL:    defaultStateTTL,
	}
}

// ConnectionView is the credential-free projection served to tenants
type ConnectionView struct {
	ID                  uuid.UUID                 `json:"id"`
	Provider            connection.ProviderCode   `json:"provider"`
	Status              connection.Status         `json:"status"`
	ExternalAccountID   string                    `json:"external_account_id,omitempty"`
	ExternalAccountName string                    `json:"external_account_name,omitempty"`
	ExpiresAt           *time.Time                `json:"expires_at,omitempty"`
	LastSyncAt          *time.Time                `json:"last_sync_at,omitempty"`
	LastAttemptedAt     *time.Time                `json:"last_attempted_at,omitempty"`
	LastError           string                    `json:"last_error,omitempty"`
	RotationPolicy      connection.RotationPolicy `json:"rotation_policy"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

func (s *Service) view(conn *connection.Connection) ConnectionView {
	v := ConnectionView{
		ID:                  conn.ID,
		Provider:            conn.Provider,
		Status:              conn.Status,
		ExternalAccountID:   conn.ExternalAccountID,
		ExternalAccountName: conn.ExternalAccountName,
		ExpiresAt:           conn.ExpiresAt,
		LastSyncAt:          conn.LastSyncAt,
		LastAttemptedAt:     conn.LastAttemptedAt,
		LastError:           conn.LastError,
		CreatedAt:           conn.CreatedAt,
		UpdatedAt:           conn.UpdatedAt,
	}
	if adapter, err := s.registry.Get(conn.Provider); err == nil {
		v.RotationPolicy = adapter.Metadata().RotationPolicy
	}
	return v
}

// ---------------------------------------------------------------------------
// Authorization handshake
// ---------------------------------------------------------------------------

// BeginAuthorization starts the OAuth handshake. It creates (or reuses) the
// pending connection row, generates the state token and PKCE pair, parks the
// verifier server-side and returns the provider authorization URL.
func (s *Service) BeginAuthorization(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (string, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return "", err
	}

	existing, err := s.connections.FindByTenantAndProvider(ctx, tenantID, provider)
	switch {
	case err == nil:
		if existing.Status == connection.StatusConnected {
			return "", connection.ErrAlreadyConnected
		}
		// PENDING, DISCONNECTED and ERROR all restart the handshake.
	case errors.Is(err, connection.ErrConnectionNotFound):
		conn, err := connection.NewConnection(tenantID, provider)
		if err != nil {
			return "", err
		}
		if err := s.connections.Save(ctx, conn); err != nil {
			return "", err
		}
	default:
		return "", err
	}

	state, err := randomToken()
	if err != nil {
		return "", err
	}

	// Every handshake carries PKCE; adapters that do not use it ignore
	// the challenge.
	verifier, challenge, err := providers.GeneratePKCE()
	if err != nil {
		return "", err
	}

	authURL, err := adapter.BuildAuthorizationURL(state, challenge)
	if err != nil {
		return "", err
	}

	hs := &connection.HandshakeState{
		TenantID:     tenantID,
		Provider:     provider,
		PKCEVerifier: verifier,
		CreatedAt:    time.Now(),
	}
	if err := s.states.Put(ctx, state, hs, s.stateTTL); err != nil {
		return "", fmt.Errorf("failed to park handshake state: %w", err)
	}

	s.logger.Info("authorization handshake started",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", string(provider)))

	return authURL, nil
}

// CompleteAuthorization finishes the handshake from the provider callback.
// The state token is consumed before anything else: a replayed callback fails
// with ErrStateNotFound instead of re-running the code exchange.
func (s *Service) CompleteAuthorization(ctx context.Context, state, code string) (*ConnectionView, error) {
	hs, err := s.states.Take(ctx, state)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(hs.Provider)
	if err != nil {
		return nil, err
	}

	tokens, err := adapter.ExchangeCode(ctx, code, hs.PKCEVerifier)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	conn, err := s.connections.FindByTenantAndProvider(ctx, hs.TenantID, hs.Provider)
	if err != nil {
		return nil, err
	}

	encAccess, err := s.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access credential: %w", err)
	}
	encRefresh := ""
	if tokens.RefreshToken != "" {
		encRefresh, err = s.cipher.Encrypt(tokens.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to seal refresh credential: %w", err)
		}
	}

	conn.ApplyTokenSet(encAccess, encRefresh, tokens.ExpiresAt)
	conn.MarkConnected(tokens.ExternalAccountID, tokens.ExternalAccountName)

	if err := s.connections.Update(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("connection established",
		zap.String("tenant_id", hs.TenantID.String()),
		zap.String("provider", string(hs.Provider)),
		zap.String("external_account_id", tokens.ExternalAccountID))

	v := s.view(conn)
	return &v, nil
}

// ---------------------------------------------------------------------------
// Disconnect
// ---------------------------------------------------------------------------

// Disconnect revokes the credential on the provider side best-effort, then
// transitions the connection to DISCONNECTED and drops the stored blobs.
// Unified data is kept: only the link and its credentials go away.
func (s *Service) Disconnect(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) error {
	conn, err := s.connections.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return err
	}
	if conn.Status == connection.StatusDisconnected {
		return nil
	}

	if conn.AccessCredential != "" {
		if adapter, aerr := s.registry.Get(provider); aerr == nil {
			if plaintext, derr := s.cipher.Decrypt(conn.AccessCredential); derr == nil {
				if rerr := adapter.Revoke(ctx, plaintext); rerr != nil {
					s.logger.Warn("provider-side revocation failed",
						zap.String("tenant_id", tenantID.String()),
						zap.String("provider", string(provider)),
						zap.Error(rerr))
				}
			} else {
				s.logger.Warn("could not decrypt credential for revocation",
					zap.String("tenant_id", tenantID.String()),
					zap.String("provider", string(provider)))
			}
		}
	}

	conn.MarkDisconnected()
	conn.AccessCredential = ""
	conn.RefreshCredential = ""
	conn.ExpiresAt = nil

	if err := s.connections.Update(ctx, conn); err != nil {
		return err
	}

	s.logger.Info("connection disconnected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("provider", string(provider)))
	return nil
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

// List returns all of the tenant's connections without credential material
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]ConnectionView, error) {
	conns, err := s.connections.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	views := make([]ConnectionView, 0, len(conns))
	for i := range conns {
		views = append(views, s.view(&conns[i]))
	}
	return views, nil
}

// Get returns one connection view for a tenant/provider pair
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (*ConnectionView, error) {
	conn, err := s.connections.FindByTenantAndProvider(ctx, tenantID, provider)
	if err != nil {
		return nil, err
	}
	v := s.view(conn)
	return &v, nil
}

// randomToken returns a URL-safe random state token
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
