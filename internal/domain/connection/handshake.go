package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HandshakeState is the server-side half of an in-flight OAuth authorization.
// The state token handed to the provider is the lookup key; the PKCE verifier
// never leaves the backend.
type HandshakeState struct {
	// TenantID is the tenant that initiated the handshake
	TenantID uuid.UUID `json:"tenant_id"`
	// Provider is the platform being authorized
	Provider ProviderCode `json:"provider"`
	// PKCEVerifier is the plaintext verifier matching the challenge sent
	// in the authorization URL
	PKCEVerifier string `json:"pkce_verifier"`
	// CreatedAt is when the handshake started
	CreatedAt time.Time `json:"created_at"`
}

// StateStore holds in-flight handshake state between the authorize redirect
// and the provider callback. Entries are single-use: Take consumes the entry
// so a replayed callback cannot complete the handshake twice.
type StateStore interface {
	// Put stores handshake state under the given state token with a TTL
	Put(ctx context.Context, state string, hs *HandshakeState, ttl time.Duration) error

	// Take retrieves and removes the handshake state for a token.
	// Returns ErrStateNotFound when the token is unknown or expired.
	Take(ctx context.Context, state string) (*HandshakeState, error)
}
