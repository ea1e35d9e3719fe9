package connection

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status represents the lifecycle status of a Connection
type Status string

const (
	// StatusPending indicates the authorization handshake has started but not completed
	StatusPending Status = "PENDING"
	// StatusConnected indicates the connection holds valid credentials
	StatusConnected Status = "CONNECTED"
	// StatusDisconnected indicates the tenant explicitly disconnected
	StatusDisconnected Status = "DISCONNECTED"
	// StatusError indicates the connection requires re-authorization
	StatusError Status = "ERROR"
)

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConnected, StatusDisconnected, StatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Connection Aggregate
// ---------------------------------------------------------------------------

// Connection is one tenant's link to one external commerce provider.
// Credentials are stored as opaque encrypted blobs produced by the
// CredentialCipher port; plaintext never appears on this aggregate.
// Version is the concurrency token used for optimistic locking.
type Connection struct {
	// ID is the unique identifier of the connection
	ID uuid.UUID
	// TenantID is the tenant owning this connection
	TenantID uuid.UUID
	// Provider identifies the external platform
	Provider ProviderCode
	// Status is the lifecycle status
	Status Status
	// AccessCredential is the encrypted access credential blob
	AccessCredential string
	// RefreshCredential is the encrypted refresh credential blob
	// (empty for providers that never rotate)
	RefreshCredential string
	// ExpiresAt is when the access credential expires (nil = never)
	ExpiresAt *time.Time
	// ExternalAccountID is the account identifier on the provider side
	ExternalAccountID string
	// ExternalAccountName is the human-readable account/shop name
	ExternalAccountName string
	// LastSyncAt is the cursor: the upper bound of the last successful delta window
	LastSyncAt *time.Time
	// LastAttemptedAt is when a sync was last attempted (successful or not)
	LastAttemptedAt *time.Time
	// LastError is the most recent sync or refresh error (cleared on success)
	LastError string
	// Version is the optimistic-lock concurrency token
	Version int
	// CreatedAt is when the connection was created
	CreatedAt time.Time
	// UpdatedAt is when the connection was last modified
	UpdatedAt time.Time
}

// NewConnection creates a pending connection for a tenant/provider pair
func NewConnection(tenantID uuid.UUID, provider ProviderCode) (*Connection, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !provider.IsValid() {
		return nil, ErrInvalidProvider
	}
	now := time.Now()
	return &Connection{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Provider:  provider,
		Status:    StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NeedsRefresh reports whether the access credential must be refreshed
// before use. A connection without an expiry never needs a refresh.
// The buffer absorbs clock skew and request latency and is provider-specific.
func (c *Connection) NeedsRefresh(buffer time.Duration, now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.Add(-buffer).After(now)
}

// IsUsable returns true if the connection may serve credential requests
func (c *Connection) IsUsable() bool {
	return c.Status == StatusConnected
}

// ApplyTokenSet stores freshly obtained (already encrypted) credentials.
// An empty refreshCredential keeps the previously stored one, which is the
// behavior required for single-rotation providers.
func (c *Connection) ApplyTokenSet(accessCredential, refreshCredential string, expiresAt *time.Time) {
	c.AccessCredential = accessCredential
	if refreshCredential != "" {
		c.RefreshCredential = refreshCredential
	}
	c.ExpiresAt = expiresAt
	c.UpdatedAt = time.Now()
}

// MarkConnected transitions the connection to CONNECTED after a successful
// authorization handshake and records the external account identity.
func (c *Connection) MarkConnected(externalAccountID, externalAccountName string) {
	c.Status = StatusConnected
	c.ExternalAccountID = externalAccountID
	if externalAccountName != "" {
		c.ExternalAccountName = externalAccountName
	}
	c.LastError = ""
	c.UpdatedAt = time.Now()
}

// MarkError transitions the connection to ERROR. Further credential requests
// fail fast until the tenant re-authorizes.
func (c *Connection) MarkError(reason string) {
	c.Status = StatusError
	c.LastError = reason
	c.UpdatedAt = time.Now()
}

// MarkDisconnected transitions the connection to DISCONNECTED by tenant action
func (c *Connection) MarkDisconnected() {
	c.Status = StatusDisconnected
	c.UpdatedAt = time.Now()
}

// RecordSyncAttempt stamps the attempt timestamp. Candidate selection orders by
// this column so persistently failing connections back off naturally.
func (c *Connection) RecordSyncAttempt(at time.Time) {
	c.LastAttemptedAt = &at
	c.UpdatedAt = time.Now()
}

// AdvanceCursor moves the delta cursor forward after a committed upsert batch
func (c *Connection) AdvanceCursor(to time.Time) {
	c.LastSyncAt = &to
	c.LastError = ""
	c.UpdatedAt = time.Now()
}
