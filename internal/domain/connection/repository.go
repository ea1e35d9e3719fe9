package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists Connection aggregates. The store is the only
// coordination substrate between instances, so the conditional update
// semantics of UpdateWithVersion are load-bearing: they implement the
// cross-instance refresh lock.
type Repository interface {
	// FindByID finds a connection by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)

	// FindByTenantAndProvider finds the unique connection for a
	// (tenant, provider) pair
	FindByTenantAndProvider(ctx context.Context, tenantID uuid.UUID, provider ProviderCode) (*Connection, error)

	// FindByProviderAccount finds a connection by the provider-side account
	// identifier; used to route inbound webhooks to their connection
	FindByProviderAccount(ctx context.Context, provider ProviderCode, externalAccountID string) (*Connection, error)

	// ListByTenant lists all connections for a tenant
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Connection, error)

	// ListSyncCandidates returns up to limit CONNECTED connections for the
	// given poll-based providers, preferring the least recently attempted so
	// persistently failing connections do not starve others
	ListSyncCandidates(ctx context.Context, providers []ProviderCode, limit int) ([]Connection, error)

	// ListBatch pages over all connections ordered by ID; used by the
	// key-rotation utility
	ListBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]Connection, error)

	// Save inserts a new connection. Fails when the (tenant, provider) pair
	// already exists.
	Save(ctx context.Context, conn *Connection) error

	// Update writes the connection unconditionally and bumps Version
	Update(ctx context.Context, conn *Connection) error

	// UpdateWithVersion performs a conditional update that only succeeds when
	// the stored Version still equals expectedVersion; on success the row's
	// Version is incremented and conn reflects the new value. Returns
	// ErrVersionConflict when another process won the race.
	UpdateWithVersion(ctx context.Context, conn *Connection, expectedVersion int) error

	// TouchAttempt stamps last_attempted_at without disturbing Version
	TouchAttempt(ctx context.Context, id uuid.UUID, at time.Time) error
}
