// Package event holds the durable event-deduplication ledger port.
// Inbound push handlers claim each (provider, event ID) pair before mutating
// domain data; the store's uniqueness constraint linearizes concurrent claims.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// ErrLedgerUnavailable indicates the ledger store could not be reached;
// callers should signal the provider to retry delivery.
var ErrLedgerUnavailable = errors.New("event: dedup ledger unavailable")

// Ledger records which inbound events have already been processed.
type Ledger interface {
	// Claim attempts to record (provider, eventID) as processed. The first
	// claimant gets accepted=true; every later claimant for the same key gets
	// accepted=false. Correct under concurrent delivery across instances
	// because uniqueness is enforced at the store level.
	Claim(ctx context.Context, provider connection.ProviderCode, eventID string) (accepted bool, err error)

	// Release drops a claim so a later redelivery can succeed. Used to roll
	// back a claim whose event could not be processed.
	Release(ctx context.Context, provider connection.ProviderCode, eventID string) error

	// PurgeOlderThan removes entries claimed before the cutoff. Safe because
	// providers do not redeliver indefinitely.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
