package connection

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncTrigger
// ---------------------------------------------------------------------------

// SyncTrigger identifies what initiated a sync attempt
type SyncTrigger string

const (
	// SyncTriggerScheduled marks runs started by the poll scheduler
	SyncTriggerScheduled SyncTrigger = "SCHEDULED"
	// SyncTriggerPush marks runs started by an inbound webhook
	SyncTriggerPush SyncTrigger = "PUSH"
	// SyncTriggerManual marks runs started by an operator or tenant action
	SyncTriggerManual SyncTrigger = "MANUAL"
)

// IsValid returns true if the trigger is valid
func (t SyncTrigger) IsValid() bool {
	switch t {
	case SyncTriggerScheduled, SyncTriggerPush, SyncTriggerManual:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// SyncOutcome
// ---------------------------------------------------------------------------

// SyncOutcome is the terminal result of one sync attempt
type SyncOutcome string

const (
	// SyncOutcomeSucceeded marks a fully successful attempt
	SyncOutcomeSucceeded SyncOutcome = "SUCCEEDED"
	// SyncOutcomeFailed marks an attempt that could not complete
	SyncOutcomeFailed SyncOutcome = "FAILED"
	// SyncOutcomeSkipped marks a connection that was not eligible
	SyncOutcomeSkipped SyncOutcome = "SKIPPED"
)

// SyncEvent is an append-only log entry recording one orchestration attempt.
// Rows are never mutated after completion and are purged after the configured
// retention window.
type SyncEvent struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ConnectionID uuid.UUID
	Provider     ProviderCode
	Trigger      SyncTrigger
	Outcome      SyncOutcome
	// OrdersUpserted / ProductsUpserted count unified rows written
	OrdersUpserted   int
	ProductsUpserted int
	// ItemsSkipped counts unmappable or malformed items
	ItemsSkipped int
	// Error holds the failure reason when Outcome is FAILED
	Error string
	// StartedAt / FinishedAt bound the attempt
	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
}

// SyncEventRepository persists the append-only sync event log
type SyncEventRepository interface {
	// Append writes a completed sync event record
	Append(ctx context.Context, event *SyncEvent) error

	// ListByConnection lists recent events for one connection, newest first
	ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]SyncEvent, error)

	// PurgeOlderThan deletes events finished before the cutoff and returns
	// the number of rows removed
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
