package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// DedupRecordModel is the durable dedup-ledger row. The unique
// (provider, event_id) index is what linearizes concurrent claims: the first
// insert wins, every later one observes a uniqueness violation.
type DedupRecordModel struct {
	ID        uuid.UUID               `gorm:"type:uuid;primary_key"`
	Provider  connection.ProviderCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_dedup_provider_event,priority:1"`
	EventID   string                  `gorm:"type:varchar(255);not null;uniqueIndex:idx_dedup_provider_event,priority:2"`
	ClaimedAt time.Time               `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (DedupRecordModel) TableName() string {
	return "dedup_records"
}

// SyncEventModel is the append-only persistence model for connection.SyncEvent.
type SyncEventModel struct {
	ID               uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	ConnectionID     uuid.UUID               `gorm:"type:uuid;not null;index:idx_sync_events_connection"`
	Provider         connection.ProviderCode `gorm:"type:varchar(20);not null"`
	Trigger          connection.SyncTrigger  `gorm:"type:varchar(20);not null"`
	Outcome          connection.SyncOutcome  `gorm:"type:varchar(20);not null"`
	OrdersUpserted   int                     `gorm:"not null;default:0"`
	ProductsUpserted int                     `gorm:"not null;default:0"`
	ItemsSkipped     int                     `gorm:"not null;default:0"`
	Error            string                  `gorm:"type:text"`
	StartedAt        time.Time               `gorm:"not null"`
	FinishedAt       time.Time               `gorm:"not null;index"`
	CreatedAt        time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncEventModel) TableName() string {
	return "sync_events"
}

// ToDomain converts the persistence model to a domain SyncEvent.
func (m *SyncEventModel) ToDomain() *connection.SyncEvent {
	return &connection.SyncEvent{
		ID:               m.ID,
		TenantID:         m.TenantID,
		ConnectionID:     m.ConnectionID,
		Provider:         m.Provider,
		Trigger:          m.Trigger,
		Outcome:          m.Outcome,
		OrdersUpserted:   m.OrdersUpserted,
		ProductsUpserted: m.ProductsUpserted,
		ItemsSkipped:     m.ItemsSkipped,
		Error:            m.Error,
		StartedAt:        m.StartedAt,
		FinishedAt:       m.FinishedAt,
		CreatedAt:        m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncEvent.
func (m *SyncEventModel) FromDomain(e *connection.SyncEvent) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.ConnectionID = e.ConnectionID
	m.Provider = e.Provider
	m.Trigger = e.Trigger
	m.Outcome = e.Outcome
	m.OrdersUpserted = e.OrdersUpserted
	m.ProductsUpserted = e.ProductsUpserted
	m.ItemsSkipped = e.ItemsSkipped
	m.Error = e.Error
	m.StartedAt = e.StartedAt
	m.FinishedAt = e.FinishedAt
	m.CreatedAt = e.CreatedAt
}
