package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// ConnectionModel is the persistence model for the Connection aggregate.
// The unique (tenant_id, provider) index enforces the one-connection-per-pair
// invariant at the store level; Version is the optimistic-lock token.
type ConnectionModel struct {
	ID                  uuid.UUID               `gorm:"type:uuid;primary_key"`
	TenantID            uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_connections_tenant_provider,priority:1"`
	Provider            connection.ProviderCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_connections_tenant_provider,priority:2;index:idx_connections_provider_account,priority:1"`
	Status              connection.Status       `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	AccessCredential    string                  `gorm:"type:text"`
	RefreshCredential   string                  `gorm:"type:text"`
	ExpiresAt           *time.Time
	ExternalAccountID   string     `gorm:"type:varchar(100);index:idx_connections_provider_account,priority:2"`
	ExternalAccountName string     `gorm:"type:varchar(255)"`
	LastSyncAt          *time.Time
	LastAttemptedAt     *time.Time `gorm:"index"`
	LastError           string     `gorm:"type:text"`
	Version             int        `gorm:"not null;default:1"`
	CreatedAt           time.Time  `gorm:"not null"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ConnectionModel) TableName() string {
	return "connections"
}

// ToDomain converts the persistence model to a domain Connection aggregate.
func (m *ConnectionModel) ToDomain() *connection.Connection {
	return &connection.Connection{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		Provider:            m.Provider,
		Status:              m.Status,
		AccessCredential:    m.AccessCredential,
		RefreshCredential:   m.RefreshCredential,
		ExpiresAt:           m.ExpiresAt,
		ExternalAccountID:   m.ExternalAccountID,
		ExternalAccountName: m.ExternalAccountName,
		LastSyncAt:          m.LastSyncAt,
		LastAttemptedAt:     m.LastAttemptedAt,
		LastError:           m.LastError,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Connection.
func (m *ConnectionModel) FromDomain(c *connection.Connection) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.Provider = c.Provider
	m.Status = c.Status
	m.AccessCredential = c.AccessCredential
	m.RefreshCredential = c.RefreshCredential
	m.ExpiresAt = c.ExpiresAt
	m.ExternalAccountID = c.ExternalAccountID
	m.ExternalAccountName = c.ExternalAccountName
	m.LastSyncAt = c.LastSyncAt
	m.LastAttemptedAt = c.LastAttemptedAt
	m.LastError = c.LastError
	m.Version = c.Version
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// ConnectionModelFromDomain creates a new persistence model from a domain Connection.
func ConnectionModelFromDomain(c *connection.Connection) *ConnectionModel {
	m := &ConnectionModel{}
	m.FromDomain(c)
	return m
}
