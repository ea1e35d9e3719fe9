package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/infrastructure/persistence/models"
)

// GormConnectionRepository implements connection.Repository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenantAndProvider finds the unique connection for a (tenant, provider) pair
func (r *GormConnectionRepository) FindByTenantAndProvider(ctx context.Context, tenantID uuid.UUID, provider connection.ProviderCode) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND provider = ?", tenantID, provider).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProviderAccount finds a connection by the provider-side account identifier
func (r *GormConnectionRepository) FindByProviderAccount(ctx context.Context, provider connection.ProviderCode, externalAccountID string) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND external_account_id = ?", provider, externalAccountID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByTenant lists all connections for a tenant
func (r *GormConnectionRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]connection.Connection, error) {
	var connectionModels []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("provider ASC").
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}
	return toDomainConnections(connectionModels), nil
}

// ListSyncCandidates returns up to limit CONNECTED connections for the given
// providers, least recently attempted first so failing connections back off
// naturally instead of starving the rest of the batch.
func (r *GormConnectionRepository) ListSyncCandidates(ctx context.Context, providers []connection.ProviderCode, limit int) ([]connection.Connection, error) {
	var connectionModels []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND provider IN ?", connection.StatusConnected, providers).
		Order("last_attempted_at ASC NULLS FIRST").
		Limit(limit).
		Find(&connectionModels).Error; err != nil {
		return nil, err
	}
	return toDomainConnections(connectionModels), nil
}

// ListBatch pages over all connections ordered by ID
func (r *GormConnectionRepository) ListBatch(ctx context.Context, afterID uuid.UUID, limit int) ([]connection.Connection, error) {
	var connectionModels []models.ConnectionModel
	query := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	if err := query.Find(&connectionModels).Error; err != nil {
		return nil, err
	}
	return toDomainConnections(connectionModels), nil
}

// Save inserts a new connection; the unique (tenant_id, provider) index
// rejects a second connection for the same pair.
func (r *GormConnectionRepository) Save(ctx context.Context, conn *connection.Connection) error {
	model := models.ConnectionModelFromDomain(conn)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return connection.ErrAlreadyConnected
		}
		return err
	}
	return nil
}

// Update writes the connection unconditionally and bumps Version
func (r *GormConnectionRepository) Update(ctx context.Context, conn *connection.Connection) error {
	conn.Version++
	conn.UpdatedAt = time.Now()
	model := models.ConnectionModelFromDomain(conn)

	result := r.db.WithContext(ctx).
		Model(&models.ConnectionModel{}).
		Where("id = ?", conn.ID).
		Updates(connectionColumns(model))
	if result.Error != nil {
		conn.Version--
		return result.Error
	}
	if result.RowsAffected == 0 {
		conn.Version--
		return connection.ErrConnectionNotFound
	}
	return nil
}

// UpdateWithVersion performs the optimistic-lock conditional update: it only
// succeeds when the stored version still equals expectedVersion. This is the
// cross-instance mutual exclusion primitive for credential refreshes.
func (r *GormConnectionRepository) UpdateWithVersion(ctx context.Context, conn *connection.Connection, expectedVersion int) error {
	conn.Version = expectedVersion + 1
	conn.UpdatedAt = time.Now()
	model := models.ConnectionModelFromDomain(conn)

	result := r.db.WithContext(ctx).
		Model(&models.ConnectionModel{}).
		Where("id = ? AND version = ?", conn.ID, expectedVersion).
		Updates(connectionColumns(model))
	if result.Error != nil {
		conn.Version = expectedVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		conn.Version = expectedVersion
		return connection.ErrVersionConflict
	}
	return nil
}

// TouchAttempt stamps last_attempted_at without disturbing the version token,
// so a sync attempt never invalidates a concurrent refresh lock.
func (r *GormConnectionRepository) TouchAttempt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ConnectionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_attempted_at": at,
			"updated_at":        time.Now(),
		}).Error
}

// connectionColumns builds the full mutable column set for an update. A map
// is used so zero values (cleared errors, nil expiry) are written too.
func connectionColumns(m *models.ConnectionModel) map[string]any {
	return map[string]any{
		"status":                m.Status,
		"access_credential":     m.AccessCredential,
		"refresh_credential":    m.RefreshCredential,
		"expires_at":            m.ExpiresAt,
		"external_account_id":   m.ExternalAccountID,
		"external_account_name": m.ExternalAccountName,
		"last_sync_at":          m.LastSyncAt,
		"last_attempted_at":     m.LastAttemptedAt,
		"last_error":            m.LastError,
		"version":               m.Version,
		"updated_at":            m.UpdatedAt,
	}
}

func toDomainConnections(connectionModels []models.ConnectionModel) []connection.Connection {
	connections := make([]connection.Connection, len(connectionModels))
	for i, model := range connectionModels {
		connections[i] = *model.ToDomain()
	}
	return connections
}

// Ensure GormConnectionRepository implements connection.Repository
var _ connection.Repository = (*GormConnectionRepository)(nil)
