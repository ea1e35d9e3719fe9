package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sellerhub/backend/internal/domain/connection"
	"github.com/sellerhub/backend/internal/infrastructure/persistence/models"
)

// GormSyncEventRepository implements connection.SyncEventRepository using GORM
type GormSyncEventRepository struct {
	db *gorm.DB
}

// NewGormSyncEventRepository creates a new GormSyncEventRepository
func NewGormSyncEventRepository(db *gorm.DB) *GormSyncEventRepository {
	return &GormSyncEventRepository{db: db}
}

// Append writes a completed sync event record. Records are append-only.
func (r *GormSyncEventRepository) Append(ctx context.Context, e *connection.SyncEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var model models.SyncEventModel
	model.FromDomain(e)
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListByConnection lists recent events for one connection, newest first
func (r *GormSyncEventRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]connection.SyncEvent, error) {
	var eventModels []models.SyncEventModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]connection.SyncEvent, len(eventModels))
	for i, model := range eventModels {
		events[i] = *model.ToDomain()
	}
	return events, nil
}

// PurgeOlderThan deletes events finished before the cutoff
func (r *GormSyncEventRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("finished_at < ?", cutoff).
		Delete(&models.SyncEventModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormSyncEventRepository implements connection.SyncEventRepository
var _ connection.SyncEventRepository = (*GormSyncEventRepository)(nil)
