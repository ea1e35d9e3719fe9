package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sellerhub/backend/internal/domain/unified"
	"github.com/sellerhub/backend/internal/infrastructure/persistence/models"
)

// unifiedOrderUpdateColumns are the columns rewritten when an upsert hits an
// existing (connection_id, external_id) row. Provenance and creation columns
// are deliberately left untouched.
var unifiedOrderUpdateColumns = []string{
	"number", "status", "currency",
	"total_amount", "subtotal_amount", "shipping_amount", "discount_amount",
	"buyer_name", "buyer_email", "line_items",
	"placed_at", "external_updated_at", "updated_at",
}

// GormUnifiedOrderRepository implements unified.OrderRepository using GORM
type GormUnifiedOrderRepository struct {
	db *gorm.DB
}

// NewGormUnifiedOrderRepository creates a new GormUnifiedOrderRepository
func NewGormUnifiedOrderRepository(db *gorm.DB) *GormUnifiedOrderRepository {
	return &GormUnifiedOrderRepository{db: db}
}

// Upsert inserts or updates an order keyed by (connection_id, external_id)
func (r *GormUnifiedOrderRepository) Upsert(ctx context.Context, order *unified.Order) error {
	return upsertOrders(r.db.WithContext(ctx), []unified.Order{*order})
}

// UpsertBatch upserts a batch of orders within one transaction; the sync
// cursor must only advance after this commits.
func (r *GormUnifiedOrderRepository) UpsertBatch(ctx context.Context, orders []unified.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertOrders(tx, orders)
	})
}

func upsertOrders(tx *gorm.DB, orders []unified.Order) error {
	now := time.Now()
	orderModels := make([]models.UnifiedOrderModel, len(orders))
	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return err
		}
		if orders[i].ID == uuid.Nil {
			orders[i].ID = uuid.New()
		}
		if orders[i].CreatedAt.IsZero() {
			orders[i].CreatedAt = now
		}
		orders[i].UpdatedAt = now
		orderModels[i].FromDomain(&orders[i])
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(unifiedOrderUpdateColumns),
	}).Create(&orderModels).Error
}

// FindByConnectionAndExternalID finds an order by its idempotency key
func (r *GormUnifiedOrderRepository) FindByConnectionAndExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*unified.Order, error) {
	var model models.UnifiedOrderModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_id = ?", connectionID, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unified.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByConnection counts orders originating from a connection
func (r *GormUnifiedOrderRepository) CountByConnection(ctx context.Context, connectionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UnifiedOrderModel{}).
		Where("connection_id = ?", connectionID).
		Count(&count).Error
	return count, err
}

// Ensure GormUnifiedOrderRepository implements unified.OrderRepository
var _ unified.OrderRepository = (*GormUnifiedOrderRepository)(nil)
