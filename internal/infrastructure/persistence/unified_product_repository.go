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

var unifiedProductUpdateColumns = []string{
	"title", "description", "sku", "status", "currency",
	"price", "quantity", "image_url",
	"external_updated_at", "updated_at",
}

// GormUnifiedProductRepository implements unified.ProductRepository using GORM
type GormUnifiedProductRepository struct {
	db *gorm.DB
}

// NewGormUnifiedProductRepository creates a new GormUnifiedProductRepository
func NewGormUnifiedProductRepository(db *gorm.DB) *GormUnifiedProductRepository {
	return &GormUnifiedProductRepository{db: db}
}

// Upsert inserts or updates a product keyed by (connection_id, external_id)
func (r *GormUnifiedProductRepository) Upsert(ctx context.Context, product *unified.Product) error {
	return upsertProducts(r.db.WithContext(ctx), []unified.Product{*product})
}

// UpsertBatch upserts a batch of products within one transaction
func (r *GormUnifiedProductRepository) UpsertBatch(ctx context.Context, products []unified.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertProducts(tx, products)
	})
}

func upsertProducts(tx *gorm.DB, products []unified.Product) error {
	now := time.Now()
	productModels := make([]models.UnifiedProductModel, len(products))
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return err
		}
		if products[i].ID == uuid.Nil {
			products[i].ID = uuid.New()
		}
		if products[i].CreatedAt.IsZero() {
			products[i].CreatedAt = now
		}
		products[i].UpdatedAt = now
		productModels[i].FromDomain(&products[i])
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "connection_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(unifiedProductUpdateColumns),
	}).Create(&productModels).Error
}

// FindByConnectionAndExternalID finds a product by its idempotency key
func (r *GormUnifiedProductRepository) FindByConnectionAndExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*unified.Product, error) {
	var model models.UnifiedProductModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ? AND external_id = ?", connectionID, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unified.ErrProductNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountByConnection counts products originating from a connection
func (r *GormUnifiedProductRepository) CountByConnection(ctx context.Context, connectionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UnifiedProductModel{}).
		Where("connection_id = ?", connectionID).
		Count(&count).Error
	return count, err
}

// Ensure GormUnifiedProductRepository implements unified.ProductRepository
var _ unified.ProductRepository = (*GormUnifiedProductRepository)(nil)
