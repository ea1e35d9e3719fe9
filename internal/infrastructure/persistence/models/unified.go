package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellerhub/backend/internal/domain/unified"
)

// UnifiedOrderModel is the persistence model for unified.Order.
// The unique (connection_id, external_id) index is the upsert idempotency key.
type UnifiedOrderModel struct {
	ID                uuid.UUID           `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID           `gorm:"type:uuid;not null;index:idx_unified_orders_tenant"`
	ConnectionID      uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_unified_orders_conn_ext,priority:1"`
	ExternalID        string              `gorm:"type:varchar(100);not null;uniqueIndex:idx_unified_orders_conn_ext,priority:2"`
	Number            string              `gorm:"type:varchar(100)"`
	Status            unified.OrderStatus `gorm:"type:varchar(20);not null"`
	Currency          string              `gorm:"type:varchar(3);not null"`
	TotalAmount       decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	SubtotalAmount    decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	ShippingAmount    decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	DiscountAmount    decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	BuyerName         string              `gorm:"type:varchar(255)"`
	BuyerEmail        string              `gorm:"type:varchar(255)"`
	LineItemsJSON     string              `gorm:"type:text;column:line_items"`
	PlacedAt          time.Time           `gorm:"not null"`
	ExternalUpdatedAt *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UnifiedOrderModel) TableName() string {
	return "unified_orders"
}

// ToDomain converts the persistence model to a domain unified.Order.
func (m *UnifiedOrderModel) ToDomain() *unified.Order {
	order := &unified.Order{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ConnectionID:      m.ConnectionID,
		ExternalID:        m.ExternalID,
		Number:            m.Number,
		Status:            m.Status,
		Currency:          m.Currency,
		TotalAmount:       m.TotalAmount,
		SubtotalAmount:    m.SubtotalAmount,
		ShippingAmount:    m.ShippingAmount,
		DiscountAmount:    m.DiscountAmount,
		BuyerName:         m.BuyerName,
		BuyerEmail:        m.BuyerEmail,
		LineItems:         make([]unified.OrderLineItem, 0),
		PlacedAt:          m.PlacedAt,
		ExternalUpdatedAt: m.ExternalUpdatedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}

	if m.LineItemsJSON != "" {
		var items []unified.OrderLineItem
		if err := json.Unmarshal([]byte(m.LineItemsJSON), &items); err == nil {
			order.LineItems = items
		}
	}

	return order
}

// FromDomain populates the persistence model from a domain unified.Order.
func (m *UnifiedOrderModel) FromDomain(o *unified.Order) {
	m.ID = o.ID
	m.TenantID = o.TenantID
	m.ConnectionID = o.ConnectionID
	m.ExternalID = o.ExternalID
	m.Number = o.Number
	m.Status = o.Status
	m.Currency = o.Currency
	m.TotalAmount = o.TotalAmount
	m.SubtotalAmount = o.SubtotalAmount
	m.ShippingAmount = o.ShippingAmount
	m.DiscountAmount = o.DiscountAmount
	m.BuyerName = o.BuyerName
	m.BuyerEmail = o.BuyerEmail
	m.PlacedAt = o.PlacedAt
	m.ExternalUpdatedAt = o.ExternalUpdatedAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	if len(o.LineItems) > 0 {
		if data, err := json.Marshal(o.LineItems); err == nil {
			m.LineItemsJSON = string(data)
		}
	} else {
		m.LineItemsJSON = "[]"
	}
}

// UnifiedProductModel is the persistence model for unified.Product.
type UnifiedProductModel struct {
	ID                uuid.UUID             `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID             `gorm:"type:uuid;not null;index:idx_unified_products_tenant"`
	ConnectionID      uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_unified_products_conn_ext,priority:1"`
	ExternalID        string                `gorm:"type:varchar(100);not null;uniqueIndex:idx_unified_products_conn_ext,priority:2"`
	Title             string                `gorm:"type:varchar(500)"`
	Description       string                `gorm:"type:text"`
	SKU               string                `gorm:"type:varchar(100)"`
	Status            unified.ProductStatus `gorm:"type:varchar(20);not null"`
	Currency          string                `gorm:"type:varchar(3);not null"`
	Price             decimal.Decimal       `gorm:"type:numeric(18,2);not null"`
	Quantity          int                   `gorm:"not null;default:0"`
	ImageURL          string                `gorm:"type:varchar(1000)"`
	ExternalUpdatedAt *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UnifiedProductModel) TableName() string {
	return "unified_products"
}

// ToDomain converts the persistence model to a domain unified.Product.
func (m *UnifiedProductModel) ToDomain() *unified.Product {
	return &unified.Product{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ConnectionID:      m.ConnectionID,
		ExternalID:        m.ExternalID,
		Title:             m.Title,
		Description:       m.Description,
		SKU:               m.SKU,
		Status:            m.Status,
		Currency:          m.Currency,
		Price:             m.Price,
		Quantity:          m.Quantity,
		ImageURL:          m.ImageURL,
		ExternalUpdatedAt: m.ExternalUpdatedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain unified.Product.
func (m *UnifiedProductModel) FromDomain(p *unified.Product) {
	m.ID = p.ID
	m.TenantID = p.TenantID
	m.ConnectionID = p.ConnectionID
	m.ExternalID = p.ExternalID
	m.Title = p.Title
	m.Description = p.Description
	m.SKU = p.SKU
	m.Status = p.Status
	m.Currency = p.Currency
	m.Price = p.Price
	m.Quantity = p.Quantity
	m.ImageURL = p.ImageURL
	m.ExternalUpdatedAt = p.ExternalUpdatedAt
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}
