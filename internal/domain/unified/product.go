package unified

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ProductStatus
// ---------------------------------------------------------------------------

// ProductStatus is the closed, cross-provider product status enumeration
type ProductStatus string

const (
	// ProductStatusActive indicates the listing is live
	ProductStatusActive ProductStatus = "ACTIVE"
	// ProductStatusDraft indicates the listing is not yet published
	ProductStatusDraft ProductStatus = "DRAFT"
	// ProductStatusArchived indicates the listing was removed or expired
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// IsValid returns true if the status is valid
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusDraft, ProductStatusArchived:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProductStatus
func (s ProductStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Product
// ---------------------------------------------------------------------------

// Product is the normalized, cross-provider product representation.
// The (ConnectionID, ExternalID) pair is the idempotency key for upserts.
type Product struct {
	// ID is the unique identifier of the unified product
	ID uuid.UUID
	// TenantID is the tenant owning this product
	TenantID uuid.UUID
	// ConnectionID is the provenance pointer back to the originating Connection
	ConnectionID uuid.UUID
	// ExternalID is the provider-native product identifier
	ExternalID string
	// Title is the listing title
	Title string
	// Description is the listing description
	Description string
	// SKU is the seller-assigned SKU, when present
	SKU string
	// Status is the normalized listing status
	Status ProductStatus
	// Currency is the ISO 4217 currency code of Price
	Currency string
	// Price is the current listing price
	Price decimal.Decimal
	// Quantity is the available quantity
	Quantity int
	// ImageURL is the primary listing image
	ImageURL string
	// ExternalUpdatedAt is the provider-side last-modified timestamp
	ExternalUpdatedAt *time.Time
	// CreatedAt is when this row was first upserted
	CreatedAt time.Time
	// UpdatedAt is when this row was last upserted
	UpdatedAt time.Time
}

// Validate checks the invariants required before an upsert
func (p *Product) Validate() error {
	if p.TenantID == uuid.Nil {
		return ErrInvalidTenantID
	}
	if p.ConnectionID == uuid.Nil {
		return ErrInvalidConnectionID
	}
	if p.ExternalID == "" {
		return ErrMissingExternalID
	}
	if !p.Status.IsValid() {
		return ErrInvalidProductStatus
	}
	if p.Currency == "" {
		return ErrMissingCurrency
	}
	if !ValidCurrency(p.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}
