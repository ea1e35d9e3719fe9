package unified

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderStatus
// ---------------------------------------------------------------------------

// OrderStatus is the closed, cross-provider order status enumeration.
// Provider adapters map their native statuses into this set.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusPaid indicates payment received, pending fulfillment
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusShipped indicates the order has been shipped
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusCompleted indicates the order is fulfilled and closed out
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCancelled indicates the order was cancelled
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded indicates the order was refunded
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is the normalized, cross-provider order representation.
// The (ConnectionID, ExternalID) pair is the idempotency key for upserts:
// re-delivery of the same provider order always converges onto one row.
type Order struct {
	// ID is the unique identifier of the unified order
	ID uuid.UUID
	// TenantID is the tenant owning this order
	TenantID uuid.UUID
	// ConnectionID is the provenance pointer back to the originating Connection
	ConnectionID uuid.UUID
	// ExternalID is the provider-native order identifier
	ExternalID string
	// Number is the human-readable order number on the provider
	Number string
	// Status is the normalized order status
	Status OrderStatus
	// Currency is the ISO 4217 currency code for all amounts
	Currency string
	// TotalAmount is what the buyer paid
	TotalAmount decimal.Decimal
	// SubtotalAmount is the item total before shipping and discounts
	SubtotalAmount decimal.Decimal
	// ShippingAmount is the shipping fee
	ShippingAmount decimal.Decimal
	// DiscountAmount is the total discount applied
	DiscountAmount decimal.Decimal
	// BuyerName is the buyer's display name
	BuyerName string
	// BuyerEmail is the buyer's email address, when the provider exposes it
	BuyerEmail string
	// LineItems contains the order line items
	LineItems []OrderLineItem
	// PlacedAt is when the order was created on the provider
	PlacedAt time.Time
	// ExternalUpdatedAt is the provider-side last-modified timestamp
	ExternalUpdatedAt *time.Time
	// CreatedAt is when this row was first upserted
	CreatedAt time.Time
	// UpdatedAt is when this row was last upserted
	UpdatedAt time.Time
}

// OrderLineItem is one line of a unified order
type OrderLineItem struct {
	// ExternalID is the provider-native line item identifier
	ExternalID string `json:"external_id"`
	// ExternalProductID is the provider-native product identifier
	ExternalProductID string `json:"external_product_id"`
	// Title is the product title at purchase time
	Title string `json:"title"`
	// SKU is the seller-assigned SKU, when present
	SKU string `json:"sku,omitempty"`
	// Quantity is the ordered quantity
	Quantity int `json:"quantity"`
	// UnitPrice is the unit price
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Validate checks the invariants required before an upsert
func (o *Order) Validate() error {
	if o.TenantID == uuid.Nil {
		return ErrInvalidTenantID
	}
	if o.ConnectionID == uuid.Nil {
		return ErrInvalidConnectionID
	}
	if o.ExternalID == "" {
		return ErrMissingExternalID
	}
	if !o.Status.IsValid() {
		return ErrInvalidOrderStatus
	}
	if o.Currency == "" {
		return ErrMissingCurrency
	}
	if !ValidCurrency(o.Currency) {
		return ErrInvalidCurrency
	}
	return nil
}
