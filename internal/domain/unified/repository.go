package unified

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepository persists unified orders
type OrderRepository interface {
	// Upsert inserts or updates an order keyed by (connection_id, external_id).
	// Concurrent writers for the same key converge regardless of interleaving.
	Upsert(ctx context.Context, order *Order) error

	// UpsertBatch upserts a batch of orders within one transaction
	UpsertBatch(ctx context.Context, orders []Order) error

	// FindByConnectionAndExternalID finds an order by its idempotency key
	FindByConnectionAndExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*Order, error)

	// CountByConnection counts orders originating from a connection
	CountByConnection(ctx context.Context, connectionID uuid.UUID) (int64, error)
}

// ProductRepository persists unified products
type ProductRepository interface {
	// Upsert inserts or updates a product keyed by (connection_id, external_id)
	Upsert(ctx context.Context, product *Product) error

	// UpsertBatch upserts a batch of products within one transaction
	UpsertBatch(ctx context.Context, products []Product) error

	// FindByConnectionAndExternalID finds a product by its idempotency key
	FindByConnectionAndExternalID(ctx context.Context, connectionID uuid.UUID, externalID string) (*Product, error)

	// CountByConnection counts products originating from a connection
	CountByConnection(ctx context.Context, connectionID uuid.UUID) (int64, error)
}
