// Package unified contains the cross-provider order and product model.
// Provider adapters map their native payloads into these types; persistence
// converges re-deliveries onto one row via the (connection, external ID)
// idempotency key.
package unified
