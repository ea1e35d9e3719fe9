// Package connection contains the Connection bounded context.
// This context manages a tenant's links to external commerce providers,
// including credential lifecycle and sync bookkeeping.
//
// Key concepts:
//   - Connection: Aggregate holding encrypted credentials, expiry and sync cursors
//   - ProviderAdapter: Port interface implemented once per platform (Etsy, Shopify, eBay)
//   - CredentialCipher: Port for at-rest credential encryption
//   - SyncEvent: Append-only record of each orchestration attempt
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package connection
