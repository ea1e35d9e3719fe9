package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sellerhub/backend/internal/domain/unified"
)

// ---------------------------------------------------------------------------
// ProviderCode
// ---------------------------------------------------------------------------

// ProviderCode identifies an external commerce platform
type ProviderCode string

const (
	// ProviderCodeEtsy is the Etsy marketplace (poll-based, dual rotation)
	ProviderCodeEtsy ProviderCode = "ETSY"
	// ProviderCodeShopify is Shopify (push-based, static non-expiring token)
	ProviderCodeShopify ProviderCode = "SHOPIFY"
	// ProviderCodeEbay is eBay (poll-based, single rotation)
	ProviderCodeEbay ProviderCode = "EBAY"
)

// IsValid returns true if the provider code is valid
func (c ProviderCode) IsValid() bool {
	switch c {
	case ProviderCodeEtsy, ProviderCodeShopify, ProviderCodeEbay:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProviderCode
func (c ProviderCode) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// RotationPolicy
// ---------------------------------------------------------------------------

// RotationPolicy describes how a provider rotates credentials on refresh
type RotationPolicy string

const (
	// RotationPolicyStatic means the credential never expires and is never refreshed
	RotationPolicyStatic RotationPolicy = "STATIC"
	// RotationPolicySingle means only the access credential changes on refresh
	RotationPolicySingle RotationPolicy = "SINGLE"
	// RotationPolicyDual means both access and refresh credentials change every refresh
	RotationPolicyDual RotationPolicy = "DUAL"
)

// IsValid returns true if the rotation policy is valid
func (p RotationPolicy) IsValid() bool {
	switch p {
	case RotationPolicyStatic, RotationPolicySingle, RotationPolicyDual:
		return true
	default:
		return false
	}
}

// Metadata is adapter-declared behavior the coordinator and orchestrator rely
// on instead of special-casing providers by name.
type Metadata struct {
	// Code is the provider this adapter handles
	Code ProviderCode
	// DisplayName is a human-readable provider name
	DisplayName string
	// RotationPolicy describes refresh semantics
	RotationPolicy RotationPolicy
	// RefreshBuffer is subtracted from the expiry when deciding whether a
	// refresh is due; absorbs clock skew and request latency
	RefreshBuffer time.Duration
	// SupportsPush is true when the provider delivers webhooks
	SupportsPush bool
	// PollInterval is the scheduled pull cadence for poll-based providers
	PollInterval time.Duration
}

// ---------------------------------------------------------------------------
// Exchange / refresh results
// ---------------------------------------------------------------------------

// PKCEChallenge carries an OAuth PKCE challenge for providers requiring it
type PKCEChallenge struct {
	// Challenge is the code challenge derived from the verifier
	Challenge string
	// Method is the challenge method (S256)
	Method string
}

// TokenSet is the plaintext result of a code exchange or refresh call.
// RefreshToken is empty when the provider did not rotate it.
type TokenSet struct {
	AccessToken         string
	RefreshToken        string
	ExpiresAt           *time.Time
	ExternalAccountID   string
	ExternalAccountName string
}

// ---------------------------------------------------------------------------
// Raw items and webhook events
// ---------------------------------------------------------------------------

// ItemKind distinguishes raw order payloads from raw product payloads
type ItemKind string

const (
	// ItemKindOrder marks a raw provider order
	ItemKindOrder ItemKind = "ORDER"
	// ItemKindProduct marks a raw provider product/listing
	ItemKindProduct ItemKind = "PRODUCT"
)

// RawItem is one provider-native record fetched or pushed, kept opaque until
// the owning adapter maps it into the unified schema.
type RawItem struct {
	Kind       ItemKind
	ExternalID string
	Payload    json.RawMessage
}

// WebhookEvent is a verified, parsed inbound push notification
type WebhookEvent struct {
	// EventID is the provider-native event identifier used for deduplication
	EventID string
	// ExternalAccountID identifies which connection the event belongs to
	ExternalAccountID string
	// Items are the records carried by the event
	Items []RawItem
}

// ---------------------------------------------------------------------------
// ProviderAdapter Port
// ---------------------------------------------------------------------------

// ProviderAdapter is the uniform contract every platform integration
// implements. Concrete adapters live in the infrastructure layer; the
// refresh coordinator and sync orchestrator only ever see this interface.
type ProviderAdapter interface {
	// Metadata returns the adapter-declared behavior flags
	Metadata() Metadata

	// BuildAuthorizationURL builds the provider authorization URL for the
	// OAuth handshake. pkce may be nil for providers that do not use PKCE.
	BuildAuthorizationURL(state string, pkce *PKCEChallenge) (string, error)

	// ExchangeCode exchanges an authorization code for credentials
	ExchangeCode(ctx context.Context, code, pkceVerifier string) (*TokenSet, error)

	// Refresh exchanges a refresh credential for fresh credentials.
	// Static providers return ErrRefreshFailed.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	// Revoke best-effort revokes the credential on the provider side
	Revoke(ctx context.Context, accessToken string) error

	// FetchDeltas returns records changed in the (since, until] window
	FetchDeltas(ctx context.Context, accessToken string, since, until time.Time) ([]RawItem, error)

	// MapOrder maps a raw order into the unified schema.
	// Returns (nil, nil) when the item is not an order for this adapter;
	// returns an error when the payload is malformed (item is skipped).
	MapOrder(item RawItem) (*unified.Order, error)

	// MapProduct maps a raw product into the unified schema, same contract
	// as MapOrder.
	MapProduct(item RawItem) (*unified.Product, error)
}

// PushAdapter extends ProviderAdapter for providers delivering webhooks
type PushAdapter interface {
	ProviderAdapter

	// VerifyWebhook checks the transport-level authenticity of an inbound
	// event before any structural parsing. Implementations must use a
	// constant-time comparison.
	VerifyWebhook(headers http.Header, body []byte) bool

	// ParseWebhookEvent parses a verified raw body into a webhook event
	ParseWebhookEvent(headers http.Header, body []byte) (*WebhookEvent, error)
}

// AdapterRegistry provides access to the configured provider adapters
type AdapterRegistry interface {
	// Get returns the adapter for the given provider code
	Get(code ProviderCode) (ProviderAdapter, error)

	// List returns all registered adapters
	List() []ProviderAdapter
}

// CredentialCipher is the vault port: authenticated symmetric encryption of
// credentials before persistence. Implementations hold no per-call state.
type CredentialCipher interface {
	// Encrypt seals a plaintext credential into an opaque blob
	Encrypt(plaintext string) (string, error)

	// Decrypt opens a blob. Fails with a decryption error when the blob is
	// malformed or the authentication tag does not verify; callers must not
	// treat that as "value is empty".
	Decrypt(blob string) (string, error)
}
