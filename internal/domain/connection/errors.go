package connection

import "errors"

var (
	// Connection lifecycle errors
	ErrNotConnected       = errors.New("connection: tenant is not connected to provider")
	ErrConnectionNotFound = errors.New("connection: connection not found")
	ErrAlreadyConnected   = errors.New("connection: tenant already connected to provider")
	ErrInvalidTenantID    = errors.New("connection: invalid tenant ID")
	ErrInvalidProvider    = errors.New("connection: invalid provider code")
	ErrVersionConflict    = errors.New("connection: connection was modified by another process")

	// Credential errors
	ErrCredentialDecrypt = errors.New("connection: credential cannot be decrypted")
	ErrRefreshFailed     = errors.New("connection: provider rejected the credential refresh")
	ErrLockTimeout       = errors.New("connection: could not acquire refresh ownership")
	ErrNoRefreshToken    = errors.New("connection: no refresh credential stored")

	// Handshake errors
	ErrStateNotFound = errors.New("connection: authorization state not found or expired")

	// Provider transport errors
	ErrProviderNotRegistered = errors.New("connection: no adapter registered for provider")
	ErrProviderUnavailable   = errors.New("connection: provider temporarily unavailable")
	ErrProviderRateLimited   = errors.New("connection: provider rate limited")
	ErrProviderAuthFailed    = errors.New("connection: provider authentication failed")
	ErrInvalidSignature      = errors.New("connection: invalid webhook signature")
	ErrMalformedPayload      = errors.New("connection: malformed provider payload")
)
