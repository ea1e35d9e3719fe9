package providers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// pkceVerifierBytes is the entropy of a generated code verifier (43 chars encoded)
const pkceVerifierBytes = 32

// GeneratePKCE creates a fresh PKCE verifier and its S256 challenge.
// The verifier is kept server-side for the later code exchange; only the
// challenge travels in the authorization URL.
func GeneratePKCE() (verifier string, challenge *connection.PKCEChallenge, err error) {
	raw := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	verifier = base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))

	return verifier, &connection.PKCEChallenge{
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		Method:    "S256",
	}, nil
}
