// Package vault provides authenticated at-rest encryption for provider
// credentials. The encryption key is derived from an operator-supplied secret
// so the literal secret is never used directly as key material.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyLength is the AES-256 key size in bytes
	keyLength = 32
	// kdfIterations is the PBKDF2 iteration count
	kdfIterations = 4096
)

// kdfSalt is a fixed application-scoped salt. Uniqueness of derived keys comes
// from the operator secret; the salt only separates this deployment's keyspace
// from other PBKDF2 uses of the same secret.
var kdfSalt = []byte("sellerhub.credential-vault.v1")

var (
	// ErrEmptySecret indicates the vault was constructed without a secret
	ErrEmptySecret = errors.New("vault: secret must not be empty")
	// ErrDecryptFailed indicates a malformed blob or failed authentication
	// tag verification (wrong key or tampering). Callers must not treat this
	// as "value is empty".
	ErrDecryptFailed = errors.New("vault: decryption failed")
)

// Vault encrypts and decrypts credential blobs with AES-256-GCM.
// It holds no state beyond the derived key; every call is independent.
type Vault struct {
	aead cipher.AEAD
}

// New derives a key from the operator secret and returns a ready Vault
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := pbkdf2.Key([]byte(secret), kdfSalt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext into an opaque blob: base64(nonce || ciphertext+tag)
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed input or failed
// authentication yields ErrDecryptFailed; the underlying cause is not exposed
// to avoid acting as a padding/format oracle.
func (v *Vault) Decrypt(blob string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(sealed) < v.aead.NonceSize() {
		return "", ErrDecryptFailed
	}

	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
