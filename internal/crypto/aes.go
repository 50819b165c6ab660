// Package crypto seals sensitive cache fields (pass UUIDs) with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const prefix = "aes-gcm:"

// ErrOpen is returned when a sealed value cannot be authenticated with the key.
var ErrOpen = errors.New("decrypt failed: invalid key or corrupted data")

// Sealer encrypts and decrypts short strings. A nil *Sealer passes values
// through unchanged, so callers without a configured key need no branches.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a key accepted by DeriveKey.
// An empty key returns a nil Sealer.
func NewSealer(key string) (*Sealer, error) {
	if key == "" {
		return nil, nil
	}
	keyBytes, err := DeriveKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// Seal returns "aes-gcm:" + base64(nonce + ciphertext + tag).
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the prefix are returned as-is so caches
// written before a key was configured stay readable.
func (s *Sealer) Open(value string) (string, error) {
	if s == nil || !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrOpen
	}
	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrOpen
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the "aes-gcm:" prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, prefix)
}

// DeriveKey converts the input string to a 32-byte AES key.
// Accepts: hex-encoded (64 chars), base64-encoded (44 chars), or raw 32 bytes.
func DeriveKey(input string) ([]byte, error) {
	if len(input) == 64 {
		if b, err := hex.DecodeString(input); err == nil {
			return b, nil
		}
	}

	if len(input) == 44 && strings.HasSuffix(input, "=") {
		if b, err := base64.StdEncoding.DecodeString(input); err == nil && len(b) == 32 {
			return b, nil
		}
	}

	if len(input) == 32 {
		return []byte(input), nil
	}

	return nil, errors.New("encryption key must be 32 bytes (hex-encoded 64 chars, base64 44 chars, or raw 32 bytes)")
}

// GenerateKey returns a fresh hex-encoded 32-byte key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
