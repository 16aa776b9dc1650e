// Package crypto provides at-rest sealing for cached credentials.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for deriving the sealing key from a passphrase.
// Derivation happens once per Sealer, so they are tuned below password-hash strength.
const (
	argon2Time    = 1
	argon2Memory  = 16 * 1024 // 16 MB
	argon2Threads = 2
)

// sealSalt is fixed: the passphrase is a local secret, not a user password.
var sealSalt = []byte("marrfa-go/token-seal/v1")

const sealPrefix = "v1."

// ErrOpenFailed is returned when a blob cannot be authenticated or decoded.
var ErrOpenFailed = errors.New("sealed blob could not be opened")

// Sealer encrypts small blobs with XChaCha20-Poly1305.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a key from passphrase. An empty passphrase is rejected.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("seal passphrase is empty")
	}
	key := argon2.IDKey([]byte(passphrase), sealSalt, argon2Time, argon2Memory, argon2Threads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext bound to aad (the cache key), returning a printable blob.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, aad)
	return []byte(sealPrefix + base64.RawURLEncoding.EncodeToString(sealed)), nil
}

// Open reverses Seal. Any tampering, wrong key, or wrong aad yields ErrOpenFailed.
func (s *Sealer) Open(blob, aad []byte) ([]byte, error) {
	text, ok := strings.CutPrefix(string(blob), sealPrefix)
	if !ok {
		return nil, ErrOpenFailed
	}
	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return nil, ErrOpenFailed
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}
