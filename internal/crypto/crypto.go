// Package crypto encrypts subscriber display names at rest.
//
// Values are sealed with AES-256-GCM under a key derived from a passphrase
// with PBKDF2 and stored as "enc:v1:" followed by base64 of nonce+ciphertext.
// Values without the prefix are treated as plaintext written before
// encryption was enabled.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 100000
	keySize    = 32 // AES-256

	prefix = "enc:v1:"
)

// ErrDecrypt is returned when a prefixed value cannot be opened with the key
var ErrDecrypt = errors.New("decrypting value")

// Encryptor seals and opens short strings. A nil Encryptor passes values through.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor derives a key from passphrase. An empty passphrase returns nil,
// which disables encryption.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, nil
	}

	// The salt is derived from the passphrase: there is one key per installation
	// and no place to store a random salt next to every value.
	salt := sha256.Sum256([]byte("ticketwatch:" + passphrase))
	key := pbkdf2.Key([]byte(passphrase), salt[:], iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Enabled reports whether values are actually encrypted
func (e *Encryptor) Enabled() bool {
	return e != nil
}

// IsEncrypted reports whether s carries the encrypted value prefix
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, prefix)
}

// Encrypt seals plaintext. Empty strings stay empty.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if e == nil || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Unprefixed values are returned
// unchanged.
func (e *Encryptor) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if e == nil {
		return "", fmt.Errorf("%w: no encryption key configured", ErrDecrypt)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
