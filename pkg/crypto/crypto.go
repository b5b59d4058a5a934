// Package crypto provides the at-rest encryption used by the reencrypt
// workflow: AES-256-GCM with a random nonce prepended to the ciphertext,
// and Argon2id password-based key derivation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the size of the encryption key in bytes (32 bytes = 256 bits)
	KeySize = 32
	// SaltSize is the size of the salt used in key derivation
	SaltSize = 16
	// Memory in KiB used by Argon2
	Memory = 64 * 1024
	// Iterations used by Argon2
	Iterations = 3
	// Parallelism used by Argon2
	Parallelism = 2
)

// ErrWrongKey signals that a ciphertext failed authentication, which under
// AES-GCM means it was sealed with a different key (or has been tampered
// with). Reencryption uses this to distinguish "try the next key" from a
// genuine failure.
var ErrWrongKey = errors.New("ciphertext not sealed with this key")

// DeriveKey derives a KeySize encryption key from a password using
// Argon2id with a freshly generated random salt. The salt must be stored
// alongside the ciphertext to recreate the key later.
func DeriveKey(password []byte) (key, salt []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}
	return argon2.IDKey(password, salt, Iterations, Memory, Parallelism, KeySize), salt, nil
}

// RecreateKey recreates an encryption key from a password and a stored salt.
func RecreateKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, Iterations, Memory, Parallelism, KeySize)
}

// Encrypt seals plaintext with AES-256-GCM and prepends the random nonce.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed AES-256-GCM ciphertext. Authentication
// failure is reported as ErrWrongKey.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce: %w", ErrWrongKey)
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", ErrWrongKey)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
