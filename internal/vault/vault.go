// Package vault seals and opens the opaque wallet-snapshot byte stream
// internal/walletdb persists, so neither a stolen file nor a stolen
// database row reveals spend keys without the wallet's password.
package vault

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// version 1 is the only sealed format this package emits or accepts.
const version byte = 1

const (
	saltSize = 16

	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = chacha20poly1305.KeySize
)

var (
	// ErrWrongPassword is returned by Open when the AEAD tag doesn't
	// verify, either because the password is wrong or the bytes were
	// tampered with — the two are indistinguishable by design.
	ErrWrongPassword = errors.New("vault: wrong password or corrupt data")
	// ErrUnsupportedVersion is returned by Open for a sealed blob whose
	// version tag this build doesn't recognize.
	ErrUnsupportedVersion = errors.New("vault: unsupported sealed format version")
	// ErrShortBuffer is returned by Open for a blob too small to contain
	// a version tag, salt, and nonce.
	ErrShortBuffer = errors.New("vault: sealed data is truncated")
)

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// Seal encrypts plaintext under a key derived from password and a fresh
// random salt, returning version || salt || nonce || ciphertext. The
// output is opaque to internal/walletdb: it only ever stores and
// retrieves the bytes Seal/Open produce and consume.
func Seal(password string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("vault: build cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, version)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Open reverses Seal. It returns ErrUnsupportedVersion for a blob this
// build doesn't know how to read, and ErrWrongPassword if the password
// doesn't match or the blob was tampered with.
func Open(password string, sealed []byte) ([]byte, error) {
	if len(sealed) < 1+saltSize {
		return nil, ErrShortBuffer
	}
	if sealed[0] != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, sealed[0])
	}
	rest := sealed[1:]
	salt, rest := rest[:saltSize], rest[saltSize:]

	aead, err := chacha20poly1305.NewX(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("vault: build cipher: %w", err)
	}
	if len(rest) < aead.NonceSize() {
		return nil, ErrShortBuffer
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
