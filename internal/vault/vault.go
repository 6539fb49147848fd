// Package vault encrypts per-user Spotify credentials at rest.
//
// A single 32 byte master key lives in a key file next to the database. Each user gets a data key
// derived from it with HKDF-SHA256 using the user id as info, so ciphertext stored for one user cannot
// be opened as another's. Secrets are sealed with AES-256-GCM and encoded as base64(nonce||ciphertext||tag).
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

	"golang.org/x/crypto/hkdf"

	"github.com/desertthunder/ang2spot/internal/shared"
)

// KeySize is the master key length in bytes.
const KeySize = 32

var (
	// ErrNotFound is returned by [Vault.Retrieve] and [Vault.Remove] when nothing is stored for the user.
	ErrNotFound = shared.ErrNotFound

	// ErrDecryptionFailed indicates corrupted or tampered ciphertext, or a ciphertext sealed for another user.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKey indicates a master key of the wrong size.
	ErrInvalidKey = errors.New("invalid master key")

	// ErrEmptySecret is returned when sealing an empty secret.
	ErrEmptySecret = errors.New("secret must not be empty")
)

// CipherStore persists ciphertext keyed by user id.
//
// Implementations return an error wrapping [ErrNotFound] when no ciphertext exists.
type CipherStore interface {
	GetCiphertext(userID string) (string, error)
	PutCiphertext(userID, ciphertext string) error
	DeleteCiphertext(userID string) error
}

// Vault seals secrets with per-user keys and keeps them in a [CipherStore].
type Vault struct {
	masterKey []byte
	store     CipherStore
}

// New creates a vault over store using masterKey, which must be [KeySize] bytes.
func New(masterKey []byte, store CipherStore) (*Vault, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(masterKey))
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &Vault{masterKey: key, store: store}, nil
}

// Open loads the master key from keyFile, creating it on first use, and returns a vault over store.
func Open(keyFile string, store CipherStore) (*Vault, error) {
	key, err := LoadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}
	return New(key, store)
}

// Store seals secret for userID, persists it, and returns the ciphertext.
func (v *Vault) Store(userID, secret string) (string, error) {
	ct, err := v.Seal(userID, secret)
	if err != nil {
		return "", err
	}
	if err := v.store.PutCiphertext(userID, ct); err != nil {
		return "", fmt.Errorf("failed to persist secret: %w", err)
	}
	return ct, nil
}

// Retrieve loads and opens the secret stored for userID.
func (v *Vault) Retrieve(userID string) (string, error) {
	ct, err := v.store.GetCiphertext(userID)
	if err != nil {
		return "", err
	}
	return v.Unseal(userID, ct)
}

// Remove deletes the secret stored for userID.
func (v *Vault) Remove(userID string) error {
	return v.store.DeleteCiphertext(userID)
}

// Seal encrypts plaintext with the data key of userID without persisting it.
func (v *Vault) Seal(userID, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptySecret
	}

	aead, err := v.aead(userID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(userID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unseal decrypts ciphertext produced by [Vault.Seal] for the same userID.
func (v *Vault) Unseal(userID, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed encoding", ErrDecryptionFailed)
	}

	aead, err := v.aead(userID)
	if err != nil {
		return "", err
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(userID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// Mask hides all but the last four characters of a secret for display.
func Mask(secret string) string {
	return shared.MaskSecret(secret)
}

func (v *Vault) aead(userID string) (cipher.AEAD, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrInvalidArgument)
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, v.masterKey, nil, []byte(userID)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
