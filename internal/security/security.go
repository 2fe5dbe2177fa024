// Package security provides credential sealing, secret redaction and input
// validation.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	apperrors "price-analyst/internal/errors"
)

const (
	// EncryptionKeySize is the size of the AES-256 key in bytes.
	EncryptionKeySize = 32
	// SaltSize is the size of the salt for key derivation.
	SaltSize = 16
	// NonceSize is the size of the GCM nonce.
	NonceSize = 12
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
)

// sealedPrefix marks values produced by Seal.
const sealedPrefix = "sealed:v1:"

// Sealer encrypts credential values with a key derived from a master
// passphrase. Each value carries its own salt and nonce.
type Sealer struct {
	passphrase []byte
	iterations int
}

// NewSealer creates a sealer. An empty passphrase is rejected.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, apperrors.NewSecurityError("new_sealer", "empty master key", nil)
	}
	return &Sealer{passphrase: []byte(passphrase), iterations: PBKDF2Iterations}, nil
}

// deriveKey derives an encryption key from the passphrase using PBKDF2.
func (s *Sealer) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(s.passphrase, salt, s.iterations, EncryptionKeySize, sha256.New)
}

// Seal encrypts plaintext into a printable string.
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", apperrors.NewSecurityError("seal", "generating salt", err)
	}

	nonce, ciphertext, err := encrypt([]byte(plaintext), s.deriveKey(salt))
	if err != nil {
		return "", apperrors.NewSecurityError("seal", "encrypting", err)
	}

	blob := make([]byte, 0, SaltSize+NonceSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return sealedPrefix + base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a value produced by Seal. A wrong passphrase or a tampered
// value fails authentication.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", apperrors.NewSecurityError("open", "value is not sealed", nil)
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", apperrors.NewSecurityError("open", "decoding", err)
	}
	if len(blob) < SaltSize+NonceSize {
		return "", apperrors.NewSecurityError("open", "value too short", nil)
	}

	salt, nonce, ciphertext := blob[:SaltSize], blob[SaltSize:SaltSize+NonceSize], blob[SaltSize+NonceSize:]
	plaintext, err := decrypt(ciphertext, s.deriveKey(salt), nonce)
	if err != nil {
		return "", apperrors.NewSecurityError("open", "authentication failed", fmt.Errorf("%w: %v", apperrors.ErrCredentialAccess, err))
	}
	return string(plaintext), nil
}

// IsSealed reports whether v looks like a sealed value.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}

// encrypt encrypts plaintext using AES-256-GCM.
func encrypt(plaintext, key []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// decrypt decrypts ciphertext using AES-256-GCM.
func decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	return plaintext, nil
}
