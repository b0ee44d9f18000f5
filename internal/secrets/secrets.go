// Package secrets implements the AEAD encrypt/decrypt pair §1 assumes for a
// workflow's encryptedEnvironment blob: AES-256-GCM with a process-wide key,
// immutable after startup (§5). Grounded on rakunlabs-at's
// internal/crypto.Encrypt/Decrypt, adapted from string values to the raw
// []byte blob shape §3's Workflow.EncryptedEnvironment carries.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
)

// Box encrypts and decrypts environment blobs with a single process-wide
// AES-256-GCM key.
type Box struct {
	gcm cipher.AEAD
}

// NewBox constructs a Box from a 32-byte AES-256 key.
func NewBox(key []byte) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternalError, "secrets.NewBox", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternalError, "secrets.NewBox", err)
	}
	return &Box{gcm: gcm}, nil
}

// Encrypt seals plaintext, prefixing the output with a freshly generated
// nonce so Decrypt is self-contained.
func (b *Box) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternalError, "secrets.Encrypt", err)
	}
	return b.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (b *Box) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	nonceSize := b.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, apperrors.New(apperrors.KindInternalError, "secrets.Decrypt", "ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := b.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternalError, "secrets.Decrypt", err)
	}
	return plaintext, nil
}
