// Package trend implements Trend Ingest: serializing and
// persisting a completed run's findings blob, triggered-rule rows, and
// run metadata as one atomic unit, plus the local spool replay path for
// persistent ingest failures.
package trend

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// EncryptionMode is the closed set the schema records alongside a run row.
type EncryptionMode string

const (
	EncryptionNone   EncryptionMode = "none"
	EncryptionAESGCM EncryptionMode = "aes-gcm"
)

// KeyProvider resolves a symmetric key for a company, modeled directly on
// infrastructure/secrets/manager.go's Manager. Readers use the recorded
// EncryptionMode to know which provider to ask for a key when decrypting
// on demand.
type KeyProvider interface {
	Key(ctx context.Context, companyID string) ([]byte, error)
}

// NoneKeyProvider never encrypts; EncryptFindingsBlob returns the input
// unchanged alongside EncryptionNone.
type NoneKeyProvider struct{}

func (NoneKeyProvider) Key(ctx context.Context, companyID string) ([]byte, error) { return nil, nil }

// EncryptFindingsBlob encrypts blob under the company's key if provider is
// non-nil and returns a key, otherwise returns blob unchanged with mode
// "none". Nonce is prepended to ciphertext.
func EncryptFindingsBlob(ctx context.Context, provider KeyProvider, companyID string, blob []byte) ([]byte, EncryptionMode, error) {
	if provider == nil {
		return blob, EncryptionNone, nil
	}
	key, err := provider.Key(ctx, companyID)
	if err != nil {
		return nil, "", fmt.Errorf("trend: resolve key: %w", err)
	}
	if len(key) == 0 {
		return blob, EncryptionNone, nil
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("trend: generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, blob, nil)
	return append(nonce, ciphertext...), EncryptionAESGCM, nil
}

// DecryptFindingsBlob reverses EncryptFindingsBlob given the recorded mode.
func DecryptFindingsBlob(ctx context.Context, provider KeyProvider, companyID string, mode EncryptionMode, raw []byte) ([]byte, error) {
	if mode == EncryptionNone || mode == "" {
		return raw, nil
	}
	if provider == nil {
		return nil, fmt.Errorf("trend: no key provider configured to decrypt mode %q", mode)
	}
	key, err := provider.Key(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("trend: resolve key: %w", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, fmt.Errorf("trend: ciphertext shorter than nonce size")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("trend: decrypt findings blob: %w", err)
	}
	return plain, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	normalized, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(normalized)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// normalizeKey pads/truncates to AES-256, the same discipline as the
// teacher's secrets.normalizeMasterKey.
func normalizeKey(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("trend: empty encryption key")
	}
	key := make([]byte, 32)
	copy(key, raw)
	return key, nil
}
