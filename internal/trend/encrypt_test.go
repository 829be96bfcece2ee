package trend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticKeyProvider struct {
	key []byte
	err error
}

func (p staticKeyProvider) Key(ctx context.Context, companyID string) ([]byte, error) {
	return p.key, p.err
}

func TestEncryptFindingsBlob_NilProviderReturnsBlobUnchangedWithModeNone(t *testing.T) {
	blob := []byte("plain findings json")
	out, mode, err := EncryptFindingsBlob(context.Background(), nil, "acme", blob)
	require.NoError(t, err)
	assert.Equal(t, blob, out)
	assert.Equal(t, EncryptionNone, mode)
}

func TestEncryptFindingsBlob_ProviderWithEmptyKeyReturnsBlobUnchanged(t *testing.T) {
	blob := []byte("plain findings json")
	out, mode, err := EncryptFindingsBlob(context.Background(), NoneKeyProvider{}, "acme", blob)
	require.NoError(t, err)
	assert.Equal(t, blob, out)
	assert.Equal(t, EncryptionNone, mode)
}

func TestEncryptFindingsBlob_RoundTripsThroughDecryptWithAESGCM(t *testing.T) {
	provider := staticKeyProvider{key: []byte("a 32-char-ish symmetric key!!!!")}
	blob := []byte(`{"run_id":"run-1","health_score":80}`)

	encrypted, mode, err := EncryptFindingsBlob(context.Background(), provider, "acme", blob)
	require.NoError(t, err)
	assert.Equal(t, EncryptionAESGCM, mode)
	assert.NotEqual(t, blob, encrypted)

	decrypted, err := DecryptFindingsBlob(context.Background(), provider, "acme", mode, encrypted)
	require.NoError(t, err)
	assert.Equal(t, blob, decrypted)
}

func TestEncryptFindingsBlob_KeyResolutionErrorPropagates(t *testing.T) {
	provider := staticKeyProvider{err: errors.New("kms unavailable")}
	_, _, err := EncryptFindingsBlob(context.Background(), provider, "acme", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kms unavailable")
}

func TestDecryptFindingsBlob_ModeNoneReturnsRawUnchanged(t *testing.T) {
	raw := []byte("not encrypted")
	out, err := DecryptFindingsBlob(context.Background(), nil, "acme", EncryptionNone, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestDecryptFindingsBlob_WithoutProviderForNonNoneModeErrors(t *testing.T) {
	_, err := DecryptFindingsBlob(context.Background(), nil, "acme", EncryptionAESGCM, []byte("ciphertext"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key provider")
}

func TestDecryptFindingsBlob_CiphertextShorterThanNonceErrors(t *testing.T) {
	provider := staticKeyProvider{key: []byte("a 32-char-ish symmetric key!!!!")}
	_, err := DecryptFindingsBlob(context.Background(), provider, "acme", EncryptionAESGCM, []byte("short"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shorter than nonce")
}
