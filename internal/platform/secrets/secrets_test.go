package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCipherRoundTripAndTamper(t *testing.T) {
	c, err := NewCipher("unit-test-passphrase")
	require.NoError(t, err)

	ct, err := c.Encrypt("tbk_abc")
	require.NoError(t, err)
	require.NotContains(t, ct, "tbk_abc")

	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, "tbk_abc", pt)

	other, err := NewCipher("different-passphrase")
	require.NoError(t, err)
	_, err = other.Decrypt(ct)
	require.Error(t, err)

	_, err = c.Decrypt("not base64!")
	require.ErrorIs(t, err, ErrCiphertext)

	_, err = NewCipher("  ")
	require.Error(t, err)
}

func TestCipherUsesFreshNonce(t *testing.T) {
	c, err := NewCipher("unit-test-passphrase")
	require.NoError(t, err)
	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGenerateAPIKey(t *testing.T) {
	k, err := GenerateAPIKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(k.Secret, SecretPrefix))
	require.True(t, strings.HasPrefix(k.KeyID, KeyIDPrefix))
	require.Len(t, k.Fingerprint, 64)
	require.Equal(t, Fingerprint(k.Secret), k.Fingerprint)
	require.True(t, VerifySecret(k.Hash, k.Secret))
	require.False(t, VerifySecret(k.Hash, k.Secret+"x"))

	k2, err := GenerateAPIKey()
	require.NoError(t, err)
	require.NotEqual(t, k.Secret, k2.Secret)
}
