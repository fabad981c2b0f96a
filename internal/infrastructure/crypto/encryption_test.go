package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestNewAESKeyVault(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		vault, err := NewAESKeyVault(testKey)
		require.NoError(t, err)
		assert.NotNil(t, vault)
	})

	t.Run("key not hex", func(t *testing.T) {
		_, err := NewAESKeyVault("not-hex-at-all")
		assert.Error(t, err)
	})

	t.Run("key wrong length", func(t *testing.T) {
		_, err := NewAESKeyVault(hex.EncodeToString([]byte("short")))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "32 bytes")
	})
}

func TestAESKeyVault_RoundTrip(t *testing.T) {
	vault, err := NewAESKeyVault(testKey)
	require.NoError(t, err)

	wif := "cT3fqpAruuJqHTDN79DQn5N6hAc7SVkC8s8z9ZK2gfk2bZrjVmNa"

	sealed, err := vault.Encrypt(wif)
	require.NoError(t, err)
	assert.NotEqual(t, wif, sealed)
	assert.False(t, strings.Contains(sealed, wif))

	opened, err := vault.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, wif, opened)
}

func TestAESKeyVault_NonceUniqueness(t *testing.T) {
	vault, err := NewAESKeyVault(testKey)
	require.NoError(t, err)

	first, err := vault.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := vault.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAESKeyVault_WrongKeyFails(t *testing.T) {
	vault, err := NewAESKeyVault(testKey)
	require.NoError(t, err)

	sealed, err := vault.Encrypt("secret material")
	require.NoError(t, err)

	otherKey := strings.Repeat("ab", 32)
	other, err := NewAESKeyVault(otherKey)
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestAESKeyVault_TamperedCiphertext(t *testing.T) {
	vault, err := NewAESKeyVault(testKey)
	require.NoError(t, err)

	_, err = vault.Decrypt("c2hvcnQ=")
	assert.Error(t, err)

	_, err = vault.Decrypt("%%% not base64 %%%")
	assert.Error(t, err)
}
