package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestNewAESCrypto_InvalidKeySize(t *testing.T) {
	_, err := NewAESCrypto([]byte("too-short"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := NewAESCrypto(testKey)
	require.NoError(t, err)

	plaintext := "MIIEvQIBADANBgkqhkiG9w0BAQEFAASCBKcwggSjAgEAAoIBAQ"
	encrypted, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_EmptyString(t *testing.T) {
	c, err := NewAESCrypto(testKey)
	require.NoError(t, err)

	encrypted, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)

	decrypted, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	c, err := NewAESCrypto(testKey)
	require.NoError(t, err)

	first, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	// Random nonce must produce distinct ciphertexts
	assert.NotEqual(t, first, second)
}

func TestDecrypt_Tampered(t *testing.T) {
	c, err := NewAESCrypto(testKey)
	require.NoError(t, err)

	encrypted, err := c.Encrypt("sensitive credential")
	require.NoError(t, err)

	// Flip a character in the base64 payload
	tampered := []byte(encrypted)
	if tampered[len(tampered)-5] == 'A' {
		tampered[len(tampered)-5] = 'B'
	} else {
		tampered[len(tampered)-5] = 'A'
	}

	_, err = c.Decrypt(string(tampered))
	require.Error(t, err)
}

func TestDecrypt_Malformed(t *testing.T) {
	c, err := NewAESCrypto(testKey)
	require.NoError(t, err)

	_, err = c.Decrypt("not-base64!!!")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "base64"))

	// Valid base64 but shorter than a nonce
	_, err = c.Decrypt("YWJj")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
