package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString(make([]byte, 32))

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	ciphertext, err := box.Encrypt("https://hooks.slack.com/services/T000/B000/XXXX")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "hooks.slack.com")

	plaintext, err := box.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.slack.com/services/T000/B000/XXXX", plaintext)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	ciphertext, err := box.Encrypt("secret")
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = box.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptTooShort(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	_, err = box.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewBoxRejectsBadKey(t *testing.T) {
	_, err := NewBox("not-base64!!!")
	assert.Error(t, err)

	_, err = NewBox(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}
