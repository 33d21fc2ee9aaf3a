package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataCanBeEncryptedAndDecrypted(t *testing.T) {
	data := []byte("my-secret-mnemonic")
	passphrase := "foo"

	ciphertext, err := Encrypt(passphrase, data)
	require.NoError(t, err)
	require.Len(t, strings.Split(ciphertext, "-"), 3)

	plaintext, err := Decrypt(passphrase, ciphertext)
	require.NoError(t, err)
	require.EqualValues(t, data, plaintext)

	// salt and nonce are random
	again, err := Encrypt(passphrase, data)
	require.NoError(t, err)
	require.NotEqual(t, ciphertext, again)
}

func TestDecryptWithWrongPassphrase(t *testing.T) {
	ciphertext, err := Encrypt("foo", []byte("secret"))
	require.NoError(t, err)

	_, err = Decrypt("bar", ciphertext)
	require.ErrorIs(t, err, ErrDecryptingValue)
	require.ErrorContains(t, err, "incorrect passphrase")
}

func TestEncryptEmptyPassphrase(t *testing.T) {
	_, err := Encrypt("", []byte("secret"))
	require.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestDecryptMalformed(t *testing.T) {
	for _, data := range []string{"", "abc", "00-11", "zz-00-00", "0011-00-00"} {
		_, err := Decrypt("foo", data)
		require.ErrorIs(t, err, ErrInvalidCiphertext, data)
	}
}
