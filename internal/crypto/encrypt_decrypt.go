package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize         = 8
	cipherKeySize    = 32
	cipherIterations = 1000
)

var (
	ErrEmptyPassphrase   = errors.New("passphrase cannot be empty")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptingValue   = errors.New("error decrypting data (incorrect passphrase?)")
)

// Encrypt seals plaintext with AES-GCM, the key is derived from the
// passphrase. The result is "salt-nonce-ciphertext" in hex.
func Encrypt(passphrase string, plaintext []byte) (string, error) {
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}
	cipherKey, salt, err := deriveCipherKey(passphrase, nil)
	if err != nil {
		return "", fmt.Errorf("error generating cipher key: %w", err)
	}
	gcm, err := newGCM(cipherKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return "", fmt.Errorf("error generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	return strings.Join([]string{hex.EncodeToString(salt), hex.EncodeToString(nonce), hex.EncodeToString(ciphertext)}, "-"), nil
}

func Decrypt(passphrase string, data string) ([]byte, error) {
	arr := strings.Split(data, "-")
	if len(arr) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidCiphertext, len(arr))
	}
	parts := make([][]byte, len(arr))
	for i, s := range arr {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: error decoding hex data: %v", ErrInvalidCiphertext, err)
		}
		parts[i] = b
	}
	salt, nonce, ciphertext := parts[0], parts[1], parts[2]
	if len(salt) != saltSize {
		return nil, fmt.Errorf("%w: salt size %d", ErrInvalidCiphertext, len(salt))
	}

	key, _, err := deriveCipherKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("error deriving cipher key: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce size %d", ErrInvalidCiphertext, len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptingValue, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("error creating GCM cipher: %w", err)
	}
	return gcm, nil
}

func deriveCipherKey(passphrase string, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	return pbkdf2.Key([]byte(passphrase), salt, cipherIterations, cipherKeySize, sha256.New), salt, nil
}
