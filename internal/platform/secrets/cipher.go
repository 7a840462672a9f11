package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32
	pbkdf2Iterations = 100_000
	// Fixed salt: the key is derived from a server-side secret, not a user password.
	derivationSalt = "tunebridge/api-key-secret/v1"
)

var ErrCiphertext = errors.New("secrets: malformed ciphertext")

// Cipher encrypts short secrets for storage so their owner can view them later.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type gcmCipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AES-256-GCM key from passphrase with PBKDF2-SHA256.
func NewCipher(passphrase string) (Cipher, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, fmt.Errorf("secrets: empty encryption passphrase")
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(derivationSalt), pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: init aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}
	return &gcmCipher{aead: aead}, nil
}

// Encrypt returns base64(nonce || sealed).
func (c *gcmCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *gcmCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCiphertext
	}
	ns := c.aead.NonceSize()
	if len(raw) <= ns {
		return "", ErrCiphertext
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open: %w", err)
	}
	return string(plain), nil
}
