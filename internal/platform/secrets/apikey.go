package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// SecretPrefix marks model API secrets.
	SecretPrefix = "tbk_"
	// KeyIDPrefix marks the public key identifier shown in listings.
	KeyIDPrefix = "tb_"
)

// GeneratedKey is a freshly minted credential. Secret is only ever held in
// memory; storage keeps Hash, Fingerprint and an encrypted copy.
type GeneratedKey struct {
	KeyID       string
	Secret      string
	Hash        string
	Fingerprint string
}

func GenerateAPIKey() (GeneratedKey, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return GeneratedKey{}, fmt.Errorf("secrets: generate key: %w", err)
	}
	idBytes := make([]byte, 6)
	if _, err := rand.Read(idBytes); err != nil {
		return GeneratedKey{}, fmt.Errorf("secrets: generate key id: %w", err)
	}
	secret := SecretPrefix + hex.EncodeToString(secretBytes)
	hash, err := HashSecret(secret)
	if err != nil {
		return GeneratedKey{}, err
	}
	return GeneratedKey{
		KeyID:       KeyIDPrefix + hex.EncodeToString(idBytes),
		Secret:      secret,
		Hash:        hash,
		Fingerprint: Fingerprint(secret),
	}, nil
}

func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("secrets: hash key: %w", err)
	}
	return string(h), nil
}

func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Fingerprint is the hex SHA-256 of secret, used for indexed lookup.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// RandomToken returns n random bytes hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
