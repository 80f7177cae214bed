// Package auth implements the server's credential primitives: scrypt password
// hashing, vault key hashes, bearer tokens and random secrets.
//
// Every equality check on a secret goes through constant-time comparison.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. dklen is fixed at 32 bytes.
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
	keyLen  = 32
)

// secretAlphabet is the printable ASCII alphabet used for generated salts.
const secretAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// SecretLength is the length of generated salts.
const SecretLength = 20

// scryptKey derives the raw scrypt key for a password and salt.
func scryptKey(password, salt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt derivation failed: %w", err)
	}
	return key, nil
}

// HashPassword returns the lowercase hex scrypt hash stored for a user password.
func HashPassword(password, salt string) (string, error) {
	key, err := scryptKey(password, salt)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// VerifyPassword checks a password against a stored hash in constant time.
func VerifyPassword(password, salt, storedHash string) bool {
	computed, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return ConstantTimeEquals(computed, storedHash)
}

// KeyHash derives the vault key hash: sha256(scrypt(password, salt)) in
// lowercase hex. The server only ever compares this value for equality.
func KeyHash(password, salt string) (string, error) {
	key, err := scryptKey(password, salt)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:]), nil
}

// ConstantTimeEquals compares two strings without short-circuiting on the
// first mismatching byte.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateToken returns a random 128-bit bearer token, hex encoded.
func GenerateToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// GenerateSecret returns a random secret of n characters drawn from the
// printable ASCII alphabet. Used for salts and server-generated vault
// passwords.
func GenerateSecret(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		out[i] = secretAlphabet[idx.Int64()]
	}
	return string(out), nil
}
