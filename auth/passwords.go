package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters; key length matches the stored hash width.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// HashPassword derives a salted scrypt hash, stored as "salt.hash" hex.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	saltHex := hex.EncodeToString(salt)
	hash, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return saltHex + "." + hex.EncodeToString(hash), nil
}

// VerifyPassword checks a password against a stored "salt.hash" value.
func VerifyPassword(password, stored string) bool {
	salt, storedHash, ok := strings.Cut(stored, ".")
	if !ok {
		return false
	}
	hash, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(hash)), []byte(storedHash)) == 1
}
