// Package crypto holds the non-password cryptographic helpers: hardware-id
// hashing, license key generation and app secret generation. Password
// hashing lives in internal/auth.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeyPrefix is the leading segment of generated license keys.
const KeyPrefix = "GOU"

// HashHwid applies the one-way transform used for every hardware-id
// comparison and storage. Raw hardware ids never hit the store.
func HashHwid(hwid string) string {
	sum := sha256.Sum256([]byte(hwid))
	return hex.EncodeToString(sum[:])
}

// GenerateKeyValue draws a random license key of the form
// GOU-XXXXXXXX-XXXXXXXX-XXXXXXXX-XXXXXXXX (hex, upper case).
func GenerateKeyValue() (string, error) {
	segs := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("key generation: %w", err)
		}
		segs = append(segs, strings.ToUpper(hex.EncodeToString(b)))
	}
	return KeyPrefix + "-" + strings.Join(segs, "-"), nil
}

// GenerateAppSecret returns a 32-byte random secret in base64url.
func GenerateAppSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("secret generation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
