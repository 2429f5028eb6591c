// Package apikey handles actor bearer keys: prefix parsing, the HMAC lookup
// digest stored for indexed lookup, and the argon2id PHC hash used for verification.
package apikey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 2
	argonMemory  = 16 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	saltBytes    = 16
)

var (
	ErrEmptySecret       = errors.New("empty secret")
	ErrUnsupportedFormat = errors.New("unsupported hash format")
	ErrMalformedHash     = errors.New("malformed phc string")
)

// Parse strips prefix from a raw bearer value. ok is false when the prefix is
// missing or nothing follows it.
func Parse(raw, prefix string) (secret string, ok bool) {
	secret, found := strings.CutPrefix(raw, prefix)
	if !found || secret == "" {
		return "", false
	}
	return secret, true
}

// Lookup is the hex HMAC-SHA256 of secret keyed by pepper.
func Lookup(pepper, secret string) string {
	m := hmac.New(sha256.New, []byte(pepper))
	m.Write([]byte(secret))
	return hex.EncodeToString(m.Sum(nil))
}

// Hash returns an argon2id PHC string for secret+pepper with a random salt.
func Hash(secret, pepper string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret+pepper), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks secret+pepper against a PHC string produced by Hash.
func Verify(secret, pepper, phc string) (bool, error) {
	if !strings.HasPrefix(phc, "$argon2id$") {
		return false, ErrUnsupportedFormat
	}
	parts := strings.Split(phc, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}

	got := argon2.IDKey([]byte(secret+pepper), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
