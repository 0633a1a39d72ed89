// Package auth provides the credential store and token service backing
// the bearer-token authentication flow.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2Params hold the cost parameters embedded in every digest so that
// verification keeps working after the defaults change.
type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
	saltLen uint32
}

// defaultParams follow the OWASP recommended minimum for Argon2id.
var defaultParams = argon2Params{
	memory:  64 * 1024, // 64 MB
	time:    3,
	threads: 4,
	keyLen:  32,
	saltLen: 16,
}

var (
	// ErrInvalidDigest indicates the stored digest is not a valid PHC string.
	ErrInvalidDigest = errors.New("invalid password digest format")
	// ErrIncompatibleVersion indicates the digest was produced by an
	// unsupported argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// HashPassword derives an Argon2id digest of the password with a fresh
// random salt. The result is a PHC string:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func HashPassword(password string) (string, error) {
	p := defaultParams

	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the digest with the parameters embedded in
// the PHC string and compares in constant time.
func VerifyPassword(password, digest string) (bool, error) {
	p, salt, want, err := parseDigest(digest)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// parseDigest splits a PHC-format argon2id string into its parameters,
// salt and key.
func parseDigest(digest string) (argon2Params, []byte, []byte, error) {
	var p argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrInvalidDigest
	}
	if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, ErrInvalidDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrInvalidDigest
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, ErrInvalidDigest
	}

	return p, salt, key, nil
}
