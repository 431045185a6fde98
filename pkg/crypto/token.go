package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var (
	ErrEmptyKey = errors.New("key and digest cannot be empty")
)

const (
	DefaultKeyLength = 32 // 256 bits
)

// AccessKey is a console access key and the digest kept in memory to check it.
type AccessKey struct {
	Key    string // shown once to the operator
	Digest string // compared against presented keys
}

func randomKey(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = DefaultKeyLength
	}

	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAccessKey generates a random URL-safe key of byteLength bytes
// (DefaultKeyLength when <= 0) together with its digest.
func NewAccessKey(byteLength int) (*AccessKey, error) {
	key, err := randomKey(byteLength)
	if err != nil {
		return nil, err
	}

	return &AccessKey{Key: key, Digest: Digest(key)}, nil
}

// VerifyKey reports whether key matches digest in constant time.
func VerifyKey(key, digest string) (bool, error) {
	if key == "" || digest == "" {
		return false, ErrEmptyKey
	}

	return subtle.ConstantTimeCompare([]byte(Digest(key)), []byte(digest)) == 1, nil
}

// Digest returns the hex sha256 of key.
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// KeyVerifier checks a presented console key.
type KeyVerifier interface {
	VerifyConsoleKey(presented string) bool
}

// DigestVerifier accepts the key behind a sha256 digest.
type DigestVerifier string

func (d DigestVerifier) VerifyConsoleKey(presented string) bool {
	ok, err := VerifyKey(presented, string(d))
	return err == nil && ok
}

// PassphraseVerifier accepts the passphrase behind an encoded hash.
type PassphraseVerifier struct {
	Hasher  PassphraseHasher
	Encoded string
}

func (p PassphraseVerifier) VerifyConsoleKey(presented string) bool {
	if presented == "" {
		return false
	}
	ok, err := p.Hasher.Verify(presented, p.Encoded)
	return err == nil && ok
}
