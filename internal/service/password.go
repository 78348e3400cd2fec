package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes     = 16
	digestBytes   = 32
	minIterations = 10000
)

// PasswordHasher deriva digests verificables con PBKDF2-HMAC-SHA256 y una
// sal aleatoria por llamada. El plaintext nunca se almacena.
type PasswordHasher struct {
	iterations int
}

func NewPasswordHasher(iterations int) *PasswordHasher {
	if iterations < minIterations {
		iterations = minIterations
	}
	return &PasswordHasher{iterations: iterations}
}

// Hash genera una sal fresca y devuelve (digest, sal) en hex.
func (h *PasswordHasher) Hash(plaintext string) (string, string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	digest := pbkdf2.Key([]byte(plaintext), salt, h.iterations, digestBytes, sha256.New)
	return hex.EncodeToString(digest), hex.EncodeToString(salt), nil
}

// Verify recalcula el digest con la sal almacenada y compara en tiempo
// constante.
func (h *PasswordHasher) Verify(plaintext, digest, salt string) bool {
	saltRaw, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	computed := pbkdf2.Key([]byte(plaintext), saltRaw, h.iterations, digestBytes, sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
