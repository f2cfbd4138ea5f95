package account

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// sha256Hex is the credential digest used across login, register and the
// password/email change flows. Storage never hashes; every digest is
// computed here before it crosses the storage boundary.
func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

const saltLength = 4

var saltAlphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// randomSalt mints the per-login-attempt challenge string.
func randomSalt() string {
	b := make([]byte, saltLength)
	if _, err := rand.Read(b); err != nil {
		panic("account: reading random salt: " + err.Error())
	}
	for i := range b {
		b[i] = saltAlphabet[int(b[i])%len(saltAlphabet)]
	}
	return string(b)
}
