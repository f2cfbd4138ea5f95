package token

import (
	"crypto/rand"
	"encoding/hex"
)

// Length is the fixed length of handoff tokens.
const Length = 32

// New mints a fresh unguessable token of Length characters.
func New() string {
	var b [Length / 2]byte
	// crypto/rand.Read never fails on supported platforms.
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
