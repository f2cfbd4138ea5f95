package account

import (
	"strings"
	"testing"
)

func TestSha256Hex(t *testing.T) {
	// Known vector.
	const want = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
	if got := sha256Hex("password"); got != want {
		t.Errorf("sha256Hex(password) = %s, want %s", got, want)
	}
	if sha256Hex("a") == sha256Hex("b") {
		t.Error("distinct inputs collided")
	}
}

func TestRandomSalt(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		salt := randomSalt()
		if len(salt) != saltLength {
			t.Fatalf("salt %q has length %d, want %d", salt, len(salt), saltLength)
		}
		for _, c := range []byte(salt) {
			if !strings.Contains(string(saltAlphabet), string(c)) {
				t.Fatalf("salt %q contains %q outside the alphabet", salt, c)
			}
		}
		seen[salt] = struct{}{}
	}
	if len(seen) < 2 {
		t.Error("salts are not varying")
	}
}

// The login exchange: the server stores the client's password digest
// verbatim and challenges with a salt; the client answers with the digest
// of (stored digest + salt).
func TestSaltedVerification(t *testing.T) {
	stored := sha256Hex("opensesame") // what registration persisted
	salt := "Ab3x"

	clientAnswer := sha256Hex(stored + salt)
	if sha256Hex(stored+salt) != clientAnswer {
		t.Fatal("matching answer rejected")
	}

	wrongStored := sha256Hex("opensesane")
	if sha256Hex(wrongStored+salt) == clientAnswer {
		t.Error("wrong password accepted")
	}
	if sha256Hex(stored+"Zz9q") == clientAnswer {
		t.Error("stale salt accepted")
	}
}
