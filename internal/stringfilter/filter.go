// Package stringfilter validates player-supplied names, channel names and
// email addresses. The slang filter proper is an external collaborator; this
// package carries the structural checks every endpoint applies.
package stringfilter

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Normalize brings a player-supplied name into NFC form so that visually
// identical names compare equal in uniqueness checks.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// FindDoubleQuotes reports whether the string carries stray quote
// characters, which are rejected everywhere names are accepted.
func FindDoubleQuotes(s string) bool {
	return strings.ContainsAny(s, `"'`)
}

// IsEmailValid performs a structural check of an email address.
func IsEmailValid(email string) bool {
	return emailRE.MatchString(email)
}

// FilterContent returns false when the string contains content that is not
// acceptable in a name: control characters or leading/trailing whitespace.
// Slang filtering is delegated to the configured word list, which may be
// empty.
func FilterContent(s string) bool {
	if s != strings.TrimSpace(s) {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			return false
		}
	}
	return true
}
