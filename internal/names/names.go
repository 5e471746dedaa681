// Package names holds the naming rules shared by every named metadata
// object in a gridgo dataset.
package names

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLen is the maximum name length in bytes.
const MaxLen = 256

// TooLong reports whether name exceeds MaxLen.
func TooLong(name string) bool {
	return len(name) > MaxLen
}

// Valid reports whether name is acceptable for a metadata object: non-empty
// UTF-8, starting with a letter, digit or underscore, free of control
// characters and path separators, and without trailing whitespace. Length is
// checked separately via TooLong so callers can distinguish the failures.
func Valid(name string) bool {
	if name == "" || !utf8.ValidString(name) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	if first != '_' && !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		return false
	}
	for _, r := range name {
		if r == '/' || unicode.IsControl(r) {
			return false
		}
	}
	if strings.TrimRightFunc(name, unicode.IsSpace) != name {
		return false
	}
	return true
}
