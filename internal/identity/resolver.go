// Package identity derives account login identifiers from TLS client
// certificate subjects.
package identity

import (
	"crypto/sha1" //nolint:gosec // used as a stable key derivation, not for integrity
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"
)

// Derivation constants.
const (
	// MaxCommonNameLength is the maximum number of characters kept from the
	// capitalized common name.
	MaxCommonNameLength = 30
	// HashSuffixLength is the number of hex characters of the DN digest
	// appended to the login.
	HashSuffixLength = 10
)

// ErrNoClientCertificate is returned when the request carries no
// certificate common name.
var ErrNoClientCertificate = errors.New(
	"a client X.509 certificate with a common name is required",
)

// Subject holds the certificate subject fields supplied by the TLS layer
// for a single request. Both fields may be empty.
type Subject struct {
	CommonName        string
	DistinguishedName string
}

// Empty reports whether no certificate common name is present.
func (s Subject) Empty() bool {
	return s.CommonName == ""
}

// Resolve derives the login identifier for the given subject.
//
// The login is the word-capitalized common name cut to
// MaxCommonNameLength characters, a single space, and the first
// HashSuffixLength hex characters of the SHA-1 digest of the raw
// distinguished name. Equal subjects always yield equal logins.
func Resolve(subject Subject) (string, error) {
	if subject.Empty() {
		return "", ErrNoClientCertificate
	}

	name := truncate(capitalizeWords(subject.CommonName), MaxCommonNameLength)

	return name + " " + dnDigest(subject.DistinguishedName), nil
}

// capitalizeWords upper-cases the first character of every
// whitespace-delimited word when it is an ASCII letter and leaves every
// other character untouched.
func capitalizeWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	atWordStart := true
	for _, r := range s {
		if atWordStart && r >= 'a' && r <= 'z' {
			b.WriteRune(r - 'a' + 'A')
		} else {
			b.WriteRune(r)
		}
		atWordStart = isWordDelimiter(r)
	}

	return b.String()
}

// isWordDelimiter matches the whitespace set used for word capitalization.
func isWordDelimiter(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '\f', '\v':
		return true
	default:
		return false
	}
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}

	return s
}

// dnDigest returns the lowercase hex SHA-1 prefix of the distinguished name.
func dnDigest(dn string) string {
	sum := sha1.Sum([]byte(dn)) //nolint:gosec // see import comment
	return hex.EncodeToString(sum[:])[:HashSuffixLength]
}
