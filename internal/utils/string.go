package utils

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// RandomHex returns n random bytes as 2n lowercase hex characters
func RandomHex(n int) string {
	if n <= 0 {
		return ""
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Slug lowercases s and drops everything outside [a-z0-9]
func Slug(s string) string {
	return nonSlugChars.ReplaceAllString(strings.ToLower(s), "")
}

// MaskSecret keeps the first four characters of a credential for logs
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "..."
}
