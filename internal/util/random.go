// Package util provides utility functions for the CopilotRelay application.
package util

import (
	"crypto/rand"
	"encoding/hex"
	mathrand "math/rand/v2"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// The bytes come from crypto/rand so the result is safe to use in signed token claims.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic("util.GenerateRandomHex: " + err.Error())
	}
	return hex.EncodeToString(buf)[:length]
}

// PickIndex returns a uniformly distributed index in [0, n). It returns 0 when n <= 0.
func PickIndex(n int) int {
	if n <= 0 {
		return 0
	}
	return mathrand.IntN(n)
}
