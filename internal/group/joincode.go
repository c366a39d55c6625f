package group

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// joinCodeLength is the length of a group join code.
const joinCodeLength = 6

// joinCodeAlphabet is uppercase-only; matching is case-insensitive via
// NormalizeJoinCode.
const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewJoinCode generates a random 6-character alphanumeric join code.
func NewJoinCode() (string, error) {
	b := make([]byte, joinCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	for i := range b {
		b[i] = joinCodeAlphabet[int(b[i])%len(joinCodeAlphabet)]
	}
	return string(b), nil
}

// NormalizeJoinCode upper-cases and trims a user-supplied code so that
// matching is case-insensitive.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
