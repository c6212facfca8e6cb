package cryptox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ConfirmationCodeBytes gives 24 bits of entropy, six hex digits.
const ConfirmationCodeBytes = 3

// GenerateHexCode returns size random bytes as a lowercase hex string.
func GenerateHexCode(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("code size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// NewConfirmationCode returns a fresh six hex digit confirmation code.
func NewConfirmationCode() (string, error) {
	return GenerateHexCode(ConfirmationCodeBytes)
}
