package security

import (
	"crypto/rand"
	"encoding/hex"
)

// ResetTokenBytes gives reset tokens 256 bits of entropy.
const ResetTokenBytes = 32

// NewResetToken returns a hex encoded random token.
func NewResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
