package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a 64-character hex token with 256 bits of entropy. The
// token is a bearer capability for a hold, so it must be opaque and
// unguessable rather than a row id.
func New() (string, error) {
	const op = "token.New"

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return hex.EncodeToString(buf), nil
}
