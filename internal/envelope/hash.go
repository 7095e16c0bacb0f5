package envelope

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HashFields returns the lowercase hex-encoded SHA3-256 digest of
// Canonicalize(msg).
func HashFields(msg interface{}) (string, error) {
	b, err := Canonicalize(msg)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
