package envelope

import (
	"fmt"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// Sign computes the message's hash field and signs it under identity via
// the supplied Signer, which in production delegates to the chain node's
// `pastelid sign` RPC. Sign never touches key material
// itself.
func Sign(signer protocol.Signer, identity protocol.Identity, passphrase string, msg interface{}) (hash string, signature string, err error) {
	hash, err = HashFields(msg)
	if err != nil {
		return "", "", fmt.Errorf("hash message: %w", err)
	}
	signature, err = signer.Sign(identity, hash, passphrase)
	if err != nil {
		return "", "", fmt.Errorf("sign hash: %w", err)
	}
	return hash, signature, nil
}

// Verify recomputes msg's hash and checks both that it equals wantHash and
// that signature verifies under identity for that hash, via the supplied
// Signer (delegating to `pastelid verify`).
func Verify(signer protocol.Signer, identity protocol.Identity, wantHash, signature string, msg interface{}) (bool, error) {
	got, err := HashFields(msg)
	if err != nil {
		return false, fmt.Errorf("hash message: %w", err)
	}
	if got != wantHash {
		return false, nil
	}
	return signer.Verify(identity, wantHash, signature)
}
