package rpcclient

import (
	"context"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// Sign implements protocol.Signer by delegating to the chain node's
// `pastelid sign` RPC. This package never holds or derives private key
// material; the node unlocks the identity's key with passphrase for the
// duration of the call.
func (c *Client) Sign(identity protocol.Identity, hexHash string, passphrase string) (string, error) {
	var sig string
	err := c.Call(context.Background(), "pastelid", []interface{}{"sign", hexHash, string(identity), passphrase}, &sig)
	if err != nil {
		return "", err
	}
	return sig, nil
}

// Verify implements protocol.Signer by delegating to `pastelid verify`.
func (c *Client) Verify(identity protocol.Identity, hexHash string, signature string) (bool, error) {
	var ok bool
	err := c.Call(context.Background(), "pastelid", []interface{}{"verify", hexHash, signature, string(identity)}, &ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}
