package purchase

import (
	crand "crypto/rand"
	"math/big"

	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// responderBandSize is the width of the XOR-closest band the responder is
// drawn from.
const responderBandSize = 12

// drawResponder picks a uniformly random peer from the responderBandSize
// XOR-closest active peers to buyer, using crypto/rand so the draw can't
// be biased by an attacker who can predict a weaker PRNG.
func drawResponder(buyer protocol.Identity, snap peer.Snapshot) (peer.RankedPeer, bool) {
	band := peer.TopNByXor(buyer, snap, responderBandSize)
	if len(band) == 0 {
		return peer.RankedPeer{}, false
	}
	idx, err := crand.Int(crand.Reader, big.NewInt(int64(len(band))))
	if err != nil {
		return band[0], true
	}
	return band[idx.Int64()], true
}

// closestAgreeingPeer picks the XOR-closest peer, to buyer, among the set
// of agreeing signers carried by a purchase response.
func closestAgreeingPeer(buyer protocol.Identity, snap peer.Snapshot, agreeing []protocol.Identity) (peer.RankedPeer, bool) {
	allowed := make(map[protocol.Identity]bool, len(agreeing))
	for _, id := range agreeing {
		allowed[id] = true
	}
	filtered := make([]protocol.Peer, 0, len(snap.Peers))
	for _, p := range snap.Peers {
		if allowed[p.Identity] {
			filtered = append(filtered, p)
		}
	}
	return peer.ClosestToIdentity(buyer, peer.Snapshot{Peers: filtered})
}
