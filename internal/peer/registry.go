// Package peer maintains a snapshot of the supernode set and answers the
// XOR-distance routing queries the purchase and inference engines depend
// on.
package peer

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// SupernodePort is the fixed port every supernode's HTTP interface listens
// on.
const SupernodePort = 7123

// ListFullFetcher is the subset of the chain-node RPC façade the registry
// needs: the masternode-list snapshot.
type ListFullFetcher interface {
	MasternodeListFull(ctx context.Context) ([]protocol.Peer, error)
}

// Snapshot is an immutable point-in-time view of the peer set. Registry
// keeps no copy: a caller that reuses a snapshot across one operation
// holds it itself.
type Snapshot struct {
	Peers []protocol.Peer
}

// Registry refreshes and filters peer snapshots and answers routing
// queries against them.
type Registry struct {
	fetcher ListFullFetcher
}

// New builds a Registry backed by fetcher.
func New(fetcher ListFullFetcher) *Registry {
	return &Registry{fetcher: fetcher}
}

// Refresh pulls the masternode list from the chain node.
func (r *Registry) Refresh(ctx context.Context) (Snapshot, error) {
	peers, err := r.fetcher.MasternodeListFull(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh peer snapshot: %w", err)
	}
	return Snapshot{Peers: peers}, nil
}

// FilterActive keeps only peers whose status is ENABLED and that carry a
// well-formed ip:port.
func FilterActive(snap Snapshot) Snapshot {
	out := make([]protocol.Peer, 0, len(snap.Peers))
	for _, p := range snap.Peers {
		if p.Status != protocol.StatusEnabled {
			continue
		}
		if _, _, err := net.SplitHostPort(p.IPPort); err != nil {
			continue
		}
		out = append(out, p)
	}
	return Snapshot{Peers: out}
}

// RankedPeer is one entry of a top_n_by_xor result: the peer identity and
// the URL its HTTP endpoints are reachable at.
type RankedPeer struct {
	Identity protocol.Identity
	URL      string
	Peer     protocol.Peer
}

// xorDistance computes SHA3-256(id1) XOR SHA3-256(id2) as an unsigned
// 256-bit integer.
func xorDistance(a, b protocol.Identity) *big.Int {
	ha := sha3.Sum256([]byte(a))
	hb := sha3.Sum256([]byte(b))
	var xored [32]byte
	for i := range ha {
		xored[i] = ha[i] ^ hb[i]
	}
	return new(big.Int).SetBytes(xored[:])
}

// TopNByXor sorts snap's peers by ascending XOR distance to identity, ties
// broken by lexicographic identity, and returns the first n.
// The result is a stable prefix of TopNByXor(identity, snap, n+1) for any
// n, since it is a single ascending sort over the whole set truncated to
// n entries.
func TopNByXor(identity protocol.Identity, snap Snapshot, n int) []RankedPeer {
	peers := make([]protocol.Peer, len(snap.Peers))
	copy(peers, snap.Peers)

	type scored struct {
		peer protocol.Peer
		dist *big.Int
	}
	scoredPeers := make([]scored, len(peers))
	for i, p := range peers {
		routingID := p.ExtKey
		if routingID == "" {
			routingID = p.Identity
		}
		scoredPeers[i] = scored{peer: p, dist: xorDistance(identity, routingID)}
	}
	sort.SliceStable(scoredPeers, func(i, j int) bool {
		c := scoredPeers[i].dist.Cmp(scoredPeers[j].dist)
		if c != 0 {
			return c < 0
		}
		return scoredPeers[i].peer.Identity < scoredPeers[j].peer.Identity
	})

	if n > len(scoredPeers) {
		n = len(scoredPeers)
	}
	out := make([]RankedPeer, n)
	for i := 0; i < n; i++ {
		p := scoredPeers[i].peer
		out[i] = RankedPeer{
			Identity: p.Identity,
			URL:      peerURL(p),
			Peer:     p,
		}
	}
	return out
}

// ClosestToIdentity is top_n_by_xor(identity, snap, 1)[0].
func ClosestToIdentity(identity protocol.Identity, snap Snapshot) (RankedPeer, bool) {
	top := TopNByXor(identity, snap, 1)
	if len(top) == 0 {
		return RankedPeer{}, false
	}
	return top[0], true
}

// URLForPeer exposes peerURL's ip:port -> http://host:7123 formatting for
// callers that already hold a concrete protocol.Peer (e.g. a broadcast
// target looked up by identity rather than ranked by distance).
func URLForPeer(p protocol.Peer) string {
	return peerURL(p)
}

func peerURL(p protocol.Peer) string {
	host := p.IPPort
	if h, _, err := net.SplitHostPort(p.IPPort); err == nil {
		host = h
	} else if i := strings.IndexByte(p.IPPort, ':'); i >= 0 {
		host = p.IPPort[:i]
	}
	return fmt.Sprintf("http://%s:%d", host, SupernodePort)
}
