package peer

import (
	"testing"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

func mkSnapshot(n int) Snapshot {
	peers := make([]protocol.Peer, n)
	for i := 0; i < n; i++ {
		id := protocol.Identity(string(rune('a' + i)))
		peers[i] = protocol.Peer{
			Identity: id,
			ExtKey:   id,
			Status:   protocol.StatusEnabled,
			IPPort:   "10.0.0.1:9932",
		}
	}
	return Snapshot{Peers: peers}
}

func TestFilterActiveDropsDisabledAndMalformed(t *testing.T) {
	snap := Snapshot{Peers: []protocol.Peer{
		{Identity: "a", Status: protocol.StatusEnabled, IPPort: "1.2.3.4:9932"},
		{Identity: "b", Status: "DISABLED", IPPort: "1.2.3.4:9932"},
		{Identity: "c", Status: protocol.StatusEnabled, IPPort: "not-a-host-port"},
	}}
	out := FilterActive(snap)
	if len(out.Peers) != 1 || out.Peers[0].Identity != "a" {
		t.Fatalf("expected only peer a to survive, got %+v", out.Peers)
	}
}

func TestTopNByXorIsStablePrefix(t *testing.T) {
	snap := mkSnapshot(10)
	identity := protocol.Identity("requester")

	top3 := TopNByXor(identity, snap, 3)
	top5 := TopNByXor(identity, snap, 5)

	if len(top3) != 3 || len(top5) != 5 {
		t.Fatalf("unexpected lengths: %d, %d", len(top3), len(top5))
	}
	for i := range top3 {
		if top3[i].Identity != top5[i].Identity {
			t.Fatalf("top3 is not a prefix of top5 at index %d: %s vs %s", i, top3[i].Identity, top5[i].Identity)
		}
	}
}

func TestTopNByXorURLFormat(t *testing.T) {
	snap := mkSnapshot(1)
	top := TopNByXor("x", snap, 1)
	if len(top) != 1 {
		t.Fatalf("expected 1 result")
	}
	if top[0].URL != "http://10.0.0.1:7123" {
		t.Fatalf("unexpected url: %s", top[0].URL)
	}
}

func TestClosestToIdentityMatchesTopOne(t *testing.T) {
	snap := mkSnapshot(6)
	identity := protocol.Identity("zzz")
	closest, ok := ClosestToIdentity(identity, snap)
	if !ok {
		t.Fatalf("expected a closest peer")
	}
	top1 := TopNByXor(identity, snap, 1)
	if closest.Identity != top1[0].Identity {
		t.Fatalf("closest %s != top1 %s", closest.Identity, top1[0].Identity)
	}
}

func TestTopNByXorDeterministicTieBreak(t *testing.T) {
	// Two peers with the same identity (degenerate but must not panic or
	// flip order run to run): distance ties broken lexicographically.
	snap := Snapshot{Peers: []protocol.Peer{
		{Identity: "same", ExtKey: "same", Status: protocol.StatusEnabled, IPPort: "1.1.1.1:1"},
		{Identity: "same", ExtKey: "same", Status: protocol.StatusEnabled, IPPort: "2.2.2.2:2"},
	}}
	r1 := TopNByXor("q", snap, 2)
	r2 := TopNByXor("q", snap, 2)
	if r1[0].URL != r2[0].URL || r1[1].URL != r2[1].URL {
		t.Fatalf("tie-break not stable across runs: %+v vs %+v", r1, r2)
	}
}
