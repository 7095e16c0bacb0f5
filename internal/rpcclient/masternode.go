package rpcclient

import (
	"context"
	"strconv"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// MasternodeListFull implements peer.ListFullFetcher: it fetches the raw
// `masternode list full` table and reshapes it into protocol.Peer entries.
// The raw reply is a map of outpoint -> a single space-delimited status
// line, matching the node's human-readable masternode listing format.
func (c *Client) MasternodeListFull(ctx context.Context) ([]protocol.Peer, error) {
	var raw map[string]string
	if err := c.Call(ctx, "masternode", []interface{}{"list", "full"}, &raw); err != nil {
		return nil, err
	}

	peers := make([]protocol.Peer, 0, len(raw))
	for _, line := range raw {
		p, ok := parseMasternodeLine(line)
		if ok {
			peers = append(peers, p)
		}
	}
	return peers, nil
}

// parseMasternodeLine parses one space-delimited status line of the form
// "ENABLED protoVersion pastelID lastSeen activeSeconds lastPaidTime
// lastPaidBlock ip:port extP2P rank". Layout is positional per the node's
// CLI output; unparseable lines are skipped rather than erroring the whole
// snapshot.
func parseMasternodeLine(line string) (protocol.Peer, bool) {
	fields := splitFields(line)
	if len(fields) < 8 {
		return protocol.Peer{}, false
	}
	rank, _ := strconv.Atoi(lastField(fields))
	id := protocol.Identity(fields[2])
	return protocol.Peer{
		Identity:        id,
		ExtKey:          id,
		Status:          fields[0],
		ProtocolVersion: fields[1],
		IPPort:          fields[7],
		Rank:            rank,
	}, true
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

func lastField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// MasternodeTop returns the current top masternode tier snapshot.
func (c *Client) MasternodeTop(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.Call(ctx, "masternode", []interface{}{"top"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
