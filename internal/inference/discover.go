package inference

import (
	"context"
	"fmt"
	"sync"

	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

// DiscoveredPeer is what discover() returns: the peer to submit to.
type DiscoveredPeer struct {
	PeerURL string
	PeerID  protocol.Identity
}

// menuResult pairs one peer's GetInferenceModelMenu outcome with its XOR
// rank so the closest matching peer can be picked after every query
// completes.
type menuResult struct {
	peer peer.RankedPeer
	menu *supernode.InferenceModelMenu
	err  error
}

// Discover queries every active peer's model menu in parallel, in
// XOR-sorted order relative to the caller's identity, and returns the
// closest peer whose menu offers modelName/inferenceType with parameters
// admitting every key/value of requestedParams.
func (e *Engine) Discover(ctx context.Context, modelName, inferenceType string, requestedParams map[string]interface{}) (DiscoveredPeer, error) {
	snap, err := e.peers.Refresh(ctx)
	if err != nil {
		return DiscoveredPeer{}, err
	}
	active := peer.FilterActive(snap)
	ranked := peer.TopNByXor(e.identity, active, len(active.Peers))

	results := make([]menuResult, len(ranked))
	var wg sync.WaitGroup
	for i, p := range ranked {
		wg.Add(1)
		go func(i int, p peer.RankedPeer) {
			defer wg.Done()
			client := e.dial(p.URL)
			menu, err := client.GetInferenceModelMenu(ctx)
			results[i] = menuResult{peer: p, menu: menu, err: err}
		}(i, p)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil || r.menu == nil {
			continue
		}
		if _, ok := matchingEntry(r.menu, modelName, inferenceType, requestedParams); ok {
			return DiscoveredPeer{PeerURL: r.peer.URL, PeerID: r.peer.Identity}, nil
		}
	}
	return DiscoveredPeer{}, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("no peer offers model %q (%s) with the requested parameters", modelName, inferenceType), nil)
}

// matchingEntry finds the menu entry (if any) matching modelName and
// inferenceType whose supported parameters admit every requested
// key/value.
func matchingEntry(menu *supernode.InferenceModelMenu, modelName, inferenceType string, requestedParams map[string]interface{}) (supernode.InferenceModelMenuEntry, bool) {
	for _, entry := range menu.Models {
		if entry.ModelCanonicalString != modelName || entry.InferenceTypeString != inferenceType {
			continue
		}
		if paramsAdmitted(entry.SupportedParameters, requestedParams) {
			return entry, true
		}
	}
	return supernode.InferenceModelMenuEntry{}, false
}

// paramsAdmitted reports whether every key/value in requested is declared
// by supported, type-matched, and (when the parameter declares an options
// list) one of those options.
func paramsAdmitted(supported map[string]supernode.ParameterSpec, requested map[string]interface{}) bool {
	for key, value := range requested {
		spec, ok := supported[key]
		if !ok {
			return false
		}
		if !typeMatches(spec.Type, value) {
			return false
		}
		if len(spec.Options) > 0 && !containsValue(spec.Options, value) {
			return false
		}
	}
	return true
}

func typeMatches(wantType string, value interface{}) bool {
	switch wantType {
	case "int":
		switch value.(type) {
		case int, int32, int64, float64: // JSON numbers decode as float64
			return true
		}
		return false
	case "float":
		switch value.(type) {
		case float32, float64, int, int64:
			return true
		}
		return false
	case "string":
		_, ok := value.(string)
		return ok
	default:
		return false
	}
}

func containsValue(options []interface{}, value interface{}) bool {
	for _, o := range options {
		if fmt.Sprint(o) == fmt.Sprint(value) {
			return true
		}
	}
	return false
}
