package purchase

import (
	"fmt"
	"sort"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// verifyQuorum checks the quorum invariant: every signer listed in
// resp.SelectedAgreeingSupernodeSignatures must also appear in
// resp.SelectedAgreeingSupernodes (and vice versa — the sets must match
// exactly), and every one of those signatures must verify over the
// response hash. A missing or unverifiable signature on any quorum signer
// is fatal.
func verifyQuorum(signer protocol.Signer, resp *protocol.PurchaseResponse) error {
	listed := make(map[protocol.Identity]bool, len(resp.SelectedAgreeingSupernodes))
	for _, id := range resp.SelectedAgreeingSupernodes {
		listed[id] = true
	}
	signed := make(map[protocol.Identity]bool, len(resp.SelectedAgreeingSupernodeSignatures))
	for id := range resp.SelectedAgreeingSupernodeSignatures {
		signed[id] = true
	}

	if diff := setDiff(listed, signed); len(diff) > 0 {
		return protocol.NewEngineError(protocol.KindConsensusFailure, "quorum signer list does not match signature dict", nil).
			WithDiff(map[string]string{"missing_signatures_for": fmt.Sprint(diff)})
	}
	if diff := setDiff(signed, listed); len(diff) > 0 {
		return protocol.NewEngineError(protocol.KindConsensusFailure, "signature dict contains signers not selected for inclusion", nil).
			WithDiff(map[string]string{"unexpected_signers": fmt.Sprint(diff)})
	}

	for id, sig := range resp.SelectedAgreeingSupernodeSignatures {
		ok, err := signer.Verify(id, resp.ResponseHash, sig.SignatureOnResponseHash)
		if err != nil {
			return protocol.NewEngineError(protocol.KindConsensusFailure, fmt.Sprintf("verify signer %s: error", id), err).WithPeer(id)
		}
		if !ok {
			return protocol.NewEngineError(protocol.KindConsensusFailure, fmt.Sprintf("signer %s's signature on response hash does not verify", id), nil).WithPeer(id)
		}
		ok, err = signer.Verify(id, string(resp.CreditPackRequestHash), sig.SignatureOnRequestHash)
		if err != nil {
			return protocol.NewEngineError(protocol.KindConsensusFailure, fmt.Sprintf("verify signer %s: error", id), err).WithPeer(id)
		}
		if !ok {
			return protocol.NewEngineError(protocol.KindConsensusFailure, fmt.Sprintf("signer %s's signature on request hash does not verify", id), nil).WithPeer(id)
		}
	}
	return nil
}

func setDiff(a, b map[protocol.Identity]bool) []protocol.Identity {
	var out []protocol.Identity
	for id := range a {
		if !b[id] {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// agreeWithQuote implements agree_with_quote: accept iff
// per_credit <= max_per_credit_psl AND total <= max_total_psl AND
// |quoted - fair_market| / fair_market <= max_delta.
func agreeWithQuote(quote *protocol.PreliminaryPriceQuote, fairMarketPerCredit, maxPerCreditPSL, maxTotalPSL, maxDelta float64) bool {
	if quote.PricePerCredit > maxPerCreditPSL {
		return false
	}
	if quote.TotalCost > maxTotalPSL {
		return false
	}
	if fairMarketPerCredit <= 0 {
		return false
	}
	delta := quote.PricePerCredit - fairMarketPerCredit
	if delta < 0 {
		delta = -delta
	}
	return delta/fairMarketPerCredit <= maxDelta
}
