package audit

import (
	"fmt"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// plurality returns the strict-plurality (most frequent) value of values,
// ties broken by first occurrence.
func plurality(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best := order[0]
	bestCount := counts[best]
	for _, v := range order[1:] {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, true
}

// responseFields enumerates the InferenceUsageResponse fields of interest
// for reconciliation, each as a (name, extractor) pair.
var responseFields = []struct {
	name    string
	extract func(*protocol.InferenceUsageResponse) string
}{
	{"inference_response_id", func(r *protocol.InferenceUsageResponse) string { return r.InferenceResponseID }},
	{"inference_request_id", func(r *protocol.InferenceUsageResponse) string { return r.InferenceRequestID }},
	{"proposed_cost_in_credits", func(r *protocol.InferenceUsageResponse) string { return fmt.Sprintf("%g", r.ProposedCostInCredits) }},
	{"remaining_credits_after", func(r *protocol.InferenceUsageResponse) string { return fmt.Sprintf("%g", r.RemainingCreditsAfter) }},
	{"credit_usage_tracking_address", func(r *protocol.InferenceUsageResponse) string { return r.CreditUsageTrackingAddress }},
	{"confirmation_amount_patoshis", func(r *protocol.InferenceUsageResponse) string { return fmt.Sprintf("%d", r.ConfirmationAmountPatoshis) }},
	{"max_block_height_to_confirm", func(r *protocol.InferenceUsageResponse) string { return fmt.Sprintf("%d", r.MaxBlockHeightToConfirm) }},
	{"responder_signature", func(r *protocol.InferenceUsageResponse) string { return r.ResponderSignature }},
}

// resultFields mirrors responseFields for InferenceOutputResult, with the
// payload compared by its first 32 base64 bytes only.
var resultFields = []struct {
	name    string
	extract func(*protocol.InferenceOutputResult) string
}{
	{"inference_result_id", func(r *protocol.InferenceOutputResult) string { return r.InferenceResultID }},
	{"inference_request_id", func(r *protocol.InferenceOutputResult) string { return r.InferenceRequestID }},
	{"inference_response_id", func(r *protocol.InferenceOutputResult) string { return r.InferenceResponseID }},
	{"responder_identity", func(r *protocol.InferenceOutputResult) string { return string(r.ResponderIdentity) }},
	{"payload_prefix", func(r *protocol.InferenceOutputResult) string { return first32(r.InferenceResultJSONB64) }},
	{"file_type", func(r *protocol.InferenceOutputResult) string { return r.FileType }},
	{"responder_signature", func(r *protocol.InferenceOutputResult) string { return r.ResponderSignature }},
}

func first32(s string) string {
	if len(s) <= 32 {
		return s
	}
	return s[:32]
}

// reconcileResponse computes, for each field of interest, whether
// original's claimed value matches the auditors' plurality value. A
// field with no auditor votes is reported false: absence of
// corroboration is not agreement.
func reconcileResponse(original *protocol.InferenceUsageResponse, auditors []*protocol.InferenceUsageResponse) map[string]bool {
	out := make(map[string]bool, len(responseFields))
	for _, f := range responseFields {
		votes := make([]string, len(auditors))
		for i, a := range auditors {
			votes[i] = f.extract(a)
		}
		maj, ok := plurality(votes)
		out[f.name] = ok && maj == f.extract(original)
	}
	return out
}

// reconcileResult mirrors reconcileResponse for InferenceOutputResult.
func reconcileResult(original *protocol.InferenceOutputResult, auditors []*protocol.InferenceOutputResult) map[string]bool {
	out := make(map[string]bool, len(resultFields))
	for _, f := range resultFields {
		votes := make([]string, len(auditors))
		for i, a := range auditors {
			votes[i] = f.extract(a)
		}
		maj, ok := plurality(votes)
		out[f.name] = ok && maj == f.extract(original)
	}
	return out
}
