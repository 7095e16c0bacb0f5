package audit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

type fakeSigner struct{}

func (fakeSigner) Sign(identity protocol.Identity, hexHash string, passphrase string) (string, error) {
	return "sig-" + hexHash, nil
}

func (fakeSigner) Verify(identity protocol.Identity, hexHash string, signature string) (bool, error) {
	return signature == "sig-"+hexHash, nil
}

type fakePeerLister struct{ snap peer.Snapshot }

func (f fakePeerLister) Refresh(ctx context.Context) (peer.Snapshot, error) { return f.snap, nil }

// auditorHarness stands up one httptest server per auditor identity and
// wires a SupernodeDialer that routes the fixed "host:7123" URL
// peer.TopNByXor produces back to that auditor's real test-server address.
type auditorHarness struct {
	servers map[string]*httptest.Server
}

func newAuditorHarness() *auditorHarness { return &auditorHarness{servers: map[string]*httptest.Server{}} }

func (h *auditorHarness) addAuditor(t *testing.T, host string, responseCost, responseRemaining float64, resultFileType string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/auditor-self", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": "n", "challenge_id": "c"})
	})
	mux.HandleFunc("/audit_inference_request_response", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.InferenceUsageResponse{
			InferenceResponseID:   "resp-1",
			InferenceRequestID:    "req-1",
			ProposedCostInCredits: responseCost,
			RemainingCreditsAfter: responseRemaining,
		})
	})
	mux.HandleFunc("/audit_inference_request_result", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.InferenceOutputResult{
			InferenceResultID:   "result-1",
			InferenceRequestID:  "req-1",
			InferenceResponseID: "resp-1",
			FileType:            resultFileType,
		})
	})
	h.servers[host] = httptest.NewServer(mux)
}

func (h *auditorHarness) close() {
	for _, s := range h.servers {
		s.Close()
	}
}

func (h *auditorHarness) dial(url string) *supernode.Client {
	trimmed := strings.TrimPrefix(url, "http://")
	host, _, err := net.SplitHostPort(trimmed)
	if err != nil {
		host = trimmed
	}
	srv, ok := h.servers[host]
	if !ok {
		panic("audit test: no server registered for host " + host)
	}
	return supernode.New(srv.URL, "auditor-self", fakeSigner{}, "pass")
}

func TestValidateMajorityAgreementOnProposedCost(t *testing.T) {
	h := newAuditorHarness()
	defer h.close()
	// Four of five candidate auditors report the original's true cost
	// (120); one reports a divergent 130. peer.TopNByXor's exact XOR
	// ordering picks 4 of these 5 (plus the excluded responder), but
	// because only one candidate disagrees, the majority is 120 no matter
	// which 4 survive the selection.
	h.addAuditor(t, "auditor1", 120, 80, "text_completion")
	h.addAuditor(t, "auditor2", 120, 80, "text_completion")
	h.addAuditor(t, "auditor3", 120, 80, "text_completion")
	h.addAuditor(t, "auditor4", 120, 80, "text_completion")
	h.addAuditor(t, "auditor5", 130, 80, "text_completion")

	snap := peer.Snapshot{Peers: []protocol.Peer{
		{Identity: "responder", IPPort: "responder:0", Status: protocol.StatusEnabled},
		{Identity: "auditor1", IPPort: "auditor1:0", Status: protocol.StatusEnabled},
		{Identity: "auditor2", IPPort: "auditor2:0", Status: protocol.StatusEnabled},
		{Identity: "auditor3", IPPort: "auditor3:0", Status: protocol.StatusEnabled},
		{Identity: "auditor4", IPPort: "auditor4:0", Status: protocol.StatusEnabled},
		{Identity: "auditor5", IPPort: "auditor5:0", Status: protocol.StatusEnabled},
	}}

	v := New("local-identity", fakePeerLister{snap: snap}, h.dial, nil)
	v.interPhaseDelay = time.Millisecond

	original := &protocol.InferenceUsageResponse{
		InferenceResponseID:   "resp-1",
		InferenceRequestID:    "req-1",
		ProposedCostInCredits: 120,
		RemainingCreditsAfter: 80,
	}
	result := &protocol.InferenceOutputResult{
		InferenceResultID:   "result-1",
		InferenceRequestID:  "req-1",
		InferenceResponseID: "resp-1",
		FileType:            "text_completion",
	}

	got, err := v.Validate(context.Background(), "responder", original, result)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !got.ResponseValidation["proposed_cost_in_credits"] {
		t.Fatalf("expected proposed_cost_in_credits to agree with majority, got %+v", got.ResponseValidation)
	}
	if !got.ResponseValidation["remaining_credits_after"] {
		t.Fatalf("expected remaining_credits_after to agree, got %+v", got.ResponseValidation)
	}
	if !got.ResultValidation["file_type"] {
		t.Fatalf("expected file_type to agree, got %+v", got.ResultValidation)
	}
}

func TestValidateExcludesResponderFromAuditors(t *testing.T) {
	h := newAuditorHarness()
	defer h.close()
	h.addAuditor(t, "auditor1", 120, 80, "text_completion")

	snap := peer.Snapshot{Peers: []protocol.Peer{
		{Identity: "responder", IPPort: "responder:0", Status: protocol.StatusEnabled},
		{Identity: "auditor1", IPPort: "auditor1:0", Status: protocol.StatusEnabled},
	}}

	v := New("local-identity", fakePeerLister{snap: snap}, h.dial, nil)
	v.interPhaseDelay = time.Millisecond

	original := &protocol.InferenceUsageResponse{InferenceResponseID: "resp-1", ProposedCostInCredits: 120}
	result := &protocol.InferenceOutputResult{InferenceResultID: "result-1"}

	got, err := v.Validate(context.Background(), "responder", original, result)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !got.ResponseValidation["proposed_cost_in_credits"] {
		t.Fatalf("expected the single (non-responder) auditor's matching vote to count, got %+v", got.ResponseValidation)
	}
}

func TestPluralityTiesBreakByFirstOccurrence(t *testing.T) {
	got, ok := plurality([]string{"b", "a", "a", "b"})
	if !ok || got != "b" {
		t.Fatalf("expected tie broken to first-seen value 'b', got %q ok=%v", got, ok)
	}
}

func TestPluralityEmpty(t *testing.T) {
	if _, ok := plurality(nil); ok {
		t.Fatalf("expected no plurality over zero votes")
	}
}
