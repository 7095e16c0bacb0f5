package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/envelope"
	"github.com/pastelnetwork/supernode-client/internal/persistence"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/rpcclient"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

const testChainHeight = 500

type submitFakeSigner struct{}

func (submitFakeSigner) Sign(identity protocol.Identity, hexHash string, passphrase string) (string, error) {
	return "sig-" + hexHash, nil
}

func (submitFakeSigner) Verify(identity protocol.Identity, hexHash string, signature string) (bool, error) {
	return signature == "sig-"+hexHash, nil
}

type fakeChain struct {
	sentMemo string
	sentTo   map[string]float64
	balances map[string]float64
}

func (f *fakeChain) GetBestBlockHash(ctx context.Context) (string, error) { return "besthash", nil }

func (f *fakeChain) GetBlock(ctx context.Context, hash string) (rpcclient.Block, error) {
	return rpcclient.Block{Hash: hash, Height: testChainHeight}, nil
}

func (f *fakeChain) SendMany(ctx context.Context, fromAccount string, recipients []rpcclient.SendManyRecipient, memo string) (string, error) {
	f.sentMemo = memo
	f.sentTo = map[string]float64{}
	for _, r := range recipients {
		f.sentTo[r.Address] = r.Amount
	}
	return "ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34ab12cd34", nil
}

func (f *fakeChain) ListAddressAmounts(ctx context.Context) (map[string]float64, error) {
	return f.balances, nil
}

func withFastPolling(t *testing.T) {
	t.Helper()
	orig := pollDelayFn
	pollDelayFn = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(func() { pollDelayFn = orig })
}

// signedUsageResponse builds an envelope-consistent usage response the
// way a real responder would.
func signedUsageResponse(t *testing.T, cost float64, trackingAddress string, patoshis int64) protocol.InferenceUsageResponse {
	t.Helper()
	resp := protocol.InferenceUsageResponse{
		Envelope:                   protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: testChainHeight, Version: "1.0"},
		InferenceRequestID:         "req-1",
		InferenceResponseID:        "resp-1",
		ProposedCostInCredits:      cost,
		RemainingCreditsAfter:      4880,
		CreditUsageTrackingAddress: trackingAddress,
		ConfirmationAmountPatoshis: patoshis,
		ResponderIdentity:          "peer-1",
	}
	h, err := envelope.HashFields(&resp)
	if err != nil {
		t.Fatalf("hash usage response: %v", err)
	}
	resp.ResponseHash = h
	resp.ResponderSignature = "sig-" + h
	return resp
}

// signedOutputResult mirrors signedUsageResponse for the output-result
// message; its terminal signature covers the result id.
func signedOutputResult(t *testing.T, payloadB64 string) protocol.InferenceOutputResult {
	t.Helper()
	out := protocol.InferenceOutputResult{
		Envelope:               protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: testChainHeight, Version: "1.0"},
		InferenceResultID:      "result-1",
		InferenceRequestID:     "req-1",
		InferenceResponseID:    "resp-1",
		ResponderIdentity:      "peer-1",
		InferenceResultJSONB64: payloadB64,
	}
	h, err := envelope.HashFields(&out)
	if err != nil {
		t.Fatalf("hash output result: %v", err)
	}
	out.ResultHash = h
	out.ResponderSignature = "sig-" + out.InferenceResultID
	return out
}

func TestSubmitHappyPathDecodesTextCompletion(t *testing.T) {
	withFastPolling(t)

	var pollCount int
	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/requester", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": "n", "challenge_id": "c"})
	})
	mux.HandleFunc("/make_inference_api_usage_request", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signedUsageResponse(t, 120, "tPtrack1", 300000))
	})
	mux.HandleFunc("/confirm_inference_request", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	mux.HandleFunc("/check_status_of_inference_request_results/resp-1", func(w http.ResponseWriter, r *http.Request) {
		pollCount++
		_ = json.NewEncoder(w).Encode(pollCount >= 3)
	})
	mux.HandleFunc("/retrieve_inference_output_results", func(w http.ResponseWriter, r *http.Request) {
		payload := base64.StdEncoding.EncodeToString([]byte("hello world"))
		_ = json.NewEncoder(w).Encode(signedOutputResult(t, payload))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &fakeChain{balances: map[string]float64{"tPtrack1": 5.0}}
	dial := func(_ string) *supernode.Client {
		return supernode.New(srv.URL, "requester", submitFakeSigner{}, "pass")
	}
	store := persistence.NewStore()
	engine := New("requester", "pass", submitFakeSigner{}, chain, nil, store, dial, nil)

	res := engine.Submit(context.Background(), srv.URL, "peer-1", Params{
		CreditPackTxid: "cptxid",
		Model:          "claude3-opus",
		InferenceType:  "text_completion",
		Parameters:     map[string]interface{}{"max_tokens": 2000},
		Input:          []byte("prompt"),
		MaxCostCredits: 200,
		BurnAddress:    "tPpasteLBurnAddressXXXXXXXXXXX3wy7u",
	})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if string(res.Decoded) != "hello world" {
		t.Fatalf("expected decoded text %q, got %q", "hello world", res.Decoded)
	}
	if pollCount != 3 {
		t.Fatalf("expected polling to succeed on attempt 3, got %d polls", pollCount)
	}
	if chain.sentTo["tPpasteLBurnAddressXXXXXXXXXXX3wy7u"] != 3.0 {
		t.Fatalf("expected 3.0 PSL sent to burn address, got %v", chain.sentTo)
	}
	if store.InferenceUsageRequests.Len() != 1 ||
		store.InferenceUsageResponses.Len() != 1 ||
		store.InferenceConfirmations.Len() != 1 ||
		store.InferenceOutputResults.Len() != 1 {
		t.Fatalf("expected every lifecycle message persisted, got %d/%d/%d/%d",
			store.InferenceUsageRequests.Len(), store.InferenceUsageResponses.Len(),
			store.InferenceConfirmations.Len(), store.InferenceOutputResults.Len())
	}
}

func TestSubmitAbortsOnInsufficientTrackingBalance(t *testing.T) {
	withFastPolling(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/requester", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": "n", "challenge_id": "c"})
	})
	mux.HandleFunc("/make_inference_api_usage_request", func(w http.ResponseWriter, r *http.Request) {
		// 300000 patoshis means 3.0 PSL required.
		_ = json.NewEncoder(w).Encode(signedUsageResponse(t, 120, "tPtrack1", 300000))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &fakeChain{balances: map[string]float64{"tPtrack1": 2.9}}
	dial := func(_ string) *supernode.Client {
		return supernode.New(srv.URL, "requester", submitFakeSigner{}, "pass")
	}
	engine := New("requester", "pass", submitFakeSigner{}, chain, nil, persistence.NewStore(), dial, nil)

	res := engine.Submit(context.Background(), srv.URL, "peer-1", Params{
		CreditPackTxid: "cptxid",
		Model:          "claude3-opus",
		InferenceType:  "text_completion",
		MaxCostCredits: 200,
		BurnAddress:    "tPpasteLBurnAddressXXXXXXXXXXX3wy7u",
	})

	if res.Err == nil {
		t.Fatalf("expected InsufficientFunds error")
	}
	ee, ok := res.Err.(*protocol.EngineError)
	if !ok || ee.Kind != protocol.KindInsufficientFunds {
		t.Fatalf("expected InsufficientFunds, got %v", res.Err)
	}
	if chain.sentTo != nil {
		t.Fatalf("expected no burn transaction sent, got %v", chain.sentTo)
	}
}

func TestSubmitRejectsOverpricedProposal(t *testing.T) {
	withFastPolling(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/requester", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": "n", "challenge_id": "c"})
	})
	mux.HandleFunc("/make_inference_api_usage_request", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(signedUsageResponse(t, 250, "tPtrack1", 300000))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	chain := &fakeChain{balances: map[string]float64{"tPtrack1": 5.0}}
	dial := func(_ string) *supernode.Client {
		return supernode.New(srv.URL, "requester", submitFakeSigner{}, "pass")
	}
	engine := New("requester", "pass", submitFakeSigner{}, chain, nil, persistence.NewStore(), dial, nil)

	res := engine.Submit(context.Background(), srv.URL, "peer-1", Params{
		CreditPackTxid: "cptxid",
		Model:          "claude3-opus",
		InferenceType:  "text_completion",
		MaxCostCredits: 200,
		BurnAddress:    "tPpasteLBurnAddressXXXXXXXXXXX3wy7u",
	})

	if res.Err == nil {
		t.Fatalf("expected cost-ceiling error")
	}
	ee, ok := res.Err.(*protocol.EngineError)
	if !ok || ee.Kind != protocol.KindValidation {
		t.Fatalf("expected validation error for cost over ceiling, got %v", res.Err)
	}
	if chain.sentTo != nil {
		t.Fatalf("expected no burn transaction sent, got %v", chain.sentTo)
	}
}

func TestDecodeOutputTextToImageExtractsImageField(t *testing.T) {
	inner := base64.StdEncoding.EncodeToString([]byte("binarydata"))
	wrapper, _ := json.Marshal(map[string]string{"image": inner})
	payload := base64.StdEncoding.EncodeToString(wrapper)

	out, err := decodeOutput("text_to_image", payload)
	if err != nil {
		t.Fatalf("decodeOutput: %v", err)
	}
	if string(out) != "binarydata" {
		t.Fatalf("expected decoded image bytes %q, got %q", "binarydata", out)
	}
}

func TestDecodeOutputEmbeddingDocumentReturnsRawBytes(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("PK\x03\x04zipbytes"))
	out, err := decodeOutput("embedding_document", payload)
	if err != nil {
		t.Fatalf("decodeOutput: %v", err)
	}
	if string(out) != "PK\x03\x04zipbytes" {
		t.Fatalf("unexpected zip bytes: %q", out)
	}
}
