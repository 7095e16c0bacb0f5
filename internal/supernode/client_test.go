package supernode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

type fakeSigner struct{}

func (fakeSigner) Sign(identity protocol.Identity, hexHash string, passphrase string) (string, error) {
	return "sig-" + hexHash, nil
}

func (fakeSigner) Verify(identity protocol.Identity, hexHash string, signature string) (bool, error) {
	return signature == "sig-"+hexHash, nil
}

func TestPostAuthenticatesOnceAndReusesChallenge(t *testing.T) {
	var challengeCalls, postCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/requester", func(w http.ResponseWriter, r *http.Request) {
		challengeCalls++
		_ = json.NewEncoder(w).Encode(requestChallengeResponse{Challenge: "nonce", ChallengeID: "cid-1"})
	})
	mux.HandleFunc("/credit_purchase_initial_request", func(w http.ResponseWriter, r *http.Request) {
		postCalls++
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["challenge_id"] != "cid-1" || body["challenge_signature"] != "sig-nonce" {
			t.Errorf("missing or wrong challenge auth in body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(protocol.PreliminaryPriceQuote{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "requester", fakeSigner{}, "pass")
	req := &protocol.CreditPackPurchaseRequest{}
	if _, err := c.CreditPurchaseInitialRequest(context.Background(), req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.CreditPurchaseInitialRequest(context.Background(), req); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if challengeCalls != 1 {
		t.Fatalf("expected exactly 1 challenge fetch, got %d", challengeCalls)
	}
	if postCalls != 2 {
		t.Fatalf("expected 2 posts, got %d", postCalls)
	}
}

func TestResetAuthForcesNewChallenge(t *testing.T) {
	var challengeCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/requester", func(w http.ResponseWriter, r *http.Request) {
		challengeCalls++
		_ = json.NewEncoder(w).Encode(requestChallengeResponse{Challenge: "nonce", ChallengeID: "cid-1"})
	})
	mux.HandleFunc("/send_user_message", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "requester", fakeSigner{}, "pass")
	msg := UserMessage{SendingPastelID: "requester", ReceivingPastelID: "other", MessageBody: "hi"}
	if err := c.SendUserMessage(context.Background(), msg); err != nil {
		t.Fatalf("first send: %v", err)
	}
	c.ResetAuth()
	if err := c.SendUserMessage(context.Background(), msg); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if challengeCalls != 2 {
		t.Fatalf("expected 2 challenge fetches after reset, got %d", challengeCalls)
	}
}

func TestIsRejectionDetectsReasonFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/request_challenge/requester", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(requestChallengeResponse{Challenge: "n", ChallengeID: "c"})
	})
	mux.HandleFunc("/credit_purchase_initial_request", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.PreliminaryPriceQuote{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if !IsRejection("too_many_requests", "") {
		t.Fatalf("expected rejection reason to be detected")
	}
	if IsRejection("", "") {
		t.Fatalf("expected no rejection when both reasons are empty")
	}
}

func TestDoSurfacesPeerUnreachableOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "requester", fakeSigner{}, "pass")
	err := c.get(context.Background(), "/get_inference_model_menu", TimeoutNormal, nil)
	ee, ok := err.(*protocol.EngineError)
	if !ok || ee.Kind != protocol.KindPeerUnreachable {
		t.Fatalf("expected PeerUnreachable, got %v", err)
	}
}
