package envelope

import (
	"testing"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// fakeSigner is a deterministic stand-in for the chain node's
// `pastelid sign` / `pastelid verify` RPCs, used only in tests.
type fakeSigner struct{}

func (fakeSigner) Sign(identity protocol.Identity, hexHash string, passphrase string) (string, error) {
	return "sig-" + string(identity) + "-" + hexHash, nil
}

func (fakeSigner) Verify(identity protocol.Identity, hexHash string, signature string) (bool, error) {
	return signature == "sig-"+string(identity)+"-"+hexHash, nil
}

func TestSignThenVerifyRoundTrips(t *testing.T) {
	req := sampleRequest()
	req.RequestHash, req.RequesterSignature = "", ""
	hash, sig, err := Sign(fakeSigner{}, "identity-a", "pass", req)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req.RequestHash = hash
	req.RequesterSignature = sig

	ok, err := Verify(fakeSigner{}, "identity-a", hash, sig, req)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}
}

func TestValidateDetectsTamperedHash(t *testing.T) {
	req := sampleRequest()
	req.Timestamp = time.Now().UTC()
	h, err := HashFields(req)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	req.RequestHash = h
	req.RequesterSignature = "sig-identity-a-" + h

	violations, err := Validate(req, ValidationContext{
		Signer:             fakeSigner{},
		SignerIdentity:     "identity-a",
		CurrentBlockHeight: req.BlockHeight,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations on a well-formed message, got %v", violations)
	}

	req.RequestedInitialCredits = 999999 // tamper after hashing
	violations, err = Validate(req, ValidationContext{
		Signer:             fakeSigner{},
		SignerIdentity:     "identity-a",
		CurrentBlockHeight: req.BlockHeight,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	found := false
	for _, v := range violations {
		if v.Invariant == "hash" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a hash violation after tampering, got %v", violations)
	}
}

func TestValidateDetectsClockAndHeightSkew(t *testing.T) {
	req := sampleRequest()
	req.Timestamp = time.Now().Add(-2 * time.Hour).UTC()
	req.BlockHeight = 100
	h, _ := HashFields(req)
	req.RequestHash = h
	req.RequesterSignature = "sig-identity-a-" + h

	violations, err := Validate(req, ValidationContext{
		Signer:             fakeSigner{},
		SignerIdentity:     "identity-a",
		CurrentBlockHeight: 200,
		ClockSkew:          DefaultClockSkew,
		HeightSkew:         DefaultHeightSkew,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	kinds := map[string]bool{}
	for _, v := range violations {
		kinds[v.Invariant] = true
	}
	if !kinds["clock_skew"] {
		t.Fatalf("expected clock_skew violation, got %v", violations)
	}
	if !kinds["height_skew"] {
		t.Fatalf("expected height_skew violation, got %v", violations)
	}
}

func TestValidateFlagsUnknownPredecessor(t *testing.T) {
	conf := &protocol.PurchaseConfirmation{
		Envelope: protocol.Envelope{
			Timestamp:   time.Now().UTC(),
			BlockHeight: 100,
			Version:     "1.0",
		},
		CreditPackRequestHash:  "reqhash",
		CreditPackResponseHash: "resphash",
		BurnTransactionTxid:    "burntxid",
		RequesterIdentity:      "identity-a",
	}
	h, err := HashFields(conf)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	conf.ConfirmationHash = h
	conf.RequesterSignature = "sig-identity-a-" + h

	known := map[string]bool{"reqhash": true} // resphash deliberately missing
	violations, err := Validate(conf, ValidationContext{
		Signer:             fakeSigner{},
		SignerIdentity:     "identity-a",
		CurrentBlockHeight: 100,
		PredecessorHashes:  known,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var unknown int
	for _, v := range violations {
		if v.Invariant == "unknown_predecessor" {
			unknown++
		}
	}
	if unknown != 1 {
		t.Fatalf("expected exactly one unknown_predecessor violation, got %v", violations)
	}

	known["resphash"] = true
	violations, err = Validate(conf, ValidationContext{
		Signer:             fakeSigner{},
		SignerIdentity:     "identity-a",
		CurrentBlockHeight: 100,
		PredecessorHashes:  known,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations once every predecessor is known, got %v", violations)
	}
}
