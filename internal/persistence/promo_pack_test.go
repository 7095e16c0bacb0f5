package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

func TestPromoPackBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bundle := PromoPackBundle{
		Identity:                  protocol.Identity("jXa1b2c3"),
		Passphrase:                "hunter2",
		SecureContainerBase64:     "c2VjdXJl",
		RegistrationTxid:          "deadbeef",
		ConfirmationBlockHeight:   421337,
		RequestedInitialCredits:   250,
		TrackingAddress:           "PtTrackingAddr",
		TrackingAddressPrivateKey: "PrivKey",
	}

	if err := SavePromoPackBundle(dir, bundle); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadPromoPackBundle(dir, bundle.Identity)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != bundle {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, bundle)
	}
}

func TestSavePromoPackBundleRequiresIdentity(t *testing.T) {
	if err := SavePromoPackBundle(t.TempDir(), PromoPackBundle{}); err == nil {
		t.Fatalf("expected error for bundle without identity")
	}
}

func TestScanPromoPackBundlesSkipsCorruptAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	for _, b := range []PromoPackBundle{
		{Identity: "jXaaa", RegistrationTxid: "t1"},
		{Identity: "jXbbb", RegistrationTxid: "t2"},
	} {
		if err := SavePromoPackBundle(dir, b); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "promo_pack_broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600); err != nil {
		t.Fatal(err)
	}

	bundles, err := ScanPromoPackBundles(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(bundles))
	}
	seen := map[protocol.Identity]bool{}
	for _, b := range bundles {
		seen[b.Identity] = true
	}
	if !seen["jXaaa"] || !seen["jXbbb"] {
		t.Fatalf("missing expected bundle identities: %v", seen)
	}
}
