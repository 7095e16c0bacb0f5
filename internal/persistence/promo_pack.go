package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/pkg/utils"
)

// PromoPackBundle is one recovered credit-pack bundle on disk: everything
// a batch tool needs to resume using a previously purchased pack under a
// generated identity. Bundles live as one JSON file per identity named
// promo_pack_<identity>.json.
type PromoPackBundle struct {
	Identity                 protocol.Identity `json:"identity"`
	Passphrase               string            `json:"passphrase"`
	SecureContainerBase64    string            `json:"secureContainerBase64"`
	RegistrationTxid         string            `json:"credit_pack_registration_txid"`
	ConfirmationBlockHeight  int64             `json:"credit_purchase_request_confirmation_pastel_block_height"`
	RequestedInitialCredits  int64             `json:"requested_initial_credits_in_credit_pack"`
	TrackingAddress          string            `json:"tracking_address"`
	TrackingAddressPrivateKey string           `json:"tracking_address_private_key"`
}

// promoPackFileName returns the on-disk name a bundle for identity is
// stored under.
func promoPackFileName(identity protocol.Identity) string {
	return fmt.Sprintf("promo_pack_%s.json", identity)
}

// SavePromoPackBundle writes bundle into dir, overwriting any previous
// bundle for the same identity. The private key material in the bundle
// keeps the file owner-only.
func SavePromoPackBundle(dir string, bundle PromoPackBundle) error {
	if bundle.Identity == "" {
		return fmt.Errorf("promo pack bundle has no identity")
	}
	raw, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return utils.Wrap(err, "encode promo pack bundle")
	}
	path := filepath.Join(dir, promoPackFileName(bundle.Identity))
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return utils.Wrap(err, "write promo pack bundle")
	}
	return nil
}

// LoadPromoPackBundle reads the bundle for identity out of dir.
func LoadPromoPackBundle(dir string, identity protocol.Identity) (PromoPackBundle, error) {
	path := filepath.Join(dir, promoPackFileName(identity))
	raw, err := os.ReadFile(path)
	if err != nil {
		return PromoPackBundle{}, utils.Wrap(err, "read promo pack bundle")
	}
	var bundle PromoPackBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return PromoPackBundle{}, utils.Wrap(err, fmt.Sprintf("decode promo pack bundle %s", path))
	}
	return bundle, nil
}

// ScanPromoPackBundles loads every promo_pack_*.json bundle found in dir.
// A file that fails to parse is skipped rather than failing the whole
// scan, so one corrupt bundle cannot hide the rest.
func ScanPromoPackBundles(dir string) ([]PromoPackBundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, utils.Wrap(err, "scan promo pack dir")
	}
	var out []PromoPackBundle
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "promo_pack_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var bundle PromoPackBundle
		if err := json.Unmarshal(raw, &bundle); err != nil {
			continue
		}
		out = append(out, bundle)
	}
	return out, nil
}
