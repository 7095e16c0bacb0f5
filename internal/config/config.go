// Package config loads the client's tunable parameters from the process
// environment, optionally seeded from a ".env" file the way
// the rest of the codebase loads its configuration.
package config

import (
	"github.com/joho/godotenv"

	"github.com/pastelnetwork/supernode-client/pkg/utils"
)

// Config holds every environment-tunable parameter the client loads.
type Config struct {
	TargetValuePerCreditUSD float64
	TargetProfitMargin      float64

	// MaxLocalCreditPriceDifference is the tolerated divergence of a
	// peer's quoted PSL price per credit from the locally computed rate.
	// It is loaded here only; the purchase engine does not read it.
	MaxLocalCreditPriceDifference float64

	// MaxLocalBlockHeightDifference is H_skew, the height-validation
	// tolerance. It is loaded here only; internal/envelope does not read it.
	MaxLocalBlockHeightDifference int64

	// MessagingTimeoutSeconds is T_msg in seconds. It is loaded here only;
	// supernode clients always time calls from supernode.BaseMessageTimeout.
	MessagingTimeoutSeconds int

	// MaxPerCreditPriceInPSL is a ceiling on the PSL/credit rate. It is
	// loaded here only; the purchase engine does not read it.
	MaxPerCreditPriceInPSL float64
}

// Load reads every field from its corresponding environment variable,
// falling back to the given defaults. It best-effort loads a
// ".env" file first so local development doesn't require exporting every
// variable by hand.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		TargetValuePerCreditUSD:       utils.EnvOrDefaultFloat64("TARGET_VALUE_PER_CREDIT_IN_USD", 0.0001),
		TargetProfitMargin:            utils.EnvOrDefaultFloat64("TARGET_PROFIT_MARGIN", 0.1),
		MaxLocalCreditPriceDifference: utils.EnvOrDefaultFloat64("MAXIMUM_LOCAL_CREDIT_PRICE_DIFFERENCE_TO_ACCEPT_CREDIT_PRICING", 0.25),
		MaxLocalBlockHeightDifference: int64(utils.EnvOrDefaultInt("MAXIMUM_LOCAL_PASTEL_BLOCK_HEIGHT_DIFFERENCE_IN_BLOCKS", 2)),
		MessagingTimeoutSeconds:       utils.EnvOrDefaultInt("MESSAGING_TIMEOUT_IN_SECONDS", 60),
		MaxPerCreditPriceInPSL:        utils.EnvOrDefaultFloat64("MAXIMUM_PER_CREDIT_PRICE_IN_PSL_FOR_CLIENT", 100.0),
	}
}
