// Package oracle derives the PSL price per inference credit from two
// independent fair-market price sources.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// MinNativeCoinUSD and MaxNativeCoinUSD bound the accepted average price;
// anything outside this band is treated as a bad read from both sources
// rather than a genuine market move.
const (
	MinNativeCoinUSD = 1e-7
	MaxNativeCoinUSD = 0.02
)

// RetryDelay is how long a single failed source is retried after, once,
// before the quote is abandoned.
const RetryDelay = 2 * time.Second

// PriceSource fetches the current native-coin USD price from one external
// feed.
type PriceSource interface {
	Name() string
	FetchUSDPrice(ctx context.Context) (float64, error)
}

// Oracle averages two independent PriceSources into a PSL/credit rate.
type Oracle struct {
	sources [2]PriceSource
	log     *logrus.Logger
}

// New builds an Oracle over exactly two independent sources.
func New(a, b PriceSource, log *logrus.Logger) *Oracle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Oracle{sources: [2]PriceSource{a, b}, log: log}
}

// fetchWithRetry fetches one source's price, retrying once after
// RetryDelay if the first attempt fails.
func (o *Oracle) fetchWithRetry(ctx context.Context, src PriceSource) (float64, error) {
	price, err := src.FetchUSDPrice(ctx)
	if err == nil {
		return price, nil
	}
	o.log.WithFields(logrus.Fields{"source": src.Name(), "error": err}).Warn("price source failed, retrying once")

	select {
	case <-time.After(RetryDelay):
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return src.FetchUSDPrice(ctx)
}

// NativeCoinUSDPrice averages both sources' prices and rejects the result
// if it falls outside [MinNativeCoinUSD, MaxNativeCoinUSD].
func (o *Oracle) NativeCoinUSDPrice(ctx context.Context) (float64, error) {
	priceA, errA := o.fetchWithRetry(ctx, o.sources[0])
	if errA != nil {
		return 0, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("price source %s unavailable", o.sources[0].Name()), errA)
	}
	priceB, errB := o.fetchWithRetry(ctx, o.sources[1])
	if errB != nil {
		return 0, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("price source %s unavailable", o.sources[1].Name()), errB)
	}

	avg := (priceA + priceB) / 2
	if avg < MinNativeCoinUSD || avg > MaxNativeCoinUSD {
		return 0, protocol.NewEngineError(protocol.KindValidation, fmt.Sprintf("native coin price %.10f outside accepted band [%.1e, %.1e]", avg, MinNativeCoinUSD, MaxNativeCoinUSD), nil)
	}
	return avg, nil
}

// PSLPerCredit derives psl_per_credit = (targetUSDPerCredit / (1 -
// targetMargin)) / pslUSDPrice.
func PSLPerCredit(targetUSDPerCredit, targetMargin, pslUSDPrice float64) (float64, error) {
	if targetMargin >= 1 || targetMargin < 0 {
		return 0, protocol.NewEngineError(protocol.KindValidation, fmt.Sprintf("target profit margin %.4f out of range [0, 1)", targetMargin), nil)
	}
	if pslUSDPrice <= 0 {
		return 0, protocol.NewEngineError(protocol.KindValidation, "psl usd price must be positive", nil)
	}
	return (targetUSDPerCredit / (1 - targetMargin)) / pslUSDPrice, nil
}

// Quote derives the full psl_per_credit rate in one call: fetch both
// sources, average, validate, then apply the margin formula.
func (o *Oracle) Quote(ctx context.Context, targetUSDPerCredit, targetMargin float64) (float64, error) {
	pslUSD, err := o.NativeCoinUSDPrice(ctx)
	if err != nil {
		return 0, err
	}
	return PSLPerCredit(targetUSDPerCredit, targetMargin, pslUSD)
}
