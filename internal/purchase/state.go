package purchase

import "github.com/pastelnetwork/supernode-client/internal/protocol"

// Stage is one node of the credit-pack purchase state machine. Terminal
// stages are documented on their constants.
type Stage string

const (
	StageInit           Stage = "INIT"
	StageRequested      Stage = "REQUESTED"
	StageQuoted         Stage = "QUOTED"
	StageRejected       Stage = "REJECTED"       // terminal
	StageAgreed         Stage = "AGREED"
	StageDeclined       Stage = "DECLINED"       // terminal
	StageSigned         Stage = "SIGNED"
	StageTerminated     Stage = "TERMINATED"     // terminal
	StageBurnSent       Stage = "BURN_SENT"
	StageConfirmed      Stage = "CONFIRMED"
	StageCompleted      Stage = "COMPLETED"      // terminal
	StageStorageFailed  Stage = "STORAGE_FAILED"
	StageFailed         Stage = "FAILED"         // terminal
)

// IsTerminal reports whether stage is a terminal state of the machine.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageRejected, StageDeclined, StageTerminated, StageCompleted, StageFailed:
		return true
	default:
		return false
	}
}

// Params are the caller-supplied inputs to Purchase.
type Params struct {
	RequestedCredits int64
	AuthorizedPastelIDs []protocol.Identity
	TrackingAddress  string
	BurnAddress      string

	MaxPerCreditPSL float64
	MaxTotalPSL     float64
	MaxDelta        float64 // max_delta against fair_market in agree_with_quote
}

// Result is what Purchase returns: the final stage reached, the
// registration txid if COMPLETED, and the full trail of messages produced
// along the way (useful for persistence and for diagnosing a non-terminal
// failure).
type Result struct {
	Stage Stage

	Request          *protocol.CreditPackPurchaseRequest
	Quote            *protocol.PreliminaryPriceQuote
	QuoteResponse    *protocol.PriceQuoteResponse
	Response         *protocol.PurchaseResponse
	Confirmation     *protocol.PurchaseConfirmation
	BurnTxid         string
	RegistrationTxid string

	Err error
}
