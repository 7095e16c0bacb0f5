package protocol

import "fmt"

// ErrorKind is the error taxonomy every engine-level failure is
// surfaced to the host wrapped in one of these kinds so propagation policy
// (retry locally vs. bubble up) can be decided mechanically.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation_error"
	KindPeerUnreachable  ErrorKind = "peer_unreachable"
	KindPeerRejection    ErrorKind = "peer_rejection"
	KindConsensusFailure ErrorKind = "consensus_failure"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindChainRPCError    ErrorKind = "chain_rpc_error"
	KindProtocolViolation ErrorKind = "protocol_violation"
)

// EngineError is the shaped failure every engine returns to its host; no
// raw error ever escapes unshaped.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Peer    Identity // responsible peer, when applicable
	Cause   error
	// Diff carries the per-field disagreement for ConsensusFailure
	// (quorum signature mismatch or audit majority disagreement).
	Diff map[string]string
}

func (e *EngineError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s: %s (peer %s)", e.Kind, e.Message, e.Peer)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// NewEngineError builds a shaped error of the given kind.
func NewEngineError(kind ErrorKind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// WithPeer attaches the responsible peer identity and returns the receiver,
// for fluent construction at the call site.
func (e *EngineError) WithPeer(id Identity) *EngineError {
	e.Peer = id
	return e
}

// WithDiff attaches a per-field disagreement map (ConsensusFailure) and
// returns the receiver.
func (e *EngineError) WithDiff(diff map[string]string) *EngineError {
	e.Diff = diff
	return e
}

// IsRetryable reports whether the caller should retry the same peer
// (PeerUnreachable) before escalating to peer iteration.
func IsRetryable(err error) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Kind == KindPeerUnreachable
}
