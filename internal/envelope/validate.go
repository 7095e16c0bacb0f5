package envelope

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// ValidationContext supplies the ambient facts Validate checks a message
// against: the current wall clock, the locally known best block height,
// the signer used to verify the message's signature, and (optionally) the
// set of hash-linked predecessor messages already known to the caller.
type ValidationContext struct {
	Now                func() time.Time
	ClockSkew          time.Duration // default 600s
	CurrentBlockHeight  int64
	HeightSkew          int64 // default 2
	Signer              protocol.Signer
	SignerIdentity      protocol.Identity
	// PredecessorHashes, when non-nil, is consulted for invariant 5: every
	// hash the message references (any non-terminal "sha3_256_hash_of_"
	// field) must be a known key. A nil map skips invariant 5 entirely
	// (caller has no predecessor tracking, e.g. unit tests).
	PredecessorHashes map[string]bool
}

// DefaultClockSkew and DefaultHeightSkew bound the clock-skew and height-skew invariants.
const (
	DefaultClockSkew  = 600 * time.Second
	DefaultHeightSkew = int64(2)
)

func (c ValidationContext) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Violation is one failed invariant.
type Violation struct {
	Invariant string // "hash", "signature", "clock_skew", "height_skew", "unknown_predecessor"
	Detail    string
}

func (v Violation) String() string { return fmt.Sprintf("%s: %s", v.Invariant, v.Detail) }

// Validate runs the five receipt-time invariants against msg and
// returns every violation found (not just the first), so the caller can
// decide fatal vs. warning per invariant.
func Validate(msg interface{}, ctx ValidationContext) ([]Violation, error) {
	rv := reflect.ValueOf(msg)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("envelope: message must be a struct, got %s", rv.Kind())
	}

	var violations []Violation

	// Invariant 1 & 2: recomputed hash equals carried hash, and the
	// carried signature verifies under the responder identity.
	hashName, hashVal, sigName, sigVal, refs := lastFields(rv)
	if hashName == "" {
		return nil, fmt.Errorf("envelope: message has no hash field")
	}
	gotHash, err := HashFields(msg)
	if err != nil {
		return nil, fmt.Errorf("recompute hash: %w", err)
	}
	if gotHash != hashVal {
		violations = append(violations, Violation{"hash", fmt.Sprintf("recomputed %s != carried %s (%s)", gotHash, hashVal, hashName)})
	} else if sigName != "" && ctx.Signer != nil {
		ok, err := ctx.Signer.Verify(ctx.SignerIdentity, hashVal, sigVal)
		if err != nil {
			violations = append(violations, Violation{"signature", fmt.Sprintf("verify error: %v", err)})
		} else if !ok {
			violations = append(violations, Violation{"signature", fmt.Sprintf("%s does not verify under %s", sigName, ctx.SignerIdentity)})
		}
	}

	// Invariant 3 & 4: clock skew and height skew against the embedded
	// Envelope fields.
	env := rv.FieldByName("Envelope")
	if env.IsValid() {
		if e, ok := env.Interface().(protocol.Envelope); ok {
			skew := ctx.ClockSkew
			if skew == 0 {
				skew = DefaultClockSkew
			}
			if d := ctx.now().Sub(e.Timestamp); d > skew || d < -skew {
				violations = append(violations, Violation{"clock_skew", fmt.Sprintf("|now - %s| > %s", e.Timestamp, skew)})
			}
			hskew := ctx.HeightSkew
			if hskew == 0 {
				hskew = DefaultHeightSkew
			}
			diff := ctx.CurrentBlockHeight - e.BlockHeight
			if diff < 0 {
				diff = -diff
			}
			if diff > hskew {
				violations = append(violations, Violation{"height_skew", fmt.Sprintf("|%d - %d| > %d", ctx.CurrentBlockHeight, e.BlockHeight, hskew)})
			}
		}
	}

	// Invariant 5: every hash-linked predecessor referenced by the
	// message (any "sha3_256_hash_of_" field other than the message's own)
	// must be known.
	if ctx.PredecessorHashes != nil {
		for _, r := range refs {
			if !ctx.PredecessorHashes[r.value] {
				violations = append(violations, Violation{"unknown_predecessor", fmt.Sprintf("%s=%s not known", r.name, r.value)})
			}
		}
	}

	return violations, nil
}

// RequireValid runs Validate and shapes any violations into a single
// non-retryable validation error, for engines that treat a failed
// invariant as fatal for the current stage.
func RequireValid(msg interface{}, ctx ValidationContext) error {
	violations, err := Validate(msg, ctx)
	if err != nil {
		return protocol.NewEngineError(protocol.KindProtocolViolation, "validate message", err)
	}
	if len(violations) > 0 {
		details := make([]string, len(violations))
		for i, v := range violations {
			details[i] = v.String()
		}
		return protocol.NewEngineError(protocol.KindValidation, strings.Join(details, "; "), nil)
	}
	return nil
}

type hashRef struct{ name, value string }

// lastFields mirrors canonicalValue's field walk but returns the message's
// own last hash/signature field (name + value) plus every earlier
// "sha3_256_hash_of_" field as a predecessor reference.
func lastFields(rv reflect.Value) (hashName, hashVal, sigName, sigVal string, refs []hashRef) {
	fields := reflect.VisibleFields(rv.Type())
	type entry struct {
		name string
		val  reflect.Value
	}
	var entries []entry
	hashIdx, sigIdx := -1, -1
	for _, f := range fields {
		if f.PkgPath != "" || !f.IsExported() {
			continue
		}
		name, omitempty, skip := jsonTag(f)
		if skip || isSignatureDictFieldName(name) {
			continue
		}
		fv := rv.FieldByIndex(f.Index)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		entries = append(entries, entry{name, fv})
		idx := len(entries) - 1
		if isHashFieldName(name) {
			hashIdx = idx
		}
		if isSignatureFieldName(name) {
			sigIdx = idx
		}
	}
	for i, e := range entries {
		asStr := stringOf(e.val)
		switch i {
		case hashIdx:
			hashName, hashVal = e.name, asStr
		case sigIdx:
			sigName, sigVal = e.name, asStr
		default:
			if isHashFieldName(e.name) && asStr != "" {
				refs = append(refs, hashRef{e.name, asStr})
			}
		}
	}
	return
}

func stringOf(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}
