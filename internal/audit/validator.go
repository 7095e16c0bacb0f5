// Package audit implements the quorum validator: independent
// re-queries of the inference-response and inference-result endpoints
// across a small band of auditor peers, reconciled against the original
// responder's claimed values by majority vote.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pastelnetwork/supernode-client/internal/peer"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/supernode"
)

// AuditorCount is the number of XOR-closest peers queried, excluding the
// original responder.
const AuditorCount = 4

// InterPhaseDelay separates the audit-response phase from the
// audit-result phase: auditors need time to have actually processed the
// responder's claim before their own view of it is queried.
const InterPhaseDelay = 20 * time.Second

// PeerLister refreshes and filters the active peer snapshot.
type PeerLister interface {
	Refresh(ctx context.Context) (peer.Snapshot, error)
}

// SupernodeDialer builds a supernode.Client bound to one peer's base URL.
type SupernodeDialer func(baseURL string) *supernode.Client

// Validator queries auditor peers and reconciles their answers against an
// original responder's claims.
type Validator struct {
	identity        protocol.Identity
	peers           PeerLister
	dial            SupernodeDialer
	log             *logrus.Logger
	interPhaseDelay time.Duration
}

// New builds a Validator that audits from identity's point of view.
func New(identity protocol.Identity, peers PeerLister, dial SupernodeDialer, log *logrus.Logger) *Validator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Validator{identity: identity, peers: peers, dial: dial, log: log, interPhaseDelay: InterPhaseDelay}
}

// Result is the two-section dict Validate returns: per-field agreement
// between the original responder's claim and the auditor majority.
type Result struct {
	ResponseValidation map[string]bool
	ResultValidation   map[string]bool
}

// pickAuditors selects the AuditorCount XOR-closest active peers to v's own
// identity, excluding responder.
func (v *Validator) pickAuditors(ctx context.Context, responder protocol.Identity) ([]peer.RankedPeer, error) {
	snap, err := v.peers.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	active := peer.FilterActive(snap)
	ranked := peer.TopNByXor(v.identity, active, AuditorCount+1)

	out := make([]peer.RankedPeer, 0, AuditorCount)
	for _, p := range ranked {
		if p.Identity == responder {
			continue
		}
		out = append(out, p)
		if len(out) == AuditorCount {
			break
		}
	}
	return out, nil
}

// Validate runs both audit phases against original and result (the
// responder's claimed usage-response and output-result) and returns the
// per-field majority-agreement report.
func (v *Validator) Validate(ctx context.Context, responder protocol.Identity, original *protocol.InferenceUsageResponse, result *protocol.InferenceOutputResult) (*Result, error) {
	auditors, err := v.pickAuditors(ctx, responder)
	if err != nil {
		return nil, err
	}
	if len(auditors) == 0 {
		return nil, protocol.NewEngineError(protocol.KindPeerUnreachable, "no auditor peers available", nil)
	}

	responses := v.queryAuditResponses(ctx, auditors, original.InferenceResponseID, responder)

	select {
	case <-time.After(v.interPhaseDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	results := v.queryAuditResults(ctx, auditors, result.InferenceResultID, responder)

	return &Result{
		ResponseValidation: reconcileResponse(original, responses),
		ResultValidation:   reconcileResult(result, results),
	}, nil
}

// queryAuditResponses calls /audit_inference_request_response on every
// auditor in parallel; a failing or rejecting auditor is simply absent
// from the returned slice rather than aborting the audit.
func (v *Validator) queryAuditResponses(ctx context.Context, auditors []peer.RankedPeer, responseID string, responder protocol.Identity) []*protocol.InferenceUsageResponse {
	out := make([]*protocol.InferenceUsageResponse, len(auditors))
	var wg sync.WaitGroup
	for i, a := range auditors {
		wg.Add(1)
		go func(i int, a peer.RankedPeer) {
			defer wg.Done()
			client := v.dial(a.URL)
			resp, err := client.AuditInferenceRequestResponse(ctx, responseID, responder)
			if err != nil {
				v.log.WithFields(logrus.Fields{"peer": a.Identity, "error": err}).Warn("audit response query failed")
				return
			}
			out[i] = resp
		}(i, a)
	}
	wg.Wait()
	return compact(out)
}

// queryAuditResults mirrors queryAuditResponses for the result phase.
func (v *Validator) queryAuditResults(ctx context.Context, auditors []peer.RankedPeer, resultID string, responder protocol.Identity) []*protocol.InferenceOutputResult {
	out := make([]*protocol.InferenceOutputResult, len(auditors))
	var wg sync.WaitGroup
	for i, a := range auditors {
		wg.Add(1)
		go func(i int, a peer.RankedPeer) {
			defer wg.Done()
			client := v.dial(a.URL)
			res, err := client.AuditInferenceRequestResult(ctx, resultID, responder)
			if err != nil {
				v.log.WithFields(logrus.Fields{"peer": a.Identity, "error": err}).Warn("audit result query failed")
				return
			}
			out[i] = res
		}(i, a)
	}
	wg.Wait()
	return compact(out)
}

func compact[T any](in []*T) []*T {
	out := make([]*T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}
