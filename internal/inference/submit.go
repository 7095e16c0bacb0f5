package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/pastelnetwork/supernode-client/internal/envelope"
	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/internal/rpcclient"
)

// maxPollAttempts and pollDelay implement the polling backoff: wait times
// w_i = 3 * 1.04^i seconds, up to 60 attempts.
const maxPollAttempts = 60

func pollDelay(i int) time.Duration {
	return time.Duration(3 * math.Pow(1.04, float64(i)) * float64(time.Second))
}

// pollDelayFn is a package-level seam over pollDelay so tests can collapse
// the wait to nothing without reaching into Engine's exported API.
var pollDelayFn = pollDelay

// confirmationTxidPattern validates the txid returned for the tracking
// transaction before it is embedded in the confirmation message.
var confirmationTxidPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Params are the caller-supplied inputs to Submit.
type Params struct {
	CreditPackTxid string
	Model          string
	InferenceType  string
	Parameters     map[string]interface{}
	Input          []byte
	MaxCostCredits float64
	BurnAddress    string
}

// Result is what Submit returns: the messages produced along the way and
// the final decoded output, or an Err if the lifecycle was aborted before
// producing one.
type Result struct {
	UsageRequest     *protocol.InferenceUsageRequest
	UsageResponse    *protocol.InferenceUsageResponse
	ConfirmationTxid string
	Confirmation     *protocol.InferenceConfirmation
	OutputResult     *protocol.InferenceOutputResult
	Decoded          []byte

	Err error
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	return r
}

// Submit runs the inference-request lifecycle against peer
// (as discovered by Discover): build and sign the usage request, check the
// quoted cost and tracking-address balance, pay the tracking amount,
// confirm, poll for readiness, retrieve and decode the result.
func (e *Engine) Submit(ctx context.Context, peerURL string, peerID protocol.Identity, p Params) *Result {
	res := &Result{}

	requestID := uuid.NewString()
	paramsB64, err := encodeJSONB64(p.Parameters)
	if err != nil {
		return res.fail(err)
	}
	inputB64 := base64.StdEncoding.EncodeToString(p.Input)

	height, err := e.currentBlockHeight(ctx)
	if err != nil {
		return res.fail(err)
	}

	req := &protocol.InferenceUsageRequest{
		Envelope:                 protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: height, Version: "1.0"},
		InferenceRequestID:       requestID,
		RequestingPastelID:       e.identity,
		CreditPackTicketTxid:     p.CreditPackTxid,
		RequestedModel:           p.Model,
		ModelInferenceTypeString: p.InferenceType,
		ModelParametersJSONB64:   paramsB64,
		ModelInputDataJSONB64:    inputB64,
	}
	hash, sig, err := envelope.Sign(e.signer, e.identity, e.passphrase, req)
	if err != nil {
		return res.fail(err)
	}
	req.RequestHash, req.RequesterSignature = hash, sig
	res.UsageRequest = req
	e.store.InsertInferenceUsageRequest(req)

	client := e.dial(peerURL)

	usageResp, err := client.MakeInferenceAPIUsageRequest(ctx, req)
	if err != nil {
		return res.fail(err)
	}
	res.UsageResponse = usageResp
	if usageResp.IsRejection() {
		return res.fail(protocol.NewEngineError(protocol.KindPeerRejection, "inference usage request rejected", nil).WithPeer(peerID))
	}
	if err := envelope.RequireValid(usageResp, envelope.ValidationContext{
		Signer:             e.signer,
		SignerIdentity:     usageResp.ResponderIdentity,
		CurrentBlockHeight: height,
	}); err != nil {
		return res.fail(err)
	}
	e.store.InsertInferenceUsageResponse(usageResp)

	// Step 2: cost ceiling and tracking-address balance checks abort if
	// either fails — no burn transaction is sent on either failure.
	if usageResp.ProposedCostInCredits > p.MaxCostCredits {
		return res.fail(protocol.NewEngineError(protocol.KindValidation, fmt.Sprintf("proposed cost %.4f exceeds max %.4f credits", usageResp.ProposedCostInCredits, p.MaxCostCredits), nil))
	}
	requiredPSL := float64(usageResp.ConfirmationAmountPatoshis) / 1e5
	balances, err := e.chain.ListAddressAmounts(ctx)
	if err != nil {
		return res.fail(err)
	}
	if balances[usageResp.CreditUsageTrackingAddress] < requiredPSL {
		return res.fail(protocol.NewEngineError(protocol.KindInsufficientFunds, fmt.Sprintf("tracking address %s balance %.5f < required %.5f", usageResp.CreditUsageTrackingAddress, balances[usageResp.CreditUsageTrackingAddress], requiredPSL), nil))
	}

	// Step 3: send the tracking amount to the burn address from the
	// credit-tracking address.
	memo := fmt.Sprintf("Confirmation tracking transaction for inference request with request_id %s", requestID)
	txid, err := e.chain.SendMany(ctx, usageResp.CreditUsageTrackingAddress, []rpcclient.SendManyRecipient{
		{Address: p.BurnAddress, Amount: requiredPSL},
	}, memo)
	if err != nil {
		return res.fail(err)
	}
	if !confirmationTxidPattern.MatchString(txid) {
		return res.fail(protocol.NewEngineError(protocol.KindProtocolViolation, fmt.Sprintf("confirmation txid %q does not match expected format", txid), nil))
	}
	res.ConfirmationTxid = txid

	// Step 5: confirm payment.
	confirmation := &protocol.InferenceConfirmation{
		Envelope:           protocol.Envelope{Timestamp: time.Now().UTC(), BlockHeight: height, Version: "1.0"},
		InferenceRequestID: requestID,
		RequestingIdentity: e.identity,
		Txid:               txid,
	}
	hash, sig, err = envelope.Sign(e.signer, e.identity, e.passphrase, confirmation)
	if err != nil {
		return res.fail(err)
	}
	confirmation.ConfirmationHash, confirmation.RequesterSignature = hash, sig
	res.Confirmation = confirmation
	e.store.InsertInferenceConfirmation(confirmation)

	if err := client.ConfirmInferenceRequest(ctx, confirmation); err != nil {
		return res.fail(err)
	}

	// Step 6: poll for readiness with an exponential-ish backoff.
	ready, err := e.pollUntilReady(ctx, client, usageResp.InferenceResponseID)
	if err != nil {
		return res.fail(err)
	}
	if !ready {
		return res.fail(protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("inference result for %s not ready after %d polls", usageResp.InferenceResponseID, maxPollAttempts), nil))
	}

	// Step 7: retrieve and decode.
	output, err := client.RetrieveInferenceOutputResults(ctx, usageResp.InferenceResponseID, e.identity)
	if err != nil {
		return res.fail(err)
	}
	res.OutputResult = output

	// Polling may have spanned many blocks, so the height check runs
	// against a fresh tip. The result's terminal signature is over the
	// result id rather than the field hash, so it is verified directly.
	outHeight, err := e.currentBlockHeight(ctx)
	if err != nil {
		return res.fail(err)
	}
	if err := envelope.RequireValid(output, envelope.ValidationContext{CurrentBlockHeight: outHeight}); err != nil {
		return res.fail(err)
	}
	ok, err := e.signer.Verify(output.ResponderIdentity, output.InferenceResultID, output.ResponderSignature)
	if err != nil {
		return res.fail(protocol.NewEngineError(protocol.KindChainRPCError, "verify result signature", err))
	}
	if !ok {
		return res.fail(protocol.NewEngineError(protocol.KindValidation, "responder signature on inference result id does not verify", nil).WithPeer(output.ResponderIdentity))
	}
	e.store.InsertInferenceOutputResult(output)

	decoded, err := decodeOutput(p.InferenceType, output.InferenceResultJSONB64)
	if err != nil {
		return res.fail(err)
	}
	res.Decoded = decoded

	return res
}

func (e *Engine) pollUntilReady(ctx context.Context, client pollClient, responseID string) (bool, error) {
	for i := 0; i < maxPollAttempts; i++ {
		select {
		case <-time.After(pollDelayFn(i)):
		case <-ctx.Done():
			return false, ctx.Err()
		}
		ready, err := client.CheckStatusOfInferenceRequestResults(ctx, responseID)
		if err != nil {
			continue
		}
		if ready {
			return true, nil
		}
	}
	return false, nil
}

// pollClient is the subset of supernode.Client pollUntilReady needs, kept
// as an interface so tests can poll against a fake without standing up
// real HTTP round trips for every attempt.
type pollClient interface {
	CheckStatusOfInferenceRequestResults(ctx context.Context, responseID string) (bool, error)
}

// decodeOutput implements per-inference-type decoding.
func decodeOutput(inferenceType, payloadB64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, protocol.NewEngineError(protocol.KindProtocolViolation, "decode inference output payload", err)
	}
	switch inferenceType {
	case "text_to_image":
		var wrapper struct {
			Image string `json:"image"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, protocol.NewEngineError(protocol.KindProtocolViolation, "decode text_to_image wrapper", err)
		}
		img, err := base64.StdEncoding.DecodeString(wrapper.Image)
		if err != nil {
			return nil, protocol.NewEngineError(protocol.KindProtocolViolation, "decode text_to_image image field", err)
		}
		return img, nil
	case "embedding_document":
		return raw, nil
	default:
		return raw, nil
	}
}

func encodeJSONB64(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", protocol.NewEngineError(protocol.KindProtocolViolation, "encode parameters", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
