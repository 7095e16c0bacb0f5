package supernode

import (
	"context"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// AuditInferenceRequestResponse asks a peer to independently re-derive
// and attest to the usage-response fields of an inference request.
func (c *Client) AuditInferenceRequestResponse(ctx context.Context, inferenceResponseID string, responderIdentity protocol.Identity) (*protocol.InferenceUsageResponse, error) {
	var out protocol.InferenceUsageResponse
	payload := map[string]interface{}{
		"inference_response_id":              inferenceResponseID,
		"responding_supernode_pastelid":      responderIdentity,
	}
	if err := c.post(ctx, "/audit_inference_request_response", TimeoutNormal, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditInferenceRequestResult asks a peer to independently re-derive and
// attest to the final output-result fields of an inference request.
func (c *Client) AuditInferenceRequestResult(ctx context.Context, inferenceResultID string, responderIdentity protocol.Identity) (*protocol.InferenceOutputResult, error) {
	var out protocol.InferenceOutputResult
	payload := map[string]interface{}{
		"inference_result_id":           inferenceResultID,
		"responding_supernode_pastelid": responderIdentity,
	}
	if err := c.post(ctx, "/audit_inference_request_result", TimeoutNormal, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
