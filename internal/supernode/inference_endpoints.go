package supernode

import (
	"context"
	"fmt"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// InferenceModelMenu is the catalogue returned by `GET
// /get_inference_model_menu`: the models a peer offers plus the
// parameters each accepts.
type InferenceModelMenu struct {
	Models []InferenceModelMenuEntry `json:"models"`
}

// InferenceModelMenuEntry describes one offered model.
type InferenceModelMenuEntry struct {
	ModelCanonicalString string                 `json:"model_canonical_string"`
	InferenceTypeString  string                 `json:"model_inference_type_string"`
	SupportedParameters  map[string]ParameterSpec `json:"supported_parameters"`
}

// ParameterSpec constrains one admissible inference parameter.
type ParameterSpec struct {
	Type    string        `json:"type"`
	Options []interface{} `json:"options,omitempty"`
}

// GetInferenceModelMenu fetches the peer's offered-model menu.
func (c *Client) GetInferenceModelMenu(ctx context.Context) (*InferenceModelMenu, error) {
	var out InferenceModelMenu
	if err := c.get(ctx, "/get_inference_model_menu", TimeoutNormal, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MakeInferenceAPIUsageRequest opens an inference request. Long-running:
// the responder validates the requested model/parameters and derives a
// cost quote before replying.
func (c *Client) MakeInferenceAPIUsageRequest(ctx context.Context, req *protocol.InferenceUsageRequest) (*protocol.InferenceUsageResponse, error) {
	var out protocol.InferenceUsageResponse
	if err := c.post(ctx, "/make_inference_api_usage_request", TimeoutLong, structToMap(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmInferenceRequest submits proof of payment for a quoted inference
// request. Long-running: the responder waits on the confirmation
// transaction before replying.
func (c *Client) ConfirmInferenceRequest(ctx context.Context, confirmation *protocol.InferenceConfirmation) error {
	return c.post(ctx, "/confirm_inference_request", TimeoutLong, structToMap(confirmation), nil)
}

// CheckStatusOfInferenceRequestResults polls whether a responseID's
// output is ready.
func (c *Client) CheckStatusOfInferenceRequestResults(ctx context.Context, responseID string) (bool, error) {
	var ready bool
	path := fmt.Sprintf("/check_status_of_inference_request_results/%s", responseID)
	if err := c.get(ctx, path, TimeoutNormal, &ready); err != nil {
		return false, err
	}
	return ready, nil
}

// RetrieveInferenceOutputResults fetches the final decoded output once
// CheckStatusOfInferenceRequestResults reports true.
func (c *Client) RetrieveInferenceOutputResults(ctx context.Context, responseID string, pastelID protocol.Identity) (*protocol.InferenceOutputResult, error) {
	var out protocol.InferenceOutputResult
	path := fmt.Sprintf("/retrieve_inference_output_results?inference_response_id=%s&pastelid=%s", responseID, pastelID)
	if err := c.get(ctx, path, TimeoutNormal, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
