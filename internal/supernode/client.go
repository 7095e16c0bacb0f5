// Package supernode is the HTTP client to an individual peer's REST
// interface: challenge-response authentication, per-endpoint
// timeout tiers, and typed request/response structs for every endpoint the
// purchase, inference, and audit engines call.
package supernode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
)

// BaseMessageTimeout is the default per-call deadline.
// Long-running endpoints (price-quote response, inference submission and
// confirmation) use TimeoutLong, twice this; TimeoutLonger (3×) and
// TimeoutLongest (4×) are defined and no endpoint uses them.
const BaseMessageTimeout = 60 * time.Second

// TimeoutTier names the multiplier applied to BaseMessageTimeout for a
// given endpoint.
type TimeoutTier int

const (
	TimeoutNormal TimeoutTier = 1
	TimeoutLong   TimeoutTier = 2
	TimeoutLonger TimeoutTier = 3
	TimeoutLongest TimeoutTier = 4
)

func (t TimeoutTier) duration() time.Duration {
	return BaseMessageTimeout * time.Duration(t)
}

// Client talks to one peer's HTTP interface at baseURL, maintaining a
// signed challenge that is fetched by the first post and attached to every
// post; GETs carry no challenge.
type Client struct {
	baseURL    string
	identity   protocol.Identity
	signer     protocol.Signer
	passphrase string
	httpClient *http.Client

	mu        sync.Mutex
	challenge challengeAuth
}

type challengeAuth struct {
	ChallengeID        string
	Challenge          string
	ChallengeSignature string
}

// New builds a Client for one peer reachable at baseURL (e.g.
// "http://203.0.113.4:7123"), authenticating as identity via signer.
func New(baseURL string, identity protocol.Identity, signer protocol.Signer, passphrase string) *Client {
	return &Client{
		baseURL:    baseURL,
		identity:   identity,
		signer:     signer,
		passphrase: passphrase,
		httpClient: &http.Client{},
	}
}

// requestChallengeResponse mirrors `GET /request_challenge/<identity>`.
type requestChallengeResponse struct {
	Challenge   string `json:"challenge"`
	ChallengeID string `json:"challenge_id"`
}

// authenticate fetches a fresh challenge and signs it, caching the result
// for reuse by subsequent calls until ResetAuth is called.
func (c *Client) authenticate(ctx context.Context) (challengeAuth, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.challenge.ChallengeID != "" {
		return c.challenge, nil
	}

	url := fmt.Sprintf("%s/request_challenge/%s", c.baseURL, c.identity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return challengeAuth{}, protocol.NewEngineError(protocol.KindProtocolViolation, "build challenge request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return challengeAuth{}, protocol.NewEngineError(protocol.KindPeerUnreachable, "request_challenge", err).WithPeer(c.identity)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return challengeAuth{}, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("request_challenge http %d", resp.StatusCode), nil).WithPeer(c.identity)
	}

	var parsed requestChallengeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return challengeAuth{}, protocol.NewEngineError(protocol.KindProtocolViolation, "decode request_challenge reply", err).WithPeer(c.identity)
	}

	sig, err := c.signer.Sign(c.identity, parsed.Challenge, c.passphrase)
	if err != nil {
		return challengeAuth{}, protocol.NewEngineError(protocol.KindChainRPCError, "sign challenge", err)
	}

	c.challenge = challengeAuth{ChallengeID: parsed.ChallengeID, Challenge: parsed.Challenge, ChallengeSignature: sig}
	return c.challenge, nil
}

// ResetAuth discards the cached challenge, forcing the next post to fetch
// and sign a fresh one. Nothing in this package calls it on a failed reply.
func (c *Client) ResetAuth() {
	c.mu.Lock()
	c.challenge = challengeAuth{}
	c.mu.Unlock()
}

// post signs in (caching the challenge) and POSTs payload merged with the
// challenge fields to path, decoding the JSON reply into out.
func (c *Client) post(ctx context.Context, path string, tier TimeoutTier, payload map[string]interface{}, out interface{}) error {
	auth, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	body := make(map[string]interface{}, len(payload)+3)
	for k, v := range payload {
		body[k] = v
	}
	body["challenge_id"] = auth.ChallengeID
	body["challenge"] = auth.Challenge
	body["challenge_signature"] = auth.ChallengeSignature

	return c.do(ctx, http.MethodPost, path, tier, body, out)
}

// get performs a GET without challenge fields (query parameters are the caller's
// responsibility; path must already include them).
func (c *Client) get(ctx context.Context, path string, tier TimeoutTier, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, tier, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, tier TimeoutTier, body map[string]interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, tier.duration())
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return protocol.NewEngineError(protocol.KindProtocolViolation, "encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return protocol.NewEngineError(protocol.KindProtocolViolation, "build http request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("%s %s", method, path), err).WithPeer(c.identity)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return protocol.NewEngineError(protocol.KindPeerUnreachable, "read response body", err).WithPeer(c.identity)
	}
	if resp.StatusCode >= 500 {
		return protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("%s %s: http %d", method, path, resp.StatusCode), nil).WithPeer(c.identity)
	}
	if resp.StatusCode >= 400 {
		return protocol.NewEngineError(protocol.KindProtocolViolation, fmt.Sprintf("%s %s: http %d: %s", method, path, resp.StatusCode, string(raw)), nil).WithPeer(c.identity)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocol.NewEngineError(protocol.KindProtocolViolation, fmt.Sprintf("decode %s reply", path), err).WithPeer(c.identity)
	}
	return nil
}

// IsRejection reports whether msg carries rejection_reason_string or
// termination_reason_string, the generic terminal-peer-rejection marker
// shared across endpoints.
func IsRejection(rejectionReason, terminationReason string) bool {
	return rejectionReason != "" || terminationReason != ""
}
