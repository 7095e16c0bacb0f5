// Package rpcclient is the chain-node JSON-RPC 1.1 façade: every call to
// the local Pastel Network node — wallet operations, block/transaction
// lookups, pastelid signing — goes through Client.Call.
// The node speaks HTTP Basic auth over a single keep-alive connection pool;
// concurrency is capped by a global semaphore and transient failures are
// retried with exponential backoff, mirroring the pooling/backoff shape of
// the wider codebase's connection management.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pastelnetwork/supernode-client/internal/protocol"
	"github.com/pastelnetwork/supernode-client/pkg/utils"
)

// DefaultMaxConcurrentCalls is the global in-flight call ceiling: the
// chain node's RPC server is a single process and large bursts of
// concurrent calls (quorum fan-out, audit fan-out) must not overwhelm it.
const DefaultMaxConcurrentCalls = 5000

// DefaultMaxRetries and DefaultRetryBaseDelay bound the exponential-backoff
// retry applied to connection-level failures.
const (
	DefaultMaxRetries    = 5
	DefaultRetryBaseDelay = 200 * time.Millisecond
)

// Client is a JSON-RPC 1.1 client bound to one chain-node endpoint.
type Client struct {
	endpoint   string
	user, pass string
	httpClient *http.Client
	sem        chan struct{}
	maxRetries int
	baseDelay  time.Duration
	log        *logrus.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithMaxConcurrentCalls overrides DefaultMaxConcurrentCalls.
func WithMaxConcurrentCalls(n int) Option {
	return func(c *Client) { c.sem = make(chan struct{}, n) }
}

// WithRetryPolicy overrides the default retry count and base delay.
func WithRetryPolicy(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) { c.maxRetries, c.baseDelay = maxRetries, baseDelay }
}

// WithLogger overrides the default logrus logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHTTPClient overrides the transport, primarily for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New builds a Client against endpoint (e.g. "http://127.0.0.1:9932")
// authenticating with user/pass, the local node's rpcuser/rpcpassword.
func New(endpoint, user, pass string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		user:     user,
		pass:     pass,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sem:        make(chan struct{}, DefaultMaxConcurrentCalls),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultRetryBaseDelay,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	Version string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     string          `json:"id"`
}

// Call invokes method with params and decodes the "result" field into out
// (a pointer, or nil to discard the result). Connection-level failures are
// retried with exponential backoff up to maxRetries; a well-formed
// {"error": ...} reply is a terminal protocol.ChainRPCError, and a reply
// with neither "result" nor "error" is a terminal protocol.ProtocolViolation.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	body, err := json.Marshal(rpcRequest{Version: "1.1", ID: "pastelclient", Method: method, Params: params})
	if err != nil {
		return protocol.NewEngineError(protocol.KindProtocolViolation, "encode rpc request", err)
	}

	var lastErr error
	delay := c.baseDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		resp, err := c.doOnce(ctx, method, body)
		if err == nil {
			return decodeResult(resp, out)
		}
		if !isRetryableTransport(err) {
			return err
		}
		lastErr = err
		c.log.WithFields(logrus.Fields{"method": method, "attempt": attempt}).Warn("rpc call failed, retrying")
	}
	return protocol.NewEngineError(protocol.KindChainRPCError, fmt.Sprintf("rpc %s: exhausted retries", method), lastErr)
}

func (c *Client) doOnce(ctx context.Context, method string, body []byte) (*rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, protocol.NewEngineError(protocol.KindProtocolViolation, "build rpc http request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.user, c.pass)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("rpc %s: transport", method), err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("rpc %s: read body", method), err)
	}
	if httpResp.StatusCode >= 500 {
		return nil, protocol.NewEngineError(protocol.KindPeerUnreachable, fmt.Sprintf("rpc %s: http %d", method, httpResp.StatusCode), nil)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, protocol.NewEngineError(protocol.KindProtocolViolation, fmt.Sprintf("rpc %s: malformed json reply", method), err)
	}
	return &parsed, nil
}

func decodeResult(resp *rpcResponse, out interface{}) error {
	if resp.Error != nil {
		return protocol.NewEngineError(protocol.KindChainRPCError, fmt.Sprintf("rpc error %d: %s", resp.Error.Code, resp.Error.Message), nil)
	}
	if resp.Result == nil {
		return protocol.NewEngineError(protocol.KindProtocolViolation, "rpc reply carries neither result nor error", nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return utils.Wrap(err, "decode rpc result")
	}
	return nil
}

func isRetryableTransport(err error) bool {
	return protocol.IsRetryable(err)
}
