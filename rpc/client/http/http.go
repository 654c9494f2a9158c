package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ybbus/jsonrpc/v3"

	rpcclient "github.com/ledgerlight/ledgerlight/rpc/client"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
)

const defaultTimeout = 10 * time.Second

// HTTP is a JSON-RPC 2.0 Transport over HTTP. Every call of a batch goes out
// in a single HTTP request.
//
// Results are wrapped in an envelope holding the value and the ledger state
// it was served against:
//
//	{"value": {...}, "state": {"chain_id": 4, "version": 100, "timestamp_usecs": 1}}
type HTTP struct {
	remote string
	rpc    jsonrpc.RPCClient
}

var _ rpcclient.Transport = (*HTTP)(nil)

// envelope is the result object of every call.
type envelope struct {
	Value json.RawMessage `json:"value"`
	State coretypes.State `json:"state"`
}

// New returns a transport talking to remote. If no scheme is provided in the
// remote URL, http will be used by default.
func New(remote string) (*HTTP, error) {
	return NewWithTimeout(remote, defaultTimeout)
}

// NewWithTimeout is like New with a custom timeout for a whole batch. A
// context passed to Batch can cut a round trip shorter.
func NewWithTimeout(remote string, timeout time.Duration) (*HTTP, error) {
	return NewWithClient(remote, &http.Client{Timeout: timeout})
}

// NewWithClient allows you to provide a custom http client.
func NewWithClient(remote string, c *http.Client) (*HTTP, error) {
	if remote == "" {
		return nil, fmt.Errorf("empty remote address")
	}
	if !strings.Contains(remote, "://") {
		remote = "http://" + remote
	}
	return &HTTP{
		remote: remote,
		rpc:    jsonrpc.NewClientWithOpts(remote, &jsonrpc.RPCClientOpts{HTTPClient: c}),
	}, nil
}

// Remote returns the remote network address in a string form.
func (c *HTTP) Remote() string { return c.remote }

func (c *HTTP) String() string { return fmt.Sprintf("http{%s}", c.remote) }

// Batch implements client.Transport.
func (c *HTTP) Batch(ctx context.Context, requests []coretypes.MethodRequest) ([]coretypes.Result, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	// Params are always sent positionally. jsonrpc.NewRequest would unwrap a
	// lone slice parameter such as a submitted transaction.
	batch := make(jsonrpc.RPCRequests, len(requests))
	for i, req := range requests {
		batch[i] = &jsonrpc.RPCRequest{Method: req.Method(), Params: req.Params()}
	}

	responses, err := c.rpc.CallBatch(ctx, batch)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("post batch to %s: %w", c.remote, ctxErr)
		}
		return nil, fmt.Errorf("post batch to %s: %w", c.remote, err)
	}
	if len(responses) != len(requests) {
		return nil, rpcclient.ErrResponseCount{Expected: len(requests), Got: len(responses)}
	}

	// CallBatch numbers requests from 0 in order; servers may answer in any
	// order.
	byID := responses.AsMap()
	results := make([]coretypes.Result, len(requests))
	for i, req := range requests {
		resp, ok := byID[i]
		if !ok {
			return nil, fmt.Errorf("missing response to request #%d (%s)", i, req.Method())
		}
		results[i] = decodeResult(req, resp)
	}
	return results, nil
}

func decodeResult(req coretypes.MethodRequest, resp *jsonrpc.RPCResponse) coretypes.Result {
	if resp.Error != nil {
		return coretypes.Result{Err: &coretypes.RPCError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.Data,
		}}
	}

	var env envelope
	if err := resp.GetObject(&env); err != nil {
		return coretypes.Result{Err: fmt.Errorf("%w: %s envelope: %v", coretypes.ErrMalformedResponse, req.Method(), err)}
	}
	value, err := coretypes.DecodeResponse(req, env.Value)
	if err != nil {
		return coretypes.Result{State: env.State, Err: fmt.Errorf("%w: %s: %v", coretypes.ErrMalformedResponse, req.Method(), err)}
	}
	return coretypes.Result{Response: value, State: env.State}
}
