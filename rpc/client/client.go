package client

import (
	"context"

	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
)

//go:generate ../../scripts/mockery_generate.sh Transport

// Transport sends raw JSON-RPC calls to a full node.
//
// Batch sends all requests in one round trip. On success it returns one
// result per request, in request order; a failure of a single call is
// reported in its slot. An error means the batch as a whole failed.
type Transport interface {
	Batch(ctx context.Context, requests []coretypes.MethodRequest) ([]coretypes.Result, error)
}

// Call sends a single request through t.
func Call(ctx context.Context, t Transport, req coretypes.MethodRequest) (coretypes.Result, error) {
	results, err := t.Batch(ctx, []coretypes.MethodRequest{req})
	if err != nil {
		return coretypes.Result{}, err
	}
	if len(results) != 1 {
		return coretypes.Result{}, ErrResponseCount{Expected: 1, Got: len(results)}
	}
	return results[0], nil
}
