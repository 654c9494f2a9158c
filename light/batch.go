package light

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	rpcclient "github.com/ledgerlight/ledgerlight/rpc/client"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
)

// verifyingBatch is a batch of logical requests, each expanded into the
// subrequests that prove it.
type verifyingBatch struct {
	requests []verifyingRequest
}

func newVerifyingBatch(requests []coretypes.MethodRequest) (verifyingBatch, error) {
	b := verifyingBatch{requests: make([]verifyingRequest, len(requests))}
	for i, req := range requests {
		r, err := newVerifyingRequest(req)
		if err != nil {
			return verifyingBatch{}, fmt.Errorf("request #%d: %w", i, err)
		}
		b.requests[i] = r
	}
	return b, nil
}

func (b verifyingBatch) numSubrequests() int {
	n := 0
	for _, r := range b.requests {
		n += len(r.subrequests)
	}
	return n
}

// collectRequests flattens the subrequests in request order.
func (b verifyingBatch) collectRequests() []coretypes.MethodRequest {
	out := make([]coretypes.MethodRequest, 0, b.numSubrequests()+1)
	for _, r := range b.requests {
		out = append(out, r.subrequests...)
	}
	return out
}

// validateResponses splits results back along request boundaries and
// verifies every request against ctx. A count or metadata mismatch fails the
// whole batch; a request that fails verification only fails its own slot.
//
// With workers > 1 requests are verified concurrently, by at most workers
// goroutines.
func (b verifyingBatch) validateResponses(
	ctx context.Context,
	rctx requestContext,
	results []coretypes.Result,
	workers int,
) ([]coretypes.Result, error) {
	if n := b.numSubrequests(); n != len(results) {
		return nil, ErrRPCResponse{Reason: rpcclient.ErrResponseCount{Expected: n, Got: len(results)}}
	}
	for i, res := range results {
		if res.Err == nil && res.State != rctx.state {
			return nil, ErrRPCResponse{
				Method: b.subrequest(i).Method(),
				Reason: fmt.Errorf("response metadata %v differs from the state proof's %v", res.State, rctx.state),
			}
		}
	}

	offsets := make([]int, len(b.requests)+1)
	for i, r := range b.requests {
		offsets[i+1] = offsets[i] + len(r.subrequests)
	}
	out := make([]coretypes.Result, len(b.requests))
	validate := func(i int) {
		out[i] = b.requests[i].validateSubresponses(rctx, results[offsets[i]:offsets[i+1]])
	}

	if workers <= 1 || len(b.requests) < 2 {
		for i := range b.requests {
			validate(i)
		}
		return out, nil
	}

	var (
		g   errgroup.Group
		sem = semaphore.NewWeighted(int64(workers))
	)
	for i := range b.requests {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			_ = g.Wait()
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			validate(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// subrequest returns the i-th flattened subrequest.
func (b verifyingBatch) subrequest(i int) coretypes.MethodRequest {
	for _, r := range b.requests {
		if i < len(r.subrequests) {
			return r.subrequests[i]
		}
		i -= len(r.subrequests)
	}
	return nil
}
