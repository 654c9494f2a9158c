package light

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/light/store"
	rpcclient "github.com/ledgerlight/ledgerlight/rpc/client"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

// Option sets a parameter for the light client.
type Option func(*Client)

// Logger option can be used to set a logger for the client.
func Logger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics option sets the metrics the client reports to. Default:
// NopMetrics().
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// ChainID option makes the client reject responses served for another chain.
// By default the chain id is not checked.
func ChainID(id uint8) Option {
	return func(c *Client) {
		c.chainID = id
		c.checkChainID = true
	}
}

// AutoSyncWhenBehind option decides what happens when a batch cannot be
// verified because the client is behind: either the client has no verified
// accumulator yet, or the server has more epoch changes than fit in one state
// proof. When false (default) the batch fails with ErrNeedsSync after
// ratcheting as far as the state proof allows, and the caller is expected to
// call Sync. When true the client syncs and retries the batch once.
func AutoSyncWhenBehind(enabled bool) Option {
	return func(c *Client) {
		c.autoSyncWhenBehind = enabled
	}
}

// ParallelVerification option verifies the requests of a batch concurrently
// on up to workers goroutines. Values below 2 verify sequentially (default).
func ParallelVerification(workers int) Option {
	return func(c *Client) {
		c.workers = workers
	}
}

// Client is a verifying light client of a single full node. Every response
// it returns was proven against a ledger header signed by a quorum of the
// validators it trusts, starting from a waypoint.
//
// A Client is safe for concurrent use. Concurrent requests are each verified
// against a version at least as new as the one trusted when they were
// issued; sequential calls observe non-decreasing versions.
type Client struct {
	transport rpcclient.Transport
	store     *trustedStateStore

	chainID            uint8
	checkChainID       bool
	autoSyncWhenBehind bool
	workers            int

	logger  log.Logger
	metrics *Metrics
}

// NewClient returns a light client starting from trustedState, usually the
// waypoint only state of a fresh client. A state found in storage wins if it
// is at least as new.
//
// See all Option(s) for the additional configuration.
func NewClient(
	transport rpcclient.Transport,
	trustedState types.TrustedState,
	storage store.Storage,
	options ...Option) (*Client, error) {

	s, err := newTrustedStateStore(trustedState, storage)
	if err != nil {
		return nil, err
	}
	return newClient(transport, s, options), nil
}

// NewClientFromTrustedStore initializes an existing client from the state
// persisted in storage.
//
// See NewClient
func NewClientFromTrustedStore(
	transport rpcclient.Transport,
	storage store.Storage,
	options ...Option) (*Client, error) {

	s, err := loadTrustedStateStore(storage)
	if err != nil {
		return nil, err
	}
	return newClient(transport, s, options), nil
}

func newClient(transport rpcclient.Transport, s *trustedStateStore, options []Option) *Client {
	c := &Client{
		transport: transport,
		store:     s,
		logger:    log.NewNopLogger(),
		metrics:   NopMetrics(),
	}
	for _, o := range options {
		o(c)
	}

	state := s.trustedState()
	c.metrics.TrustedVersion.Set(float64(state.Version()))
	c.metrics.TrustedEpoch.Set(float64(state.Epoch()))
	c.logger.Info("Light client started", "trusted", state)
	return c
}

// Version returns a snapshot of the latest trusted ledger version.
func (c *Client) Version() uint64 { return c.store.version() }

// Waypoint returns a snapshot of the latest trusted waypoint.
func (c *Client) Waypoint() types.Waypoint { return c.store.waypoint() }

// TrustedState returns a snapshot of the trusted state.
func (c *Client) TrustedState() types.TrustedState { return c.store.trustedState() }

// Sync requests state proofs until the client trusts the latest ledger
// header of the server, or an error occurs.
func (c *Client) Sync(ctx context.Context) error {
	for {
		before := c.TrustedState()
		more, err := c.SyncOneStep(ctx)
		if err != nil {
			return err
		}
		if !more {
			c.logger.Debug("Synced", "version", c.Version())
			return nil
		}
		if after := c.TrustedState(); !after.IsNewerThan(before) && after.Epoch() == before.Epoch() {
			return ErrRPCResponse{
				Method: coretypes.MethodGetStateProof,
				Reason: fmt.Errorf("state proof has more epoch changes but leaves the client at version %d, epoch %d",
					after.Version(), after.Epoch()),
			}
		}
		c.logger.Info("Syncing", "version", c.Version(), "epoch", c.TrustedState().Epoch())
	}
}

// SyncOneStep requests a single state proof and ratchets the trusted state
// with it. It reports whether the server has more epoch changes to sync.
//
// A client without a verified accumulator also requests a consistency proof
// from genesis to its waypoint to build one.
func (c *Client) SyncOneStep(ctx context.Context) (bool, error) {
	c.metrics.SyncSteps.Add(1)

	trusted := c.TrustedState()
	version := trusted.Version()
	requests := []coretypes.MethodRequest{coretypes.GetStateProof{Version: version}}
	bootstrap := !trusted.IsVerified()
	if bootstrap {
		requests = append([]coretypes.MethodRequest{
			coretypes.GetAccumulatorConsistencyProof{LedgerVersion: &version},
		}, requests...)
	}

	results, err := c.transport.Batch(ctx, requests)
	if err != nil {
		return false, ErrRequest{Reason: err}
	}
	if len(results) != len(requests) {
		return false, ErrRPCResponse{Reason: rpcclient.ErrResponseCount{Expected: len(requests), Got: len(results)}}
	}

	last := results[len(results)-1]
	proof, err := c.stateProofFrom(last)
	if err != nil {
		return false, err
	}

	var initial *types.TransactionAccumulatorSummary
	if bootstrap {
		if initial, err = genesisAccumulator(results[0], last.State, version); err != nil {
			return false, err
		}
	}

	if err := c.verifyAndRatchet(trusted, proof, initial); err != nil {
		return false, err
	}
	return proof.More(), nil
}

// genesisAccumulator builds the accumulator summary at version from a
// consistency proof from genesis. Its root is checked by VerifyAndRatchet.
func genesisAccumulator(res coretypes.Result, state coretypes.State, version uint64) (*types.TransactionAccumulatorSummary, error) {
	const method = coretypes.MethodGetAccumulatorConsistencyProof
	if res.Err != nil {
		if errors.Is(res.Err, coretypes.ErrMalformedResponse) {
			return nil, ErrDecode{Method: method, Reason: res.Err}
		}
		return nil, fmt.Errorf("%s: %w", method, res.Err)
	}
	if res.State != state {
		return nil, ErrRPCResponse{
			Method: method,
			Reason: fmt.Errorf("response metadata %v differs from the state proof's %v", res.State, state),
		}
	}
	resp, ok := res.Response.(coretypes.GetAccumulatorConsistencyProofResponse)
	if !ok {
		return nil, ErrRPCResponse{Method: method, Reason: fmt.Errorf("%w: %T", coretypes.ErrUnexpectedResponse, res.Response)}
	}
	proof, err := resp.Proof.Decode()
	if err != nil {
		return nil, ErrDecode{Method: method, Reason: err}
	}
	summary, err := types.NewAccumulatorSummaryFromGenesis(proof, version)
	if err != nil {
		return nil, ErrInvalidProof{Method: method, Reason: err}
	}
	return summary, nil
}

// stateProofFrom decodes a get_state_proof result and checks it against the
// metadata it was served with.
func (c *Client) stateProofFrom(res coretypes.Result) (*types.StateProof, error) {
	const method = coretypes.MethodGetStateProof
	if res.Err != nil {
		if errors.Is(res.Err, coretypes.ErrMalformedResponse) {
			return nil, ErrDecode{Method: method, Reason: res.Err}
		}
		return nil, fmt.Errorf("%s: %w", method, res.Err)
	}
	resp, ok := res.Response.(coretypes.GetStateProofResponse)
	if !ok {
		return nil, ErrRPCResponse{Method: method, Reason: fmt.Errorf("%w: %T", coretypes.ErrUnexpectedResponse, res.Response)}
	}
	proof, err := resp.StateProof.Decode()
	if err != nil {
		return nil, ErrDecode{Method: method, Reason: err}
	}

	state := res.State
	if c.checkChainID && state.ChainID != c.chainID {
		return nil, ErrRPCResponse{Method: method, Reason: fmt.Errorf("chain id %d, expected %d", state.ChainID, c.chainID)}
	}
	// A truncated proof targets its last epoch change rather than the
	// latest header, which the metadata describes.
	if proof.More() {
		return proof, nil
	}
	li := &proof.Target.Header
	if li.Version != state.Version {
		return nil, ErrInvalidProof{
			Method: method,
			Reason: fmt.Errorf("latest ledger header version %d does not match response version %d", li.Version, state.Version),
		}
	}
	if li.TimestampUsecs != state.TimestampUsecs {
		return nil, ErrInvalidProof{
			Method: method,
			Reason: fmt.Errorf("latest ledger header timestamp %d does not match response timestamp %d",
				li.TimestampUsecs, state.TimestampUsecs),
		}
	}
	return proof, nil
}

// verifyAndRatchet verifies proof starting from trusted, the state when the
// request was made, and ratchets the store if the result is newer than what
// it holds now. Concurrent requests may have moved it past the result.
func (c *Client) verifyAndRatchet(
	trusted types.TrustedState,
	proof *types.StateProof,
	initial *types.TransactionAccumulatorSummary,
) error {
	change, err := trusted.VerifyAndRatchet(proof, initial)
	if err != nil {
		c.metrics.InvalidStateProofs.Add(1)
		c.logger.Error("State proof failed verification", "trusted", trusted, "err", err)
		return ErrInvalidProof{Method: coretypes.MethodGetStateProof, Reason: err}
	}
	if !change.IsChanged() {
		return nil
	}

	ratcheted, err := c.store.ratchet(*change.NewState)
	if err != nil {
		return err
	}
	if !ratcheted {
		return nil
	}

	next := change.NewState
	c.metrics.Ratchets.Add(1)
	c.metrics.TrustedVersion.Set(float64(next.Version()))
	c.metrics.TrustedEpoch.Set(float64(next.Epoch()))
	if change.EpochChanged {
		c.logger.Info("Trusting new epoch", "epoch", next.Epoch(), "waypoint", next.Waypoint())
	}
	c.logger.Debug("Ratcheted trusted state", "from", trusted.Version(), "to", next.Version())
	return nil
}

// ActualBatchSize returns the number of calls Batch sends for requests,
// including the state proof.
func ActualBatchSize(requests []coretypes.MethodRequest) (int, error) {
	b, err := newVerifyingBatch(requests)
	if err != nil {
		return 0, err
	}
	return b.numSubrequests() + 1, nil
}

// Batch sends requests to the server in a single round trip, together with
// a state proof from the trusted version, and verifies every response.
//
// An error means nothing in the batch could be trusted. Otherwise there is
// one result per request; a request whose proof does not verify fails in
// its own slot without affecting the others. The trusted state is ratcheted
// at most once per batch.
func (c *Client) Batch(ctx context.Context, requests []coretypes.MethodRequest) ([]coretypes.Result, error) {
	batch, err := newVerifyingBatch(requests)
	if err != nil {
		return nil, err
	}

	if !c.TrustedState().IsVerified() {
		if !c.autoSyncWhenBehind {
			return nil, ErrNeedsSync{Version: c.Version(), Reason: "no verified accumulator yet"}
		}
		if err := c.Sync(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	results, err := c.batch(ctx, batch)
	var needsSync ErrNeedsSync
	if c.autoSyncWhenBehind && errors.As(err, &needsSync) {
		c.logger.Info("Behind the server, syncing before retrying the batch", "version", c.Version())
		if err := c.Sync(ctx); err != nil {
			return nil, err
		}
		results, err = c.batch(ctx, batch)
	}
	if err != nil {
		return nil, err
	}
	c.metrics.BatchDurationSeconds.Observe(time.Since(start).Seconds())

	for i, res := range results {
		method := requests[i].Method()
		c.metrics.Requests.With("method", method).Add(1)
		if res.Err != nil {
			c.metrics.RequestErrors.With("method", method).Add(1)
			c.logger.Debug("Request failed", "method", method, "err", res.Err)
		}
	}
	return results, nil
}

func (c *Client) batch(ctx context.Context, batch verifyingBatch) ([]coretypes.Result, error) {
	trusted := c.TrustedState()
	startVersion := trusted.Version()

	requests := append(batch.collectRequests(), coretypes.GetStateProof{Version: startVersion})
	results, err := c.transport.Batch(ctx, requests)
	if err != nil {
		return nil, ErrRequest{Reason: err}
	}
	if len(results) != len(requests) {
		return nil, ErrRPCResponse{Reason: rpcclient.ErrResponseCount{Expected: len(requests), Got: len(results)}}
	}

	last := len(results) - 1
	proof, err := c.stateProofFrom(results[last])
	if err != nil {
		return nil, err
	}
	if err := c.verifyAndRatchet(trusted, proof, nil); err != nil {
		return nil, err
	}
	// The prefix is trusted now, but nothing in the batch can be verified
	// against a header of a past epoch.
	if proof.More() {
		return nil, ErrNeedsSync{Version: c.Version(), Reason: "server has more epoch changes than one state proof carries"}
	}

	rctx := requestContext{
		startVersion: startVersion,
		state:        results[last].State,
		latest:       &proof.Target.Header,
	}
	return batch.validateResponses(ctx, rctx, results[:last], c.workers)
}

// Request sends a single request through Batch.
func (c *Client) Request(ctx context.Context, req coretypes.MethodRequest) (coretypes.Response[coretypes.MethodResponse], error) {
	results, err := c.Batch(ctx, []coretypes.MethodRequest{req})
	if err != nil {
		return coretypes.Response[coretypes.MethodResponse]{}, err
	}
	if len(results) != 1 {
		return coretypes.Response[coretypes.MethodResponse]{}, ErrRPCResponse{
			Method: req.Method(),
			Reason: rpcclient.ErrResponseCount{Expected: 1, Got: len(results)},
		}
	}
	if results[0].Err != nil {
		return coretypes.Response[coretypes.MethodResponse]{}, results[0].Err
	}
	return coretypes.NewResponse(results[0].Response, results[0].State), nil
}

func request[T coretypes.MethodResponse](ctx context.Context, c *Client, req coretypes.MethodRequest) (coretypes.Response[T], error) {
	resp, err := c.Request(ctx, req)
	if err != nil {
		return coretypes.Response[T]{}, err
	}
	v, ok := resp.Value.(T)
	if !ok {
		return coretypes.Response[T]{}, ErrRPCResponse{
			Method: req.Method(),
			Reason: fmt.Errorf("%w: %T", coretypes.ErrUnexpectedResponse, resp.Value),
		}
	}
	return coretypes.NewResponse(v, resp.State), nil
}

// Submit hands txn to the server.
//
// Nothing about the answer can be verified: a dishonest server may drop a
// valid transaction, reject it falsely or accept an invalid one. Only
// submitting to several servers, one of them honest, gets a valid
// transaction committed. Use WaitForSignedTransaction to learn the outcome.
func (c *Client) Submit(ctx context.Context, txn *types.Transaction) (coretypes.Response[struct{}], error) {
	resp, err := request[coretypes.SubmitResponse](ctx, c, coretypes.Submit{Transaction: txn.Marshal()})
	return coretypes.NewResponse(struct{}{}, resp.State), err
}

// GetMetadata returns the metadata of the latest trusted ledger header,
// including the on-chain configuration.
func (c *Client) GetMetadata(ctx context.Context) (coretypes.Response[coretypes.MetadataView], error) {
	resp, err := request[coretypes.GetMetadataResponse](ctx, c, coretypes.GetMetadata{})
	return coretypes.NewResponse(resp.Value.Metadata, resp.State), err
}

// GetMetadataByVersion returns the accumulator root and timestamp of the
// ledger at version.
func (c *Client) GetMetadataByVersion(ctx context.Context, version uint64) (coretypes.Response[coretypes.MetadataView], error) {
	resp, err := request[coretypes.GetMetadataResponse](ctx, c, coretypes.GetMetadata{Version: &version})
	return coretypes.NewResponse(resp.Value.Metadata, resp.State), err
}

// GetAccount returns the account at addr in the latest ledger, or nil if
// there is none.
func (c *Client) GetAccount(ctx context.Context, addr types.Address) (coretypes.Response[*coretypes.AccountView], error) {
	resp, err := request[coretypes.GetAccountResponse](ctx, c, coretypes.GetAccount{Address: addr})
	return coretypes.NewResponse(resp.Value.Account, resp.State), err
}

// GetAccountByVersion returns the account at addr as of version.
func (c *Client) GetAccountByVersion(
	ctx context.Context,
	addr types.Address,
	version uint64,
) (coretypes.Response[*coretypes.AccountView], error) {
	resp, err := request[coretypes.GetAccountResponse](ctx, c, coretypes.GetAccount{Address: addr, Version: &version})
	return coretypes.NewResponse(resp.Value.Account, resp.State), err
}

// GetTransactions returns up to limit transactions from start. The server
// may return fewer.
func (c *Client) GetTransactions(
	ctx context.Context,
	start, limit uint64,
	includeEvents bool,
) (coretypes.Response[[]coretypes.TransactionView], error) {
	resp, err := request[coretypes.GetTransactionsResponse](ctx, c, coretypes.GetTransactions{
		StartVersion:  start,
		Limit:         limit,
		IncludeEvents: includeEvents,
	})
	return coretypes.NewResponse(resp.Value.Transactions, resp.State), err
}

// GetAccountTransaction returns the transaction sent by addr with sequence
// number seq, or nil if it is not committed.
func (c *Client) GetAccountTransaction(
	ctx context.Context,
	addr types.Address,
	seq uint64,
	includeEvents bool,
) (coretypes.Response[*coretypes.TransactionView], error) {
	resp, err := request[coretypes.GetAccountTransactionResponse](ctx, c, coretypes.GetAccountTransaction{
		Address:        addr,
		SequenceNumber: seq,
		IncludeEvents:  includeEvents,
	})
	return coretypes.NewResponse(resp.Value.Transaction, resp.State), err
}

// GetAccountTransactions returns up to limit transactions sent by addr from
// sequence number start.
func (c *Client) GetAccountTransactions(
	ctx context.Context,
	addr types.Address,
	start, limit uint64,
	includeEvents bool,
) (coretypes.Response[[]coretypes.TransactionView], error) {
	resp, err := request[coretypes.GetAccountTransactionsResponse](ctx, c, coretypes.GetAccountTransactions{
		Address:             addr,
		StartSequenceNumber: start,
		Limit:               limit,
		IncludeEvents:       includeEvents,
	})
	return coretypes.NewResponse(resp.Value.Transactions, resp.State), err
}

// GetEvents returns up to limit events of the stream key from sequence
// number start.
func (c *Client) GetEvents(
	ctx context.Context,
	key types.EventKey,
	start, limit uint64,
) (coretypes.Response[[]coretypes.EventView], error) {
	resp, err := request[coretypes.GetEventsResponse](ctx, c, coretypes.GetEvents{Key: key, Start: start, Limit: limit})
	return coretypes.NewResponse(resp.Value.Events, resp.State), err
}

// GetCurrencies returns the currencies registered on chain.
func (c *Client) GetCurrencies(ctx context.Context) (coretypes.Response[[]coretypes.CurrencyInfoView], error) {
	resp, err := request[coretypes.GetCurrenciesResponse](ctx, c, coretypes.GetCurrencies{})
	return coretypes.NewResponse(resp.Value.Currencies, resp.State), err
}

// GetNetworkStatus returns the number of peers of the server. It is not
// verifiable.
func (c *Client) GetNetworkStatus(ctx context.Context) (coretypes.Response[uint64], error) {
	resp, err := request[coretypes.GetNetworkStatusResponse](ctx, c, coretypes.GetNetworkStatus{})
	return coretypes.NewResponse(resp.Value.Peers, resp.State), err
}
