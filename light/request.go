package light

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

// requestContext is what a request is verified against: the verified target
// header of the batch's state proof and the metadata it was served with.
type requestContext struct {
	startVersion uint64
	state        coretypes.State
	latest       *types.LedgerHeader
}

// verifyingRequest is one logical request with the raw calls whose proofs
// back it.
type verifyingRequest struct {
	request     coretypes.MethodRequest
	subrequests []coretypes.MethodRequest
}

func newVerifyingRequest(req coretypes.MethodRequest) (verifyingRequest, error) {
	var sub []coretypes.MethodRequest
	switch req := req.(type) {
	case coretypes.Submit, coretypes.GetNetworkStatus:
		sub = []coretypes.MethodRequest{req}

	case coretypes.GetMetadata:
		if req.Version == nil {
			sub = []coretypes.MethodRequest{coretypes.GetAccountStateWithProof{Address: types.RootAddress}}
			break
		}
		v := *req.Version
		sub = []coretypes.MethodRequest{
			coretypes.GetAccumulatorConsistencyProof{LedgerVersion: &v},
			coretypes.GetAccumulatorConsistencyProof{ClientKnownVersion: &v},
			coretypes.GetEventByVersionWithProof{Key: types.NewBlockEventKey(), Version: &v},
		}

	case coretypes.GetAccount:
		sub = []coretypes.MethodRequest{coretypes.GetAccountStateWithProof{Address: req.Address, Version: req.Version}}

	case coretypes.GetTransactions:
		sub = []coretypes.MethodRequest{coretypes.GetTransactionsWithProofs{
			StartVersion:  req.StartVersion,
			Limit:         req.Limit,
			IncludeEvents: req.IncludeEvents,
		}}

	case coretypes.GetAccountTransaction:
		sub = []coretypes.MethodRequest{coretypes.GetAccountTransactionsWithProofs{
			Address:             req.Address,
			StartSequenceNumber: req.SequenceNumber,
			Limit:               1,
			IncludeEvents:       req.IncludeEvents,
		}}

	case coretypes.GetAccountTransactions:
		// LedgerVersion stays nil so that the proofs are against the latest
		// header, the one the state proof verifies.
		sub = []coretypes.MethodRequest{coretypes.GetAccountTransactionsWithProofs{
			Address:             req.Address,
			StartSequenceNumber: req.StartSequenceNumber,
			Limit:               req.Limit,
			IncludeEvents:       req.IncludeEvents,
		}}

	case coretypes.GetEvents:
		sub = []coretypes.MethodRequest{coretypes.GetEventsWithProofs{Key: req.Key, Start: req.Start, Limit: req.Limit}}

	case coretypes.GetCurrencies:
		sub = []coretypes.MethodRequest{coretypes.GetAccountStateWithProof{Address: types.RootAddress}}

	default:
		return verifyingRequest{}, fmt.Errorf("%w: %s", ErrUnverifiableRequest, req.Method())
	}
	return verifyingRequest{request: req, subrequests: sub}, nil
}

// validateSubresponses verifies the results of the subrequests and projects
// them into the response of the request. The first failed subrequest fails
// the request.
func (r verifyingRequest) validateSubresponses(ctx requestContext, results []coretypes.Result) coretypes.Result {
	if len(results) != len(r.subrequests) {
		return coretypes.Result{Err: ErrRPCResponse{
			Method: r.request.Method(),
			Reason: fmt.Errorf("expected %d subresponses, received %d", len(r.subrequests), len(results)),
		}}
	}
	responses := make([]coretypes.MethodResponse, len(results))
	for i, res := range results {
		if res.Err != nil {
			return coretypes.Result{Err: resultError(r.subrequests[i].Method(), res.Err)}
		}
		responses[i] = res.Response
	}

	resp, err := r.verify(ctx, responses)
	if err != nil {
		return coretypes.Result{Err: err}
	}
	return coretypes.Result{Response: resp, State: ctx.state}
}

func (r verifyingRequest) verify(ctx requestContext, responses []coretypes.MethodResponse) (coretypes.MethodResponse, error) {
	switch req := r.request.(type) {
	case coretypes.Submit:
		// The server's acknowledgement cannot be proven.
		if _, ok := responses[0].(coretypes.SubmitResponse); !ok {
			return nil, unexpectedResponse(req, responses)
		}
		return coretypes.SubmitResponse{}, nil

	case coretypes.GetNetworkStatus:
		resp, ok := responses[0].(coretypes.GetNetworkStatusResponse)
		if !ok {
			return nil, unexpectedResponse(req, responses)
		}
		return resp, nil

	case coretypes.GetMetadata:
		if req.Version == nil {
			return verifyLatestMetadata(ctx, req, responses)
		}
		return verifyHistoricalMetadata(ctx, req, *req.Version, responses)

	case coretypes.GetAccount:
		return verifyGetAccount(ctx, req, responses)

	case coretypes.GetTransactions:
		return verifyGetTransactions(ctx, req, responses)

	case coretypes.GetAccountTransaction:
		txns, err := verifyAccountTransactions(ctx, req, req.Address, req.SequenceNumber, 1, req.IncludeEvents, responses)
		if err != nil {
			return nil, err
		}
		var txn *coretypes.TransactionView
		if len(txns) > 0 {
			txn = &txns[0]
		}
		return coretypes.GetAccountTransactionResponse{Transaction: txn}, nil

	case coretypes.GetAccountTransactions:
		txns, err := verifyAccountTransactions(
			ctx, req, req.Address, req.StartSequenceNumber, req.Limit, req.IncludeEvents, responses)
		if err != nil {
			return nil, err
		}
		return coretypes.GetAccountTransactionsResponse{Transactions: txns}, nil

	case coretypes.GetEvents:
		return verifyGetEvents(ctx, req, responses)

	case coretypes.GetCurrencies:
		root, err := verifyRootAccount(ctx, req, responses)
		if err != nil {
			return nil, err
		}
		views := make([]coretypes.CurrencyInfoView, 0, len(root.Config.Currencies))
		for _, c := range root.Config.Currencies {
			views = append(views, coretypes.NewCurrencyInfoView(c))
		}
		return coretypes.GetCurrenciesResponse{Currencies: views}, nil

	default:
		// newVerifyingRequest accepts nothing else.
		panic(fmt.Sprintf("unexpected request %T", req))
	}
}

func verifyLatestMetadata(
	ctx requestContext,
	req coretypes.GetMetadata,
	responses []coretypes.MethodResponse,
) (coretypes.MethodResponse, error) {
	root, err := verifyRootAccount(ctx, req, responses)
	if err != nil {
		return nil, err
	}
	li := ctx.latest
	view := coretypes.NewMetadataView(li.Version, li.TransactionAccumulatorHash, li.TimestampUsecs, ctx.state.ChainID)
	return coretypes.GetMetadataResponse{Metadata: view.WithChainConfig(root.Config)}, nil
}

// verifyHistoricalMetadata proves the accumulator root at version as a
// prefix of the trusted accumulator, and the timestamp at version by the
// block events bracketing it.
func verifyHistoricalMetadata(
	ctx requestContext,
	req coretypes.GetMetadata,
	version uint64,
	responses []coretypes.MethodResponse,
) (coretypes.MethodResponse, error) {
	if len(responses) != 3 {
		return nil, unexpectedResponse(req, responses)
	}
	toVersion, ok1 := responses[0].(coretypes.GetAccumulatorConsistencyProofResponse)
	toLatest, ok2 := responses[1].(coretypes.GetAccumulatorConsistencyProofResponse)
	blockEvents, ok3 := responses[2].(coretypes.GetEventByVersionWithProofResponse)
	if !ok1 || !ok2 || !ok3 {
		return nil, unexpectedResponse(req, responses)
	}

	method := req.Method()
	genesisToVersion, err := toVersion.Proof.Decode()
	if err != nil {
		return nil, ErrDecode{Method: method, Reason: err}
	}
	versionToLatest, err := toLatest.Proof.Decode()
	if err != nil {
		return nil, ErrDecode{Method: method, Reason: err}
	}
	bounds, err := blockEvents.Proof.Decode()
	if err != nil {
		return nil, ErrDecode{Method: method, Reason: err}
	}

	summary, err := types.NewAccumulatorSummaryFromGenesis(genesisToVersion, version)
	if err != nil {
		return nil, ErrInvalidProof{Method: method, Reason: err}
	}
	if _, err := summary.ExtendWithProof(versionToLatest, ctx.latest); err != nil {
		return nil, ErrInvalidProof{Method: method, Reason: err}
	}
	// The block event stream is never empty past genesis, so an absent upper
	// bound is settled by comparing with the latest header below.
	if err := bounds.Verify(ctx.latest, types.NewBlockEventKey(), nil, version); err != nil {
		return nil, ErrInvalidProof{Method: method, Reason: err}
	}

	var timestamp uint64
	switch lower, upper := bounds.LowerBoundIncl, bounds.UpperBoundExcl; {
	case lower == nil:
		if version != 0 {
			return nil, ErrRPCResponse{Method: method, Reason: fmt.Errorf("no block event at or before version %d", version)}
		}
	case upper != nil:
		nb, err := types.NewBlockEventFromContractEvent(&lower.Event)
		if err != nil {
			return nil, ErrDecode{Method: method, Reason: err}
		}
		timestamp = nb.ProposedTime
	default:
		nb, err := types.NewBlockEventFromContractEvent(&lower.Event)
		if err != nil {
			return nil, ErrDecode{Method: method, Reason: err}
		}
		// (round, timestamp) orders blocks across epochs. If they differ
		// from the latest header this is not the latest block.
		if nb.Round != ctx.latest.Round || nb.ProposedTime != ctx.latest.TimestampUsecs {
			return nil, ErrRPCResponse{
				Method: method,
				Reason: fmt.Errorf("block event of round %d at %d is not the latest block", nb.Round, nb.ProposedTime),
			}
		}
		timestamp = nb.ProposedTime
	}

	view := coretypes.NewMetadataView(version, summary.RootHash(), timestamp, ctx.state.ChainID)
	return coretypes.GetMetadataResponse{Metadata: view}, nil
}

func verifyGetAccount(
	ctx requestContext,
	req coretypes.GetAccount,
	responses []coretypes.MethodResponse,
) (coretypes.MethodResponse, error) {
	resp, ok := responses[0].(coretypes.GetAccountStateWithProofResponse)
	if !ok {
		return nil, unexpectedResponse(req, responses)
	}
	version := ctx.latest.Version
	if req.Version != nil {
		version = *req.Version
	}
	state, err := verifyAccountState(ctx, req, resp.AccountStateWithProof, req.Address, version)
	if err != nil || state == nil {
		return coretypes.GetAccountResponse{}, err
	}
	return coretypes.GetAccountResponse{Account: coretypes.NewAccountView(req.Address, state, version)}, nil
}

func verifyGetTransactions(
	ctx requestContext,
	req coretypes.GetTransactions,
	responses []coretypes.MethodResponse,
) (coretypes.MethodResponse, error) {
	resp, ok := responses[0].(coretypes.GetTransactionsWithProofsResponse)
	if !ok {
		return nil, unexpectedResponse(req, responses)
	}
	// The server may answer with any prefix of the range, including none.
	if resp.Transactions == nil {
		return coretypes.GetTransactionsResponse{Transactions: []coretypes.TransactionView{}}, nil
	}

	method := req.Method()
	list, err := resp.Transactions.Decode()
	if err != nil {
		return nil, ErrDecode{Method: method, Reason: err}
	}
	// An empty list proves nothing, its range proof must be empty too.
	if list.FirstTransactionVersion == nil {
		if err := list.Verify(ctx.latest, nil); err != nil {
			return nil, ErrInvalidProof{Method: method, Reason: err}
		}
		return coretypes.GetTransactionsResponse{Transactions: []coretypes.TransactionView{}}, nil
	}
	if has := resp.Transactions.HasEvents(); has != req.IncludeEvents {
		return nil, ErrRPCResponse{Method: method, Reason: fmt.Errorf("expected events: %v, received events: %v", req.IncludeEvents, has)}
	}
	start := req.StartVersion
	if err := list.Verify(ctx.latest, &start); err != nil {
		return nil, ErrInvalidProof{Method: method, Reason: err}
	}
	if uint64(len(list.Transactions)) > req.Limit {
		return nil, ErrRPCResponse{
			Method: method,
			Reason: fmt.Errorf("more transactions than limit: limit %d, received %d", req.Limit, len(list.Transactions)),
		}
	}

	views := make([]coretypes.TransactionView, len(list.Transactions))
	for i, txn := range list.Transactions {
		var events []types.ContractEvent
		if list.Events != nil {
			events = list.Events[i]
		}
		views[i] = coretypes.NewTransactionView(start+uint64(i), txn, &list.TransactionInfos[i], events)
	}
	return coretypes.GetTransactionsResponse{Transactions: views}, nil
}

func verifyAccountTransactions(
	ctx requestContext,
	req coretypes.MethodRequest,
	sender types.Address,
	start, limit uint64,
	includeEvents bool,
	responses []coretypes.MethodResponse,
) ([]coretypes.TransactionView, error) {
	resp, ok := responses[0].(coretypes.GetAccountTransactionsWithProofsResponse)
	if !ok {
		return nil, unexpectedResponse(req, responses)
	}
	p, err := resp.Transactions.Decode()
	if err != nil {
		return nil, ErrDecode{Method: req.Method(), Reason: err}
	}
	if err := p.Verify(ctx.latest, sender, start, limit, includeEvents); err != nil {
		return nil, ErrInvalidProof{Method: req.Method(), Reason: err}
	}

	views := make([]coretypes.TransactionView, len(p.Transactions))
	for i, txn := range p.Transactions {
		views[i] = coretypes.NewTransactionView(txn.Version, txn.Transaction, &txn.Proof.TransactionInfo, txn.Events)
	}
	return views, nil
}

func verifyGetEvents(
	ctx requestContext,
	req coretypes.GetEvents,
	responses []coretypes.MethodResponse,
) (coretypes.MethodResponse, error) {
	resp, ok := responses[0].(coretypes.GetEventsWithProofsResponse)
	if !ok {
		return nil, unexpectedResponse(req, responses)
	}
	method := req.Method()
	// A shorter prefix than what is on chain is fine, a longer list is not.
	if n := uint64(len(resp.Events)); n > req.Limit {
		return nil, ErrRPCResponse{Method: method, Reason: fmt.Errorf("more events than limit: limit %d, received %d", req.Limit, n)}
	}

	views := make([]coretypes.EventView, len(resp.Events))
	for i, view := range resp.Events {
		ev, err := view.Decode()
		if err != nil {
			return nil, ErrDecode{Method: method, Reason: err}
		}
		if err := ev.Verify(ctx.latest, req.Key, req.Start+uint64(i), ev.TransactionVersion, ev.EventIndex); err != nil {
			return nil, ErrInvalidProof{Method: method, Reason: err}
		}
		views[i] = coretypes.NewEventView(ev.TransactionVersion, &ev.Event)
	}
	return coretypes.GetEventsResponse{Events: views}, nil
}

// verifyRootAccount verifies the root account at the latest version. It
// must exist and hold the chain configuration.
func verifyRootAccount(
	ctx requestContext,
	req coretypes.MethodRequest,
	responses []coretypes.MethodResponse,
) (*types.AccountState, error) {
	resp, ok := responses[0].(coretypes.GetAccountStateWithProofResponse)
	if !ok {
		return nil, unexpectedResponse(req, responses)
	}
	root, err := verifyAccountState(ctx, req, resp.AccountStateWithProof, types.RootAddress, ctx.latest.Version)
	if err != nil {
		return nil, err
	}
	if root == nil || root.Config == nil {
		return nil, ErrRPCResponse{Method: req.Method(), Reason: errors.New("root account is missing its chain config")}
	}
	return root, nil
}

func verifyAccountState(
	ctx requestContext,
	req coretypes.MethodRequest,
	view coretypes.AccountStateWithProofView,
	addr types.Address,
	version uint64,
) (*types.AccountState, error) {
	p, err := view.Decode()
	if err != nil {
		return nil, ErrDecode{Method: req.Method(), Reason: err}
	}
	if err := p.Verify(ctx.latest, version, addr); err != nil {
		return nil, ErrInvalidProof{Method: req.Method(), Reason: err}
	}
	state, err := p.AccountState()
	if err != nil {
		return nil, ErrDecode{Method: req.Method(), Reason: err}
	}
	return state, nil
}

func unexpectedResponse(req coretypes.MethodRequest, responses []coretypes.MethodResponse) error {
	got := make([]string, len(responses))
	for i, r := range responses {
		got[i] = fmt.Sprintf("%T", r)
	}
	return ErrRPCResponse{Method: req.Method(), Reason: fmt.Errorf("%w: %v", coretypes.ErrUnexpectedResponse, got)}
}
