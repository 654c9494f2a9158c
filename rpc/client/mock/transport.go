/*
Package mock provides a client.Transport that answers batches in process from
a factory.Chain.

It is useful in tests that need a full node but not the network in between.
Interceptors rewrite results before they are returned, which is how tests
play a dishonest or inconsistent server.
*/
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerlight/ledgerlight/internal/test/factory"
	rpcclient "github.com/ledgerlight/ledgerlight/rpc/client"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

// NetworkPeers is the peer count reported by get_network_status.
const NetworkPeers = 3

// Interceptor rewrites the results of a batch, or fails it.
type Interceptor func(requests []coretypes.MethodRequest, results []coretypes.Result) ([]coretypes.Result, error)

// Transport serves every batch from a single snapshot of the chain.
type Transport struct {
	chain *factory.Chain

	// MaxEpochChanges bounds the epoch changes of a state proof. Zero means
	// no bound.
	MaxEpochChanges int

	mtx          sync.Mutex
	interceptors []Interceptor
	batches      [][]coretypes.MethodRequest
}

var _ rpcclient.Transport = (*Transport)(nil)

func New(chain *factory.Chain) *Transport {
	return &Transport{chain: chain}
}

// Intercept adds i after the interceptors already installed.
func (t *Transport) Intercept(i Interceptor) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.interceptors = append(t.interceptors, i)
}

// Batches returns the batches received so far.
func (t *Transport) Batches() [][]coretypes.MethodRequest {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return append([][]coretypes.MethodRequest(nil), t.batches...)
}

// Batch implements client.Transport.
func (t *Transport) Batch(ctx context.Context, requests []coretypes.MethodRequest) ([]coretypes.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mtx.Lock()
	t.batches = append(t.batches, requests)
	interceptors := append([]Interceptor(nil), t.interceptors...)
	t.mtx.Unlock()

	ledger := t.chain.Ledger()
	state := ledger.State()
	results := make([]coretypes.Result, len(requests))
	for i, req := range requests {
		resp, err := t.serve(ledger, req)
		if err != nil {
			results[i] = coretypes.Result{Err: err}
			continue
		}
		results[i] = coretypes.Result{Response: resp, State: state}
	}

	var err error
	for _, intercept := range interceptors {
		if results, err = intercept(requests, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (t *Transport) serve(l *factory.Ledger, req coretypes.MethodRequest) (coretypes.MethodResponse, error) {
	resp, err := t.answer(l, req)
	if err != nil {
		return nil, &coretypes.RPCError{Code: coretypes.CodeServerError, Message: err.Error()}
	}
	return resp, nil
}

func (t *Transport) answer(l *factory.Ledger, req coretypes.MethodRequest) (coretypes.MethodResponse, error) {
	switch req := req.(type) {
	case coretypes.Submit:
		txn, err := types.UnmarshalTransaction(req.Transaction)
		if err != nil {
			return nil, err
		}
		return coretypes.SubmitResponse{}, t.chain.Submit(txn)

	case coretypes.GetMetadata:
		m, err := l.Metadata(req.Version)
		return coretypes.GetMetadataResponse{Metadata: m}, err

	case coretypes.GetAccount:
		a, err := l.Account(req.Address, req.Version)
		return coretypes.GetAccountResponse{Account: a}, err

	case coretypes.GetTransactions:
		return coretypes.GetTransactionsResponse{
			Transactions: l.Transactions(req.StartVersion, req.Limit, req.IncludeEvents),
		}, nil

	case coretypes.GetAccountTransaction:
		var txn *coretypes.TransactionView
		if txns := l.AccountTransactions(req.Address, req.SequenceNumber, 1, req.IncludeEvents); len(txns) > 0 {
			txn = &txns[0]
		}
		return coretypes.GetAccountTransactionResponse{Transaction: txn}, nil

	case coretypes.GetAccountTransactions:
		return coretypes.GetAccountTransactionsResponse{
			Transactions: l.AccountTransactions(req.Address, req.StartSequenceNumber, req.Limit, req.IncludeEvents),
		}, nil

	case coretypes.GetEvents:
		return coretypes.GetEventsResponse{Events: l.Events(req.Key, req.Start, req.Limit)}, nil

	case coretypes.GetCurrencies:
		c, err := l.Currencies()
		return coretypes.GetCurrenciesResponse{Currencies: c}, err

	case coretypes.GetNetworkStatus:
		return coretypes.GetNetworkStatusResponse{Peers: NetworkPeers}, nil

	case coretypes.GetStateProof:
		p, err := l.StateProof(req.Version, t.MaxEpochChanges)
		if err != nil {
			return nil, err
		}
		return coretypes.GetStateProofResponse{StateProof: coretypes.NewStateProofView(p)}, nil

	case coretypes.GetAccumulatorConsistencyProof:
		p, err := l.ConsistencyProof(req.ClientKnownVersion, req.LedgerVersion)
		if err != nil {
			return nil, err
		}
		return coretypes.GetAccumulatorConsistencyProofResponse{Proof: coretypes.NewAccumulatorConsistencyProofView(p)}, nil

	case coretypes.GetAccountStateWithProof:
		p, err := l.AccountStateWithProof(req.Address, req.Version, req.LedgerVersion)
		if err != nil {
			return nil, err
		}
		return coretypes.GetAccountStateWithProofResponse{
			AccountStateWithProof: coretypes.NewAccountStateWithProofView(p),
		}, nil

	case coretypes.GetTransactionsWithProofs:
		p, err := l.TransactionsWithProof(req.StartVersion, req.Limit, req.IncludeEvents)
		if err != nil {
			return nil, err
		}
		return coretypes.GetTransactionsWithProofsResponse{Transactions: coretypes.NewTransactionsWithProofsView(p)}, nil

	case coretypes.GetAccountTransactionsWithProofs:
		p, err := l.AccountTransactionsWithProof(
			req.Address, req.StartSequenceNumber, req.Limit, req.IncludeEvents, req.LedgerVersion)
		if err != nil {
			return nil, err
		}
		return coretypes.GetAccountTransactionsWithProofsResponse{
			Transactions: coretypes.NewAccountTransactionsWithProofsView(p),
		}, nil

	case coretypes.GetEventsWithProofs:
		events, err := l.EventsWithProof(req.Key, req.Start, req.Limit)
		if err != nil {
			return nil, err
		}
		views := make([]coretypes.EventWithProofView, len(events))
		for i, ev := range events {
			views[i] = coretypes.NewEventWithProofView(ev)
		}
		return coretypes.GetEventsWithProofsResponse{Events: views}, nil

	case coretypes.GetEventByVersionWithProof:
		p, err := l.EventByVersionWithProof(req.Key, req.Version)
		if err != nil {
			return nil, err
		}
		return coretypes.GetEventByVersionWithProofResponse{Proof: coretypes.NewEventByVersionWithProofView(p)}, nil

	default:
		return nil, fmt.Errorf("%w: %T", coretypes.ErrMethodNotFound, req)
	}
}
