package coretypes

import (
	"encoding/json"
	"fmt"

	"github.com/ledgerlight/ledgerlight/libs/bytes"
	"github.com/ledgerlight/ledgerlight/types"
)

// JSON-RPC method names.
const (
	MethodSubmit                           = "submit"
	MethodGetMetadata                      = "get_metadata"
	MethodGetAccount                       = "get_account"
	MethodGetTransactions                  = "get_transactions"
	MethodGetAccountTransaction            = "get_account_transaction"
	MethodGetAccountTransactions           = "get_account_transactions"
	MethodGetEvents                        = "get_events"
	MethodGetCurrencies                    = "get_currencies"
	MethodGetNetworkStatus                 = "get_network_status"
	MethodGetStateProof                    = "get_state_proof"
	MethodGetAccumulatorConsistencyProof   = "get_accumulator_consistency_proof"
	MethodGetAccountStateWithProof         = "get_account_state_with_proof"
	MethodGetTransactionsWithProofs        = "get_transactions_with_proofs"
	MethodGetAccountTransactionsWithProofs = "get_account_transactions_with_proofs"
	MethodGetEventsWithProofs              = "get_events_with_proofs"
	MethodGetEventByVersionWithProof       = "get_event_by_version_with_proof"
)

// MethodRequest is one JSON-RPC call. The set of implementations is closed:
// every request type is declared in this package.
type MethodRequest interface {
	Method() string
	Params() []interface{}

	isMethodRequest()
}

// Submit hands a signed transaction to the server.
type Submit struct {
	Transaction bytes.HexBytes
}

// GetMetadata asks for the ledger metadata at Version, or at the latest
// version when Version is nil.
type GetMetadata struct {
	Version *uint64
}

type GetAccount struct {
	Address types.Address
	Version *uint64
}

type GetTransactions struct {
	StartVersion  uint64
	Limit         uint64
	IncludeEvents bool
}

type GetAccountTransaction struct {
	Address        types.Address
	SequenceNumber uint64
	IncludeEvents  bool
}

type GetAccountTransactions struct {
	Address             types.Address
	StartSequenceNumber uint64
	Limit               uint64
	IncludeEvents       bool
}

type GetEvents struct {
	Key   types.EventKey
	Start uint64
	Limit uint64
}

type GetCurrencies struct{}

type GetNetworkStatus struct{}

// GetStateProof asks for a proof from the ledger at Version to the latest
// ledger header.
type GetStateProof struct {
	Version uint64
}

// GetAccumulatorConsistencyProof asks for the subtrees extending the
// accumulator at ClientKnownVersion (nil: the empty accumulator) to the one
// at LedgerVersion (nil: the latest).
type GetAccumulatorConsistencyProof struct {
	ClientKnownVersion *uint64
	LedgerVersion      *uint64
}

type GetAccountStateWithProof struct {
	Address       types.Address
	Version       *uint64
	LedgerVersion *uint64
}

type GetTransactionsWithProofs struct {
	StartVersion  uint64
	Limit         uint64
	IncludeEvents bool
}

type GetAccountTransactionsWithProofs struct {
	Address             types.Address
	StartSequenceNumber uint64
	Limit               uint64
	IncludeEvents       bool
	LedgerVersion       *uint64
}

type GetEventsWithProofs struct {
	Key   types.EventKey
	Start uint64
	Limit uint64
}

// GetEventByVersionWithProof asks for the events of stream Key bracketing
// Version (nil: the latest).
type GetEventByVersionWithProof struct {
	Key     types.EventKey
	Version *uint64
}

func (Submit) Method() string                           { return MethodSubmit }
func (GetMetadata) Method() string                      { return MethodGetMetadata }
func (GetAccount) Method() string                       { return MethodGetAccount }
func (GetTransactions) Method() string                  { return MethodGetTransactions }
func (GetAccountTransaction) Method() string            { return MethodGetAccountTransaction }
func (GetAccountTransactions) Method() string           { return MethodGetAccountTransactions }
func (GetEvents) Method() string                        { return MethodGetEvents }
func (GetCurrencies) Method() string                    { return MethodGetCurrencies }
func (GetNetworkStatus) Method() string                 { return MethodGetNetworkStatus }
func (GetStateProof) Method() string                    { return MethodGetStateProof }
func (GetAccumulatorConsistencyProof) Method() string   { return MethodGetAccumulatorConsistencyProof }
func (GetAccountStateWithProof) Method() string         { return MethodGetAccountStateWithProof }
func (GetTransactionsWithProofs) Method() string        { return MethodGetTransactionsWithProofs }
func (GetAccountTransactionsWithProofs) Method() string { return MethodGetAccountTransactionsWithProofs }
func (GetEventsWithProofs) Method() string              { return MethodGetEventsWithProofs }
func (GetEventByVersionWithProof) Method() string       { return MethodGetEventByVersionWithProof }

func (r Submit) Params() []interface{}      { return []interface{}{r.Transaction} }
func (r GetMetadata) Params() []interface{} { return []interface{}{r.Version} }
func (r GetAccount) Params() []interface{}  { return []interface{}{r.Address, r.Version} }
func (r GetTransactions) Params() []interface{} {
	return []interface{}{r.StartVersion, r.Limit, r.IncludeEvents}
}
func (r GetAccountTransaction) Params() []interface{} {
	return []interface{}{r.Address, r.SequenceNumber, r.IncludeEvents}
}
func (r GetAccountTransactions) Params() []interface{} {
	return []interface{}{r.Address, r.StartSequenceNumber, r.Limit, r.IncludeEvents}
}
func (r GetEvents) Params() []interface{}        { return []interface{}{r.Key, r.Start, r.Limit} }
func (GetCurrencies) Params() []interface{}      { return []interface{}{} }
func (GetNetworkStatus) Params() []interface{}   { return []interface{}{} }
func (r GetStateProof) Params() []interface{}    { return []interface{}{r.Version} }
func (r GetAccumulatorConsistencyProof) Params() []interface{} {
	return []interface{}{r.ClientKnownVersion, r.LedgerVersion}
}
func (r GetAccountStateWithProof) Params() []interface{} {
	return []interface{}{r.Address, r.Version, r.LedgerVersion}
}
func (r GetTransactionsWithProofs) Params() []interface{} {
	return []interface{}{r.StartVersion, r.Limit, r.IncludeEvents}
}
func (r GetAccountTransactionsWithProofs) Params() []interface{} {
	return []interface{}{r.Address, r.StartSequenceNumber, r.Limit, r.IncludeEvents, r.LedgerVersion}
}
func (r GetEventsWithProofs) Params() []interface{} { return []interface{}{r.Key, r.Start, r.Limit} }
func (r GetEventByVersionWithProof) Params() []interface{} {
	return []interface{}{r.Key, r.Version}
}

func (Submit) isMethodRequest()                           {}
func (GetMetadata) isMethodRequest()                      {}
func (GetAccount) isMethodRequest()                       {}
func (GetTransactions) isMethodRequest()                  {}
func (GetAccountTransaction) isMethodRequest()            {}
func (GetAccountTransactions) isMethodRequest()           {}
func (GetEvents) isMethodRequest()                        {}
func (GetCurrencies) isMethodRequest()                    {}
func (GetNetworkStatus) isMethodRequest()                 {}
func (GetStateProof) isMethodRequest()                    {}
func (GetAccumulatorConsistencyProof) isMethodRequest()   {}
func (GetAccountStateWithProof) isMethodRequest()         {}
func (GetTransactionsWithProofs) isMethodRequest()        {}
func (GetAccountTransactionsWithProofs) isMethodRequest() {}
func (GetEventsWithProofs) isMethodRequest()              {}
func (GetEventByVersionWithProof) isMethodRequest()       {}

// ParseRequest decodes the positional params of a JSON-RPC call.
func ParseRequest(method string, params []json.RawMessage) (MethodRequest, error) {
	var (
		req  MethodRequest
		dsts []interface{}
	)
	switch method {
	case MethodSubmit:
		r := &Submit{}
		req, dsts = r, []interface{}{&r.Transaction}
	case MethodGetMetadata:
		r := &GetMetadata{}
		req, dsts = r, []interface{}{&r.Version}
	case MethodGetAccount:
		r := &GetAccount{}
		req, dsts = r, []interface{}{&r.Address, &r.Version}
	case MethodGetTransactions:
		r := &GetTransactions{}
		req, dsts = r, []interface{}{&r.StartVersion, &r.Limit, &r.IncludeEvents}
	case MethodGetAccountTransaction:
		r := &GetAccountTransaction{}
		req, dsts = r, []interface{}{&r.Address, &r.SequenceNumber, &r.IncludeEvents}
	case MethodGetAccountTransactions:
		r := &GetAccountTransactions{}
		req, dsts = r, []interface{}{&r.Address, &r.StartSequenceNumber, &r.Limit, &r.IncludeEvents}
	case MethodGetEvents:
		r := &GetEvents{}
		req, dsts = r, []interface{}{&r.Key, &r.Start, &r.Limit}
	case MethodGetCurrencies:
		req = &GetCurrencies{}
	case MethodGetNetworkStatus:
		req = &GetNetworkStatus{}
	case MethodGetStateProof:
		r := &GetStateProof{}
		req, dsts = r, []interface{}{&r.Version}
	case MethodGetAccumulatorConsistencyProof:
		r := &GetAccumulatorConsistencyProof{}
		req, dsts = r, []interface{}{&r.ClientKnownVersion, &r.LedgerVersion}
	case MethodGetAccountStateWithProof:
		r := &GetAccountStateWithProof{}
		req, dsts = r, []interface{}{&r.Address, &r.Version, &r.LedgerVersion}
	case MethodGetTransactionsWithProofs:
		r := &GetTransactionsWithProofs{}
		req, dsts = r, []interface{}{&r.StartVersion, &r.Limit, &r.IncludeEvents}
	case MethodGetAccountTransactionsWithProofs:
		r := &GetAccountTransactionsWithProofs{}
		req, dsts = r, []interface{}{&r.Address, &r.StartSequenceNumber, &r.Limit, &r.IncludeEvents, &r.LedgerVersion}
	case MethodGetEventsWithProofs:
		r := &GetEventsWithProofs{}
		req, dsts = r, []interface{}{&r.Key, &r.Start, &r.Limit}
	case MethodGetEventByVersionWithProof:
		r := &GetEventByVersionWithProof{}
		req, dsts = r, []interface{}{&r.Key, &r.Version}
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	}

	if len(params) > len(dsts) {
		return nil, fmt.Errorf("%w: %s takes %d params, got %d", ErrInvalidParams, method, len(dsts), len(params))
	}
	for i, raw := range params {
		if err := json.Unmarshal(raw, dsts[i]); err != nil {
			return nil, fmt.Errorf("%w: %s param #%d: %v", ErrInvalidParams, method, i, err)
		}
	}
	return deref(req), nil
}

// deref turns the pointer built by ParseRequest into the value type every
// caller switches on.
func deref(req MethodRequest) MethodRequest {
	switch r := req.(type) {
	case *Submit:
		return *r
	case *GetMetadata:
		return *r
	case *GetAccount:
		return *r
	case *GetTransactions:
		return *r
	case *GetAccountTransaction:
		return *r
	case *GetAccountTransactions:
		return *r
	case *GetEvents:
		return *r
	case *GetCurrencies:
		return *r
	case *GetNetworkStatus:
		return *r
	case *GetStateProof:
		return *r
	case *GetAccumulatorConsistencyProof:
		return *r
	case *GetAccountStateWithProof:
		return *r
	case *GetTransactionsWithProofs:
		return *r
	case *GetAccountTransactionsWithProofs:
		return *r
	case *GetEventsWithProofs:
		return *r
	case *GetEventByVersionWithProof:
		return *r
	default:
		return req
	}
}
