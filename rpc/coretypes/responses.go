package coretypes

import (
	"encoding/json"
	"errors"
	"fmt"
)

// List of standardized errors used across RPC
var (
	ErrMethodNotFound = errors.New("method not found")
	ErrInvalidParams  = errors.New("invalid params")
	// ErrUnexpectedResponse is returned when a response does not have the
	// type its request calls for.
	ErrUnexpectedResponse = errors.New("unexpected response type")
	// ErrMalformedResponse is returned when a response cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// JSON-RPC error codes.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// State is the ledger metadata every response is served against.
type State struct {
	ChainID        uint8  `json:"chain_id"`
	Version        uint64 `json:"version"`
	TimestampUsecs uint64 `json:"timestamp_usecs"`
}

func (s State) String() string {
	return fmt.Sprintf("State{chain:%d v%d ts:%d}", s.ChainID, s.Version, s.TimestampUsecs)
}

// Response pairs a value with the ledger state it was served, and for
// verified values verified, against.
type Response[T any] struct {
	Value T
	State State
}

func NewResponse[T any](value T, state State) Response[T] {
	return Response[T]{Value: value, State: state}
}

// Result is one slot of a batch: either a response or an error.
type Result struct {
	Response MethodResponse
	State    State
	Err      error
}

// RPCError is an error returned by the server for one call.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("RPC error %d - %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d - %s", e.Code, e.Message)
}

// MethodResponse is the result of one call. Like MethodRequest the set of
// implementations is closed.
type MethodResponse interface {
	isMethodResponse()
}

type SubmitResponse struct{}

type GetMetadataResponse struct {
	Metadata MetadataView `json:"metadata"`
}

type GetAccountResponse struct {
	// Account is nil when the account does not exist.
	Account *AccountView `json:"account"`
}

type GetTransactionsResponse struct {
	Transactions []TransactionView `json:"transactions"`
}

type GetAccountTransactionResponse struct {
	Transaction *TransactionView `json:"transaction"`
}

type GetAccountTransactionsResponse struct {
	Transactions []TransactionView `json:"transactions"`
}

type GetEventsResponse struct {
	Events []EventView `json:"events"`
}

type GetCurrenciesResponse struct {
	Currencies []CurrencyInfoView `json:"currencies"`
}

type GetNetworkStatusResponse struct {
	Peers uint64 `json:"peers"`
}

type GetStateProofResponse struct {
	StateProof StateProofView `json:"state_proof"`
}

type GetAccumulatorConsistencyProofResponse struct {
	Proof AccumulatorConsistencyProofView `json:"proof"`
}

type GetAccountStateWithProofResponse struct {
	AccountStateWithProof AccountStateWithProofView `json:"account_state_with_proof"`
}

type GetTransactionsWithProofsResponse struct {
	// Transactions is nil when there are no transactions in range.
	Transactions *TransactionsWithProofsView `json:"transactions"`
}

type GetAccountTransactionsWithProofsResponse struct {
	Transactions AccountTransactionsWithProofsView `json:"transactions"`
}

type GetEventsWithProofsResponse struct {
	Events []EventWithProofView `json:"events"`
}

type GetEventByVersionWithProofResponse struct {
	Proof EventByVersionWithProofView `json:"proof"`
}

func (SubmitResponse) isMethodResponse()                           {}
func (GetMetadataResponse) isMethodResponse()                      {}
func (GetAccountResponse) isMethodResponse()                       {}
func (GetTransactionsResponse) isMethodResponse()                  {}
func (GetAccountTransactionResponse) isMethodResponse()            {}
func (GetAccountTransactionsResponse) isMethodResponse()           {}
func (GetEventsResponse) isMethodResponse()                        {}
func (GetCurrenciesResponse) isMethodResponse()                    {}
func (GetNetworkStatusResponse) isMethodResponse()                 {}
func (GetStateProofResponse) isMethodResponse()                    {}
func (GetAccumulatorConsistencyProofResponse) isMethodResponse()   {}
func (GetAccountStateWithProofResponse) isMethodResponse()         {}
func (GetTransactionsWithProofsResponse) isMethodResponse()        {}
func (GetAccountTransactionsWithProofsResponse) isMethodResponse() {}
func (GetEventsWithProofsResponse) isMethodResponse()              {}
func (GetEventByVersionWithProofResponse) isMethodResponse()       {}

// DecodeResponse decodes the JSON result of req into the response type req
// calls for.
func DecodeResponse(req MethodRequest, raw json.RawMessage) (MethodResponse, error) {
	var err error
	switch req.(type) {
	case Submit:
		return SubmitResponse{}, nil
	case GetMetadata:
		var r GetMetadataResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetAccount:
		var r GetAccountResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetTransactions:
		var r GetTransactionsResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetAccountTransaction:
		var r GetAccountTransactionResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetAccountTransactions:
		var r GetAccountTransactionsResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetEvents:
		var r GetEventsResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetCurrencies:
		var r GetCurrenciesResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetNetworkStatus:
		var r GetNetworkStatusResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetStateProof:
		var r GetStateProofResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetAccumulatorConsistencyProof:
		var r GetAccumulatorConsistencyProofResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetAccountStateWithProof:
		var r GetAccountStateWithProofResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetTransactionsWithProofs:
		var r GetTransactionsWithProofsResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetAccountTransactionsWithProofs:
		var r GetAccountTransactionsWithProofsResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetEventsWithProofs:
		var r GetEventsWithProofsResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	case GetEventByVersionWithProof:
		var r GetEventByVersionWithProofResponse
		err = json.Unmarshal(raw, &r)
		return r, err
	default:
		return nil, fmt.Errorf("%w: %T", ErrMethodNotFound, req)
	}
}
