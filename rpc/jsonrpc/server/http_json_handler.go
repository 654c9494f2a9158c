package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ledgerlight/ledgerlight/libs/log"
	rpcclient "github.com/ledgerlight/ledgerlight/rpc/client"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	rpctypes "github.com/ledgerlight/ledgerlight/rpc/jsonrpc/types"
)

// HTTP + JSON handler

// result is the object every successful call answers with: the value and
// the ledger state it was read at.
type result struct {
	Value coretypes.MethodResponse `json:"value"`
	State coretypes.State          `json:"state"`
}

// NewJSONRPCHandler serves JSON-RPC 2.0 calls, single or batched, from
// backend. The calls of a batch reach the backend together so that they are
// answered against the same ledger state.
func NewJSONRPCHandler(backend rpcclient.Transport, logger log.Logger) http.Handler {
	return handleInvalidJSONRPCPaths(makeJSONRPCHandler(backend, logger))
}

func makeJSONRPCHandler(backend rpcclient.Transport, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, hreq *http.Request) {
		b, err := io.ReadAll(hreq.Body)
		if err != nil {
			writeRPCResponse(w, logger, false, rpctypes.RPCRequest{}.MakeErrorf(
				rpctypes.CodeInvalidRequest, "reading request body: %v", err))
			return
		}

		requests, isBatch, err := parseRequests(b)
		if err != nil {
			writeRPCResponse(w, logger, false, rpctypes.RPCRequest{}.MakeErrorf(
				rpctypes.CodeParseError, "decoding request: %v", err))
			return
		}

		var (
			responses = make([]rpctypes.RPCResponse, 0, len(requests))
			calls     []coretypes.MethodRequest
			callers   []rpctypes.RPCRequest
		)
		for _, req := range requests {
			// Ignore notifications, which this service does not support.
			if req.IsNotification() {
				logger.Debug("Ignoring notification", "req", req)
				continue
			}
			params, err := req.PositionalParams()
			if err != nil {
				responses = append(responses, req.MakeErrorf(rpctypes.CodeInvalidParams, "%v", err))
				continue
			}
			call, err := coretypes.ParseRequest(req.Method, params)
			switch {
			case errors.Is(err, coretypes.ErrMethodNotFound):
				responses = append(responses, req.MakeErrorf(rpctypes.CodeMethodNotFound, "%s", req.Method))
				continue
			case err != nil:
				responses = append(responses, req.MakeErrorf(rpctypes.CodeInvalidParams, "%v", err))
				continue
			}
			calls = append(calls, call)
			callers = append(callers, req)
		}

		if len(calls) > 0 {
			results, err := backend.Batch(hreq.Context(), calls)
			if err == nil && len(results) != len(calls) {
				err = rpcclient.ErrResponseCount{Expected: len(calls), Got: len(results)}
			}
			for i, req := range callers {
				switch {
				case err != nil:
					responses = append(responses, req.MakeErrorf(rpctypes.CodeInternalError, "%v", err))
				case results[i].Err != nil:
					responses = append(responses, makeError(req, results[i].Err))
				default:
					responses = append(responses, req.MakeResponse(result{
						Value: results[i].Response,
						State: results[i].State,
					}))
				}
			}
		}

		if len(responses) == 0 {
			return
		}
		writeRPCResponse(w, logger, isBatch, responses...)
	}
}

func makeError(req rpctypes.RPCRequest, err error) rpctypes.RPCResponse {
	var rpcErr *coretypes.RPCError
	if !errors.As(err, &rpcErr) {
		return req.MakeErrorf(rpctypes.CodeServerError, "%v", err)
	}
	resp := rpctypes.RPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Error:   &rpctypes.RPCError{Code: rpcErr.Code, Message: rpcErr.Message},
	}
	if rpcErr.Data != nil {
		resp.Error.Data = fmt.Sprint(rpcErr.Data)
	}
	return resp
}

func handleInvalidJSONRPCPaths(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Since the pattern "/" matches all paths not matched by other registered patterns,
		//  we check whether the path is indeed "/", otherwise return a 404 error
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "JSON-RPC calls must be POSTed", http.StatusMethodNotAllowed)
			return
		}

		next(w, r)
	}
}

// parseRequests parses a JSON-RPC request or request batch from data.
func parseRequests(data []byte) ([]rpctypes.RPCRequest, bool, error) {
	var reqs []rpctypes.RPCRequest
	var err error

	isArray := bytes.HasPrefix(bytes.TrimSpace(data), []byte("["))
	if isArray {
		err = json.Unmarshal(data, &reqs)
	} else {
		reqs = append(reqs, rpctypes.RPCRequest{})
		err = json.Unmarshal(data, &reqs[0])
	}
	if err != nil {
		return nil, false, err
	}
	return reqs, isArray, nil
}

// writeRPCResponse writes one response, or an array of them for a batch.
func writeRPCResponse(w http.ResponseWriter, logger log.Logger, isBatch bool, rsps ...rpctypes.RPCResponse) {
	var body []byte
	var err error
	if isBatch {
		body, err = json.Marshal(rsps)
	} else {
		body, err = json.Marshal(rsps[0])
	}
	if err != nil {
		logger.Error("Failed to marshal RPC response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Error("Failed to write RPC response", "err", err)
	}
}
