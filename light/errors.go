package light

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
)

// ErrUnverifiableRequest is returned by Batch for requests the client has no
// verification strategy for, such as the raw proof methods.
var ErrUnverifiableRequest = errors.New("request cannot be verified")

// ErrDecode means the server sent bytes or JSON that do not decode into the
// expected type. It is not a proof failure and may indicate that client and
// server run different versions.
type ErrDecode struct {
	Method string
	Reason error
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Method, e.Reason)
}

func (e ErrDecode) Unwrap() error { return e.Reason }

// ErrInvalidProof means a proof did not verify. The server may be malicious:
// the error is never retried automatically.
type ErrInvalidProof struct {
	Method string
	Reason error
}

func (e ErrInvalidProof) Error() string {
	return fmt.Sprintf("invalid %s proof: %v", e.Method, e.Reason)
}

func (e ErrInvalidProof) Unwrap() error { return e.Reason }

// ErrRPCResponse means the shape of the server's answer does not match what
// was asked for: wrong response counts or types, inconsistent metadata or a
// foreign chain.
type ErrRPCResponse struct {
	Method string
	Reason error
}

func (e ErrRPCResponse) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("unexpected rpc response: %v", e.Reason)
	}
	return fmt.Sprintf("unexpected %s response: %v", e.Method, e.Reason)
}

func (e ErrRPCResponse) Unwrap() error { return e.Reason }

// ErrNeedsSync means the client is too far behind the server to verify the
// request. Call Client.Sync and retry.
type ErrNeedsSync struct {
	Version uint64
	Reason  string
}

func (e ErrNeedsSync) Error() string {
	return fmt.Sprintf("client at version %d needs to sync: %s", e.Version, e.Reason)
}

// resultError returns the error a transport reported for a single call of
// method. Responses the transport could not decode become ErrDecode.
func resultError(method string, err error) error {
	if errors.Is(err, coretypes.ErrMalformedResponse) {
		return ErrDecode{Method: method, Reason: err}
	}
	return err
}

// ErrRequest wraps transport failures. Retrying is up to the caller.
type ErrRequest struct {
	Reason error
}

func (e ErrRequest) Error() string {
	return fmt.Sprintf("request failed: %v", e.Reason)
}

func (e ErrRequest) Unwrap() error { return e.Reason }

var (
	// ErrTransactionExpired is returned by WaitForTransaction when the ledger
	// time passed the expiration of a transaction that was not committed.
	ErrTransactionExpired = errors.New("transaction expired")
	// ErrWaitTimeout is returned by WaitForTransaction when the transaction
	// did not show up in time.
	ErrWaitTimeout = errors.New("timed out waiting for transaction")
)

// ErrTransactionHashMismatch is returned by WaitForTransaction when another
// transaction was committed with the awaited sender and sequence number.
type ErrTransactionHashMismatch struct {
	Expected crypto.HashValue
	Got      crypto.HashValue
}

func (e ErrTransactionHashMismatch) Error() string {
	return fmt.Sprintf("committed transaction has hash %v, expected %v", e.Got, e.Expected)
}

// ErrTransactionExecutionFailed is returned by WaitForSignedTransaction when
// the transaction was committed but did not execute.
type ErrTransactionExecutionFailed struct {
	Version  uint64
	VMStatus string
}

func (e ErrTransactionExecutionFailed) Error() string {
	return fmt.Sprintf("transaction at version %d failed: %s", e.Version, e.VMStatus)
}
