package light

import (
	"context"
	"time"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

const (
	defaultWaitTimeout = 5 * time.Second
	defaultWaitDelay   = 50 * time.Millisecond
)

// WaitForSignedTransaction waits for txn to be committed and executed. See
// WaitForTransaction.
func (c *Client) WaitForSignedTransaction(
	ctx context.Context,
	txn *types.Transaction,
	timeout, delay time.Duration,
) (coretypes.Response[coretypes.TransactionView], error) {
	resp, err := c.WaitForTransaction(
		ctx, txn.Sender, txn.SequenceNumber, txn.ExpirationTimestampSecs, txn.Hash(), timeout, delay)
	if err != nil {
		return resp, err
	}
	if !resp.Value.IsExecuted() {
		return resp, ErrTransactionExecutionFailed{Version: resp.Value.Version, VMStatus: resp.Value.VMStatus}
	}
	return resp, nil
}

// WaitForTransaction polls for the transaction sent by addr with sequence
// number seq every delay, until it is committed, the ledger time passes
// expirationSecs or timeout elapses. A committed transaction with another
// hash than hash is an error. Zero timeout and delay pick defaults of 5s and
// 50ms.
func (c *Client) WaitForTransaction(
	ctx context.Context,
	addr types.Address,
	seq uint64,
	expirationSecs uint64,
	hash crypto.HashValue,
	timeout, delay time.Duration,
) (coretypes.Response[coretypes.TransactionView], error) {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	if delay <= 0 {
		delay = defaultWaitDelay
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := c.GetAccountTransaction(ctx, addr, seq, true)
		if err != nil {
			return coretypes.Response[coretypes.TransactionView]{}, err
		}

		if txn := resp.Value; txn != nil {
			if txn.Hash != hash {
				return coretypes.NewResponse(*txn, resp.State), ErrTransactionHashMismatch{Expected: hash, Got: txn.Hash}
			}
			return coretypes.NewResponse(*txn, resp.State), nil
		}
		if expirationSecs <= resp.State.TimestampUsecs/1_000_000 {
			return coretypes.Response[coretypes.TransactionView]{}, ErrTransactionExpired
		}

		c.logger.Debug("Waiting for transaction", "sender", addr, "seq", seq, "version", resp.State.Version)
		select {
		case <-ctx.Done():
			return coretypes.Response[coretypes.TransactionView]{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return coretypes.Response[coretypes.TransactionView]{}, ErrWaitTimeout
}
