package light_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
	"github.com/ledgerlight/ledgerlight/internal/test/factory"
	"github.com/ledgerlight/ledgerlight/libs/bytes"
	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/light"
	"github.com/ledgerlight/ledgerlight/light/store"
	rpcclient "github.com/ledgerlight/ledgerlight/rpc/client"
	"github.com/ledgerlight/ledgerlight/rpc/client/mock"
	"github.com/ledgerlight/ledgerlight/rpc/client/mocks"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

var (
	alice = factory.NewSigner("alice")
	bob   = factory.NewSigner("bob")
)

// newChain returns a chain where alice paid bob twice.
func newChain() *factory.Chain {
	chain := factory.NewChain(4)
	root := chain.Root()
	chain.CommitBlock(
		root.CreateAccount(0, alice, types.Balance{Currency: "XUS", Amount: 100}),
		root.CreateAccount(1, bob),
	)
	chain.CommitBlock(alice.Transfer(0, bob.Address, 30, "XUS"))
	chain.CommitBlock(alice.Transfer(1, bob.Address, 20, "XUS"))
	return chain
}

func newClient(t *testing.T, chain *factory.Chain, transport rpcclient.Transport, options ...light.Option) *light.Client {
	t.Helper()
	options = append([]light.Option{light.Logger(log.TestingLogger())}, options...)
	c, err := light.NewClient(transport, types.NewWaypointOnlyState(chain.GenesisWaypoint()), store.NewMemStorage(), options...)
	require.NoError(t, err)
	return c
}

func newSyncedClient(t *testing.T, chain *factory.Chain, transport rpcclient.Transport, options ...light.Option) *light.Client {
	t.Helper()
	c := newClient(t, chain, transport, options...)
	require.NoError(t, c.Sync(context.Background()))
	return c
}

func TestClientSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newClient(t, chain, mock.New(chain))
	assert.False(t, c.TrustedState().IsVerified())
	assert.Equal(t, chain.GenesisWaypoint(), c.Waypoint())

	require.NoError(t, c.Sync(ctx))
	assert.True(t, c.TrustedState().IsVerified())
	assert.Equal(t, chain.Latest().Header.Version, c.Version())
	assert.EqualValues(t, 1, c.TrustedState().Epoch())

	// synced clients stay put
	more, err := c.SyncOneStep(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, chain.Latest().Header.Version, c.Version())

	chain.CommitBlocks(3)
	require.NoError(t, c.Sync(ctx))
	assert.Equal(t, chain.Latest().Header.Version, c.Version())
}

func TestClientSyncGenesisOnly(t *testing.T) {
	chain := factory.NewChain(4)
	c := newSyncedClient(t, chain, mock.New(chain))
	assert.True(t, c.TrustedState().IsVerified())
	assert.EqualValues(t, 0, c.Version())
}

func TestClientSyncAcrossEpochs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	for epoch := uint64(2); epoch <= 4; epoch++ {
		chain.Reconfigure(factory.ValidatorKeys(epoch, 4))
		chain.CommitBlocks(2)
	}
	transport := mock.New(chain)
	transport.MaxEpochChanges = 1
	c := newClient(t, chain, transport)

	more, err := c.SyncOneStep(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, chain.Waypoint(1), c.Waypoint())

	require.NoError(t, c.Sync(ctx))
	assert.Equal(t, chain.Latest().Header.Version, c.Version())
	assert.Equal(t, chain.Epoch(), c.TrustedState().Epoch())
	assert.Equal(t, chain.Waypoint(3), c.Waypoint())
}

func TestClientWrongWaypoint(t *testing.T) {
	chain := newChain()
	other := factory.NewChain(7)

	c, err := light.NewClient(
		mock.New(chain), types.NewWaypointOnlyState(other.GenesisWaypoint()), store.NewMemStorage())
	require.NoError(t, err)

	err = c.Sync(context.Background())
	var invalid light.ErrInvalidProof
	require.ErrorAs(t, err, &invalid)
	assert.False(t, c.TrustedState().IsVerified())
}

func TestClientNeedsSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()

	c := newClient(t, chain, mock.New(chain))
	_, err := c.GetAccount(ctx, alice.Address)
	var needsSync light.ErrNeedsSync
	require.ErrorAs(t, err, &needsSync)

	auto := newClient(t, chain, mock.New(chain), light.AutoSyncWhenBehind(true))
	resp, err := auto.GetAccount(ctx, alice.Address)
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.EqualValues(t, 2, resp.Value.SequenceNumber)
}

func TestClientNeedsSyncAfterEpochChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	transport := mock.New(chain)
	transport.MaxEpochChanges = 1
	c := newSyncedClient(t, chain, transport)
	auto := newSyncedClient(t, chain, transport, light.AutoSyncWhenBehind(true))

	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	chain.Reconfigure(factory.ValidatorKeys(3, 4))
	chain.CommitBlock()

	// the first epoch change is trusted even though the batch fails
	before := c.Version()
	_, err := c.GetMetadata(ctx)
	var needsSync light.ErrNeedsSync
	require.ErrorAs(t, err, &needsSync)
	assert.Greater(t, c.Version(), before)
	assert.EqualValues(t, 2, c.TrustedState().Epoch())

	require.NoError(t, c.Sync(ctx))
	resp, err := c.GetMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, chain.Latest().Header.Version, resp.State.Version)

	resp, err = auto.GetMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, chain.Latest().Header.Version, resp.Value.Version)
	assert.Equal(t, chain.Epoch(), auto.TrustedState().Epoch())
}

func TestClientGetAccount(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))
	latest := chain.Latest().Header.Version

	resp, err := c.GetAccount(ctx, bob.Address)
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.Equal(t, latest, resp.State.Version)
	assert.Equal(t, latest, resp.Value.Version)
	assert.Equal(t, bob.Address, resp.Value.Address)
	assert.Equal(t, []coretypes.AmountView{{Amount: 50, Currency: "XUS"}}, resp.Value.Balances)

	resp, err = c.GetAccount(ctx, factory.NewSigner("carol").Address)
	require.NoError(t, err)
	assert.Nil(t, resp.Value)

	// after the first payment
	resp, err = c.GetAccountByVersion(ctx, bob.Address, latest-2)
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.Equal(t, latest-2, resp.Value.Version)
	assert.Equal(t, latest, resp.State.Version)
	assert.Equal(t, []coretypes.AmountView{{Amount: 30, Currency: "XUS"}}, resp.Value.Balances)
}

func TestClientGetMetadata(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	chain.CommitBlocks(2)
	c := newSyncedClient(t, chain, mock.New(chain), light.ChainID(factory.DefaultChainID))
	ledger := chain.Ledger()

	want, err := ledger.Metadata(nil)
	require.NoError(t, err)
	resp, err := c.GetMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, resp.Value)
	require.NotNil(t, resp.Value.ProtocolVersion)
	assert.EqualValues(t, 2, *resp.Value.ProtocolVersion)

	latest := ledger.Latest().Header.Version
	for _, v := range []uint64{0, 1, 2, latest / 2, latest - 1, latest} {
		want, err := ledger.Metadata(&v)
		require.NoError(t, err)
		resp, err := c.GetMetadataByVersion(ctx, v)
		require.NoError(t, err, "version %d", v)
		assert.Equal(t, want, resp.Value, "version %d", v)
		assert.Equal(t, latest, resp.State.Version)
	}
}

func TestClientGetTransactions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))
	latest := chain.Latest().Header.Version
	want := chain.Ledger().Transactions(1, 100, true)

	resp, err := c.GetTransactions(ctx, 1, 100, true)
	require.NoError(t, err)
	require.Len(t, resp.Value, int(latest))
	for i, txn := range resp.Value {
		assert.EqualValues(t, i+1, txn.Version)
		assert.Equal(t, want[i].Hash, txn.Hash)
		assert.Equal(t, want[i].Transaction, txn.Transaction)
		assert.Len(t, txn.Events, len(want[i].Events))
	}

	resp, err = c.GetTransactions(ctx, 2, 2, false)
	require.NoError(t, err)
	require.Len(t, resp.Value, 2)
	assert.Nil(t, resp.Value[0].Events)

	resp, err = c.GetTransactions(ctx, latest+1, 10, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Value)
}

func TestClientGetAccountTransactions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))

	resp, err := c.GetAccountTransactions(ctx, alice.Address, 0, 10, true)
	require.NoError(t, err)
	require.Len(t, resp.Value, 2)
	for seq, txn := range resp.Value {
		require.NotNil(t, txn.Transaction.Sender)
		assert.Equal(t, alice.Address, *txn.Transaction.Sender)
		assert.EqualValues(t, seq, txn.Transaction.SequenceNumber)
		assert.True(t, txn.IsExecuted())
		assert.NotEmpty(t, txn.Events)
	}

	one, err := c.GetAccountTransaction(ctx, alice.Address, 1, false)
	require.NoError(t, err)
	require.NotNil(t, one.Value)
	assert.Equal(t, resp.Value[1].Hash, one.Value.Hash)

	missing, err := c.GetAccountTransaction(ctx, alice.Address, 5, false)
	require.NoError(t, err)
	assert.Nil(t, missing.Value)
}

func TestClientGetEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))
	received := types.NewEventKey(types.ReceivedEventsCreationNumber, bob.Address)

	resp, err := c.GetEvents(ctx, received, 0, 10)
	require.NoError(t, err)
	require.Len(t, resp.Value, 2)
	for i, ev := range resp.Value {
		assert.EqualValues(t, i, ev.SequenceNumber)
		assert.Equal(t, "receivedpayment", ev.Data.Type)
		require.NotNil(t, ev.Data.Sender)
		assert.Equal(t, alice.Address, *ev.Data.Sender)
	}
	assert.Equal(t, &coretypes.AmountView{Amount: 20, Currency: "XUS"}, resp.Value[1].Data.Amount)

	resp, err = c.GetEvents(ctx, received, 1, 1)
	require.NoError(t, err)
	require.Len(t, resp.Value, 1)
	assert.EqualValues(t, 1, resp.Value[0].SequenceNumber)

	resp, err = c.GetEvents(ctx, types.NewEventKey(types.SentEventsCreationNumber, bob.Address), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Value)
}

func TestClientGetCurrencies(t *testing.T) {
	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))

	resp, err := c.GetCurrencies(context.Background())
	require.NoError(t, err)
	want, err := chain.Ledger().Currencies()
	require.NoError(t, err)
	assert.Equal(t, want, resp.Value)
	require.Len(t, resp.Value, 2)
	assert.Equal(t, "XDX", resp.Value[0].Code)
	assert.Equal(t, "XUS", resp.Value[1].Code)
}

func TestClientGetNetworkStatus(t *testing.T) {
	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))

	resp, err := c.GetNetworkStatus(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, mock.NetworkPeers, resp.Value)
	assert.Equal(t, chain.Latest().Header.Version, resp.State.Version)
}

func TestClientSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))

	txn := alice.Transfer(2, bob.Address, 5, "XUS")
	_, err := c.Submit(ctx, txn)
	require.NoError(t, err)

	// the sequence number is taken now
	_, err = c.Submit(ctx, alice.Transfer(2, bob.Address, 1, "XUS"))
	var rpcErr *coretypes.RPCError
	require.ErrorAs(t, err, &rpcErr)

	chain.CommitBlock()
	resp, err := c.WaitForSignedTransaction(ctx, txn, time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, txn.Hash(), resp.Value.Hash)
	assert.Equal(t, chain.Latest().Header.Version, resp.State.Version)
}

func TestClientWaitForTransaction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain))

	t.Run("committed later", func(t *testing.T) {
		txn := alice.Transfer(2, bob.Address, 5, "XUS")
		require.NoError(t, chain.Submit(txn))
		go func() {
			time.Sleep(30 * time.Millisecond)
			chain.CommitBlock()
		}()
		resp, err := c.WaitForSignedTransaction(ctx, txn, 5*time.Second, 5*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, txn.Hash(), resp.Value.Hash)
	})

	t.Run("hash mismatch", func(t *testing.T) {
		other := alice.Transfer(0, bob.Address, 99, "XUS")
		_, err := c.WaitForSignedTransaction(ctx, other, time.Second, 5*time.Millisecond)
		var mismatch light.ErrTransactionHashMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, other.Hash(), mismatch.Expected)
	})

	t.Run("expired", func(t *testing.T) {
		txn := alice.WithExpiration(alice.Transfer(10, bob.Address, 5, "XUS"), 1)
		_, err := c.WaitForSignedTransaction(ctx, txn, time.Second, 5*time.Millisecond)
		assert.ErrorIs(t, err, light.ErrTransactionExpired)
	})

	t.Run("timeout", func(t *testing.T) {
		txn := alice.Transfer(10, bob.Address, 5, "XUS")
		_, err := c.WaitForSignedTransaction(ctx, txn, 50*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, err, light.ErrWaitTimeout)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		txn := alice.Transfer(10, bob.Address, 5, "XUS")
		_, err := c.WaitForSignedTransaction(ctx, txn, time.Second, 5*time.Millisecond)
		assert.Error(t, err)
	})
}

func TestClientBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	transport := mock.New(chain)
	c := newSyncedClient(t, chain, transport)

	requests := []coretypes.MethodRequest{
		coretypes.GetAccount{Address: alice.Address},
		coretypes.GetCurrencies{},
		coretypes.GetNetworkStatus{},
	}
	n, err := light.ActualBatchSize(requests)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	results, err := c.Batch(ctx, requests)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, chain.Ledger().State(), res.State)
	}
	assert.IsType(t, coretypes.GetAccountResponse{}, results[0].Response)
	assert.IsType(t, coretypes.GetCurrenciesResponse{}, results[1].Response)

	// one round trip, ending with the state proof
	batches := transport.Batches()
	sent := batches[len(batches)-1]
	require.Len(t, sent, n)
	assert.Equal(t, coretypes.GetStateProof{Version: c.Version()}, sent[n-1])
}

func TestClientBatchRejectsUnverifiableRequests(t *testing.T) {
	chain := newChain()
	transport := mocks.NewTransport(t)
	c := newClient(t, chain, transport)

	_, err := c.Batch(context.Background(), []coretypes.MethodRequest{
		coretypes.GetAccount{Address: alice.Address},
		coretypes.GetStateProof{},
	})
	assert.ErrorIs(t, err, light.ErrUnverifiableRequest)

	_, err = light.ActualBatchSize([]coretypes.MethodRequest{coretypes.GetEventsWithProofs{}})
	assert.ErrorIs(t, err, light.ErrUnverifiableRequest)
}

func TestClientPartialFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	transport := mock.New(chain)
	c := newSyncedClient(t, chain, transport)

	// answer for alice with bob's account
	bobProof, err := chain.Ledger().AccountStateWithProof(bob.Address, nil, nil)
	require.NoError(t, err)
	transport.Intercept(func(requests []coretypes.MethodRequest, results []coretypes.Result) ([]coretypes.Result, error) {
		for i, req := range requests {
			if r, ok := req.(coretypes.GetAccountStateWithProof); ok && r.Address == alice.Address {
				results[i].Response = coretypes.GetAccountStateWithProofResponse{
					AccountStateWithProof: coretypes.NewAccountStateWithProofView(bobProof),
				}
			}
		}
		return results, nil
	})

	results, err := c.Batch(ctx, []coretypes.MethodRequest{
		coretypes.GetAccount{Address: alice.Address},
		coretypes.GetAccount{Address: bob.Address},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var invalid light.ErrInvalidProof
	assert.ErrorAs(t, results[0].Err, &invalid)
	require.NoError(t, results[1].Err)
	assert.Equal(t, bob.Address, results[1].Response.(coretypes.GetAccountResponse).Account.Address)
}

func TestClientServerErrorInSlot(t *testing.T) {
	chain := newChain()
	transport := mock.New(chain)
	c := newSyncedClient(t, chain, transport)

	serverErr := &coretypes.RPCError{Code: coretypes.CodeServerError, Message: "busy"}
	transport.Intercept(mock.RewriteMethod(coretypes.MethodGetEventsWithProofs, func(res *coretypes.Result) {
		*res = coretypes.Result{Err: serverErr}
	}))

	results, err := c.Batch(context.Background(), []coretypes.MethodRequest{
		coretypes.GetEvents{Key: types.NewBlockEventKey(), Limit: 10},
		coretypes.GetNetworkStatus{},
	})
	require.NoError(t, err)
	assert.Equal(t, serverErr, results[0].Err)
	assert.NoError(t, results[1].Err)
}

func TestClientMalformedResponse(t *testing.T) {
	malformed := func(method string) mock.Interceptor {
		return mock.RewriteMethod(method, func(res *coretypes.Result) {
			res.Response = nil
			res.Err = fmt.Errorf("%w: %s: json: cannot unmarshal string", coretypes.ErrMalformedResponse, method)
		})
	}

	t.Run("in a slot", func(t *testing.T) {
		chain := newChain()
		transport := mock.New(chain)
		c := newSyncedClient(t, chain, transport)
		transport.Intercept(malformed(coretypes.MethodGetAccountStateWithProof))

		results, err := c.Batch(context.Background(), []coretypes.MethodRequest{
			coretypes.GetAccount{Address: alice.Address},
			coretypes.GetNetworkStatus{},
		})
		require.NoError(t, err)
		var decodeErr light.ErrDecode
		require.ErrorAs(t, results[0].Err, &decodeErr)
		assert.Equal(t, coretypes.MethodGetAccountStateWithProof, decodeErr.Method)
		assert.ErrorIs(t, results[0].Err, coretypes.ErrMalformedResponse)
		assert.NoError(t, results[1].Err)
	})

	t.Run("state proof", func(t *testing.T) {
		chain := newChain()
		transport := mock.New(chain)
		c := newSyncedClient(t, chain, transport)
		version := c.Version()
		chain.CommitBlock()
		transport.Intercept(malformed(coretypes.MethodGetStateProof))

		_, err := c.GetAccount(context.Background(), alice.Address)
		var decodeErr light.ErrDecode
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, coretypes.MethodGetStateProof, decodeErr.Method)
		assert.Equal(t, version, c.Version())
	})

	t.Run("genesis consistency proof", func(t *testing.T) {
		chain := newChain()
		transport := mock.New(chain)
		c := newClient(t, chain, transport)
		transport.Intercept(malformed(coretypes.MethodGetAccumulatorConsistencyProof))

		err := c.Sync(context.Background())
		var decodeErr light.ErrDecode
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, coretypes.MethodGetAccumulatorConsistencyProof, decodeErr.Method)
		assert.False(t, c.TrustedState().IsVerified())
	})
}

func TestClientGetTransactionsEmptyList(t *testing.T) {
	empty := func(proof merkle.AccumulatorRangeProof) mock.Interceptor {
		return mock.RewriteMethod(coretypes.MethodGetTransactionsWithProofs, func(res *coretypes.Result) {
			list := &types.TransactionListWithProof{RangeProof: proof}
			res.Response = coretypes.GetTransactionsWithProofsResponse{
				Transactions: &coretypes.TransactionsWithProofsView{
					FirstTransactionVersion: 1,
					SerializedTransactions:  []bytes.HexBytes{},
					Proofs:                  list.MarshalProof(),
				},
			}
		})
	}

	t.Run("empty prefix", func(t *testing.T) {
		chain := newChain()
		transport := mock.New(chain)
		c := newSyncedClient(t, chain, transport)
		transport.Intercept(empty(merkle.AccumulatorRangeProof{}))

		resp, err := c.GetTransactions(context.Background(), 1, 10, true)
		require.NoError(t, err)
		assert.Empty(t, resp.Value)
	})

	t.Run("non-empty range proof", func(t *testing.T) {
		chain := newChain()
		transport := mock.New(chain)
		c := newSyncedClient(t, chain, transport)
		transport.Intercept(empty(merkle.AccumulatorRangeProof{LeftSiblings: []crypto.HashValue{{1}}}))

		_, err := c.GetTransactions(context.Background(), 1, 10, false)
		var invalid light.ErrInvalidProof
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestClientSyncRequiresProgress(t *testing.T) {
	chain := newChain()
	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	transport := mock.New(chain)
	c := newSyncedClient(t, chain, transport)
	version := c.Version()

	// The server claims more epoch changes but serves the one already
	// trusted.
	transport.Intercept(mock.RewriteMethod(coretypes.MethodGetStateProof, func(res *coretypes.Result) {
		sp, err := chain.Ledger().StateProof(version, 0)
		require.NoError(t, err)
		sp.EpochChanges.More = true
		res.Response = coretypes.GetStateProofResponse{StateProof: coretypes.NewStateProofView(sp)}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Sync(ctx)
	var rpcErr light.ErrRPCResponse
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, coretypes.MethodGetStateProof, rpcErr.Method)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, version, c.Version())
}

func TestClientRejectsInconsistentResponses(t *testing.T) {
	testCases := map[string]struct {
		intercept mock.Interceptor
		check     func(*testing.T, error)
	}{
		"metadata of a slot differs": {
			mock.RewriteMethod(coretypes.MethodGetAccountStateWithProof, func(res *coretypes.Result) {
				res.State.Version--
			}),
			func(t *testing.T, err error) {
				var rpcErr light.ErrRPCResponse
				assert.ErrorAs(t, err, &rpcErr)
			},
		},
		"state proof does not match metadata": {
			mock.RewriteMethod(coretypes.MethodGetStateProof, func(res *coretypes.Result) {
				res.State.TimestampUsecs++
			}),
			func(t *testing.T, err error) {
				var invalid light.ErrInvalidProof
				assert.ErrorAs(t, err, &invalid)
			},
		},
		"response dropped": {
			mock.DropLast(),
			func(t *testing.T, err error) {
				var rpcErr light.ErrRPCResponse
				require.ErrorAs(t, err, &rpcErr)
				var count rpcclient.ErrResponseCount
				assert.ErrorAs(t, err, &count)
			},
		},
		"foreign chain": {
			mock.RewriteMethod(coretypes.MethodGetStateProof, func(res *coretypes.Result) {
				res.State.ChainID = 1
			}),
			func(t *testing.T, err error) {
				var rpcErr light.ErrRPCResponse
				assert.ErrorAs(t, err, &rpcErr)
			},
		},
		"state proof missing": {
			mock.RewriteMethod(coretypes.MethodGetStateProof, func(res *coretypes.Result) {
				*res = coretypes.Result{Err: &coretypes.RPCError{Code: coretypes.CodeServerError, Message: "gone"}}
			}),
			func(t *testing.T, err error) {
				var rpcErr *coretypes.RPCError
				assert.ErrorAs(t, err, &rpcErr)
			},
		},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			chain := newChain()
			transport := mock.New(chain)
			c := newSyncedClient(t, chain, transport, light.ChainID(factory.DefaultChainID))
			version := c.Version()

			transport.Intercept(tc.intercept)
			_, err := c.GetAccount(context.Background(), alice.Address)
			tc.check(t, err)
			assert.Equal(t, version, c.Version())
		})
	}
}

func TestClientRejectsStaleStateProof(t *testing.T) {
	chain := newChain()
	old := chain.Ledger()
	oldProof, err := old.StateProof(0, 0)
	require.NoError(t, err)

	chain.CommitBlocks(2)
	transport := mock.New(chain)
	c := newSyncedClient(t, chain, transport)
	version := c.Version()

	transport.Intercept(mock.RewriteMethod(coretypes.MethodGetStateProof, func(res *coretypes.Result) {
		res.Response = coretypes.GetStateProofResponse{StateProof: coretypes.NewStateProofView(oldProof)}
		res.State = old.State()
	}))

	_, err = c.GetAccount(context.Background(), alice.Address)
	var invalid light.ErrInvalidProof
	require.ErrorAs(t, err, &invalid)
	var stale types.ErrStaleStateProof
	assert.ErrorAs(t, err, &stale)
	assert.Equal(t, version, c.Version())
}

func TestClientConcurrentRatchetKeepsNewerState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	transport := mock.New(chain)
	c := newSyncedClient(t, chain, transport)
	chain.CommitBlock()
	served := chain.Latest().Header.Version

	// While the batch is in flight another call moves the client further.
	fired := false
	transport.Intercept(func(_ []coretypes.MethodRequest, results []coretypes.Result) ([]coretypes.Result, error) {
		if !fired {
			fired = true
			chain.CommitBlocks(2)
			require.NoError(t, c.Sync(ctx))
		}
		return results, nil
	})

	resp, err := c.GetAccount(ctx, alice.Address)
	require.NoError(t, err)
	assert.Equal(t, served, resp.State.Version)
	assert.Equal(t, chain.Latest().Header.Version, c.Version())
	assert.Greater(t, c.Version(), served)
}

func TestClientTransportError(t *testing.T) {
	chain := newChain()
	errUnreachable := errors.New("connection refused")

	transport := mocks.NewTransport(t)
	transport.On("Batch", testifymock.Anything, testifymock.Anything).Return(nil, errUnreachable)
	c := newClient(t, chain, transport)

	err := c.Sync(context.Background())
	var reqErr light.ErrRequest
	require.ErrorAs(t, err, &reqErr)
	assert.ErrorIs(t, err, errUnreachable)
}

func TestClientParallelVerification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	c := newSyncedClient(t, chain, mock.New(chain), light.ParallelVerification(4))

	var requests []coretypes.MethodRequest
	for i := 0; i < 10; i++ {
		requests = append(requests,
			coretypes.GetAccount{Address: alice.Address},
			coretypes.GetAccountTransactions{Address: alice.Address, Limit: 10},
		)
	}
	results, err := c.Batch(ctx, requests)
	require.NoError(t, err)
	require.Len(t, results, len(requests))
	for i := 0; i < len(results); i += 2 {
		require.NoError(t, results[i].Err, "request #%d", i)
		require.NoError(t, results[i+1].Err, "request #%d", i+1)
		account := results[i].Response.(coretypes.GetAccountResponse).Account
		assert.Equal(t, alice.Address, account.Address)
		txns := results[i+1].Response.(coretypes.GetAccountTransactionsResponse).Transactions
		assert.Len(t, txns, 2)
	}
}

func TestClientPersistsTrustedState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	storage := store.NewMemStorage()
	c, err := light.NewClient(mock.New(chain), types.NewWaypointOnlyState(chain.GenesisWaypoint()), storage)
	require.NoError(t, err)
	require.NoError(t, c.Sync(ctx))

	restored, err := light.NewClientFromTrustedStore(mock.New(chain), storage)
	require.NoError(t, err)
	assert.True(t, c.TrustedState().Equal(restored.TrustedState()))

	// a stale bootstrap does not roll the stored state back
	again, err := light.NewClient(mock.New(chain), types.NewWaypointOnlyState(chain.GenesisWaypoint()), storage)
	require.NoError(t, err)
	assert.Equal(t, c.Version(), again.Version())

	_, err = light.NewClientFromTrustedStore(mock.New(chain), store.NewMemStorage())
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}
