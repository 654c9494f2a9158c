package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlight/ledgerlight/types"
)

func TestChainCommitsSignedBlocks(t *testing.T) {
	chain := NewChain(4)
	alice, bob := NewSigner("alice"), NewSigner("bob")
	root := chain.Root()

	chain.CommitBlock(
		root.CreateAccount(0, alice, types.Balance{Currency: "XUS", Amount: 100}),
		root.CreateAccount(1, bob),
	)
	lhs := chain.CommitBlock(alice.Transfer(0, bob.Address, 30, "XUS"))

	// genesis, then per block a metadata transaction and the user ones
	assert.EqualValues(t, 5, lhs.Header.Version)
	assert.EqualValues(t, 1, lhs.Header.Epoch)
	require.NoError(t, chain.EpochEnding(0).Header.NextEpochState.Verify(lhs))

	balance, _ := chain.Account(bob.Address).Account.Balance("XUS")
	assert.EqualValues(t, 30, balance)
	assert.EqualValues(t, 1, chain.Account(alice.Address).Account.SequenceNumber)
}

func TestChainDropsInvalidTransactions(t *testing.T) {
	chain := NewChain(4)
	alice := NewSigner("alice")

	assert.Error(t, chain.Submit(alice.Transfer(0, types.RootAddress, 1, "XUS")), "unknown sender")

	root := chain.Root()
	require.NoError(t, chain.Submit(root.CreateAccount(0, alice)))
	assert.Error(t, chain.Submit(root.CreateAccount(0, NewSigner("bob"))), "reused sequence number")
	lhs := chain.CommitBlock()
	assert.EqualValues(t, 2, lhs.Header.Version)
	assert.NotNil(t, chain.Account(alice.Address))
}

func TestChainReconfigure(t *testing.T) {
	chain := NewChain(4)
	chain.CommitBlocks(2)
	next := ValidatorKeys(2, 7)
	ending := chain.Reconfigure(next)

	require.True(t, ending.Header.IsEpochBoundary())
	assert.EqualValues(t, 2, chain.Epoch())
	assert.Equal(t, ending, chain.EpochEnding(1))

	lhs := chain.CommitBlock()
	assert.EqualValues(t, 2, lhs.Header.Epoch)
	assert.NoError(t, ending.Header.NextEpochState.Verify(lhs))
}

func TestLedgerStateProofVerifies(t *testing.T) {
	chain := NewChain(4)
	chain.CommitBlocks(3)
	chain.Reconfigure(ValidatorKeys(2, 4))
	chain.CommitBlocks(2)

	ledger := chain.Ledger()
	proof, err := ledger.StateProof(0, 0)
	require.NoError(t, err)
	assert.False(t, proof.More())
	assert.Len(t, proof.EpochChanges.LedgerInfoWithSigs, 2)

	genesisProof, err := ledger.ConsistencyProof(nil, new(uint64))
	require.NoError(t, err)
	initial, err := types.NewAccumulatorSummaryFromGenesis(genesisProof, 0)
	require.NoError(t, err)

	state := types.NewWaypointOnlyState(chain.GenesisWaypoint())
	change, err := state.VerifyAndRatchet(proof, initial)
	require.NoError(t, err)
	require.NotNil(t, change.NewState)
	assert.Equal(t, ledger.State().Version, change.NewState.Version())
	assert.EqualValues(t, 2, change.NewState.Epoch())

	chain.Reconfigure(ValidatorKeys(3, 4))
	truncated, err := chain.Ledger().StateProof(0, 1)
	require.NoError(t, err)
	assert.True(t, truncated.More())
	assert.Len(t, truncated.EpochChanges.LedgerInfoWithSigs, 2)
	assert.Equal(t, chain.EpochEnding(1), truncated.Target)
}

func TestLedgerProofsVerify(t *testing.T) {
	chain := NewChain(4)
	alice, bob := NewSigner("alice"), NewSigner("bob")
	root := chain.Root()
	chain.CommitBlock(
		root.CreateAccount(0, alice, types.Balance{Currency: "XUS", Amount: 100}),
		root.CreateAccount(1, bob),
	)
	chain.CommitBlock(alice.Transfer(0, bob.Address, 30, "XUS"))
	chain.CommitBlock(alice.Transfer(1, bob.Address, 20, "XUS"))

	ledger := chain.Ledger()
	li := &ledger.Latest().Header

	account, err := ledger.AccountStateWithProof(bob.Address, nil, nil)
	require.NoError(t, err)
	require.NoError(t, account.Verify(li, li.Version, bob.Address))

	missing, err := ledger.AccountStateWithProof(NewSigner("carol").Address, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, missing.Blob)
	require.NoError(t, missing.Verify(li, li.Version, NewSigner("carol").Address))

	first := uint64(1)
	txns, err := ledger.TransactionsWithProof(first, 100, true)
	require.NoError(t, err)
	assert.Len(t, txns.Transactions, int(li.Version))
	require.NoError(t, txns.Verify(li, &first))

	sent, err := ledger.AccountTransactionsWithProof(alice.Address, 0, 10, true, nil)
	require.NoError(t, err)
	require.Len(t, sent.Transactions, 2)
	require.NoError(t, sent.Verify(li, alice.Address, 0, 10, true))

	received, err := ledger.EventsWithProof(types.NewEventKey(types.ReceivedEventsCreationNumber, bob.Address), 0, 10)
	require.NoError(t, err)
	require.Len(t, received, 2)
	for i, ev := range received {
		require.NoError(t, ev.Verify(li, ev.Event.Key, uint64(i), ev.TransactionVersion, ev.EventIndex))
	}

	v := uint64(3)
	byVersion, err := ledger.EventByVersionWithProof(types.NewBlockEventKey(), &v)
	require.NoError(t, err)
	require.NotNil(t, byVersion.LowerBoundIncl)
	require.NotNil(t, byVersion.UpperBoundExcl)
	require.NoError(t, byVersion.Verify(li, types.NewBlockEventKey(), nil, v))
}
