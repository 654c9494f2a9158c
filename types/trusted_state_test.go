package types_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlight/ledgerlight/internal/test/factory"
	"github.com/ledgerlight/ledgerlight/types"
)

// bootstrap returns the waypoint only state of chain together with the
// accumulator summary needed to leave it.
func bootstrap(t *testing.T, chain *factory.Chain) (types.TrustedState, *types.TransactionAccumulatorSummary) {
	t.Helper()
	w := chain.GenesisWaypoint()
	proof, err := chain.Ledger().ConsistencyProof(nil, &w.Version)
	require.NoError(t, err)
	initial, err := types.NewAccumulatorSummaryFromGenesis(proof, w.Version)
	require.NoError(t, err)
	return types.NewWaypointOnlyState(w), initial
}

func ratchet(t *testing.T, chain *factory.Chain, s types.TrustedState, initial *types.TransactionAccumulatorSummary) types.TrustedState {
	t.Helper()
	sp, err := chain.Ledger().StateProof(s.Version(), 0)
	require.NoError(t, err)
	change, err := s.VerifyAndRatchet(sp, initial)
	require.NoError(t, err)
	require.True(t, change.IsChanged())
	return *change.NewState
}

func TestVerifyAndRatchetFromWaypoint(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlocks(3)
	s, initial := bootstrap(t, chain)
	assert.False(t, s.IsVerified())
	assert.Equal(t, uint64(1), s.Epoch())

	sp, err := chain.Ledger().StateProof(0, 0)
	require.NoError(t, err)
	change, err := s.VerifyAndRatchet(sp, initial)
	require.NoError(t, err)
	require.True(t, change.IsChanged())
	assert.True(t, change.EpochChanged)
	assert.Equal(t, chain.Latest(), change.LatestHeader)

	next := *change.NewState
	assert.True(t, next.IsVerified())
	assert.Equal(t, chain.Latest().Header.Version, next.Version())
	assert.Equal(t, chain.GenesisWaypoint(), next.Waypoint())
	assert.Equal(t, uint64(1), next.Epoch())
	assert.Equal(t, chain.Latest().Header.TransactionAccumulatorHash, next.Accumulator().RootHash())
	assert.True(t, next.IsNewerThan(s))
	assert.False(t, s.IsNewerThan(next))

	// the receiver is left as it was
	assert.False(t, s.IsVerified())
}

func TestVerifyAndRatchetGenesisOnly(t *testing.T) {
	chain := factory.NewChain(4)
	s, initial := bootstrap(t, chain)

	sp, err := chain.Ledger().StateProof(0, 0)
	require.NoError(t, err)
	change, err := s.VerifyAndRatchet(sp, initial)
	require.NoError(t, err)
	require.True(t, change.IsChanged())
	assert.Equal(t, uint64(0), change.NewState.Version())
	assert.True(t, change.NewState.IsNewerThan(s))
}

func TestVerifyAndRatchetRequiresInitialAccumulator(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, _ := bootstrap(t, chain)

	sp, err := chain.Ledger().StateProof(0, 0)
	require.NoError(t, err)
	_, err = s.VerifyAndRatchet(sp, nil)
	assert.Error(t, err)
}

func TestVerifyAndRatchetWrongWaypoint(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	other := factory.NewChain(3)

	_, initial := bootstrap(t, chain)
	s := types.NewWaypointOnlyState(other.GenesisWaypoint())
	sp, err := chain.Ledger().StateProof(0, 0)
	require.NoError(t, err)

	_, err = s.VerifyAndRatchet(sp, initial)
	assert.ErrorAs(t, err, &types.ErrInvalidWaypoint{})
}

func TestVerifyAndRatchetAcrossEpochs(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	s = ratchet(t, chain, s, initial)

	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	chain.CommitBlock()
	chain.Reconfigure(factory.ValidatorKeys(3, 7))
	chain.CommitBlock()

	sp, err := chain.Ledger().StateProof(s.Version(), 0)
	require.NoError(t, err)
	require.Len(t, sp.EpochChanges.LedgerInfoWithSigs, 2)

	change, err := s.VerifyAndRatchet(sp, nil)
	require.NoError(t, err)
	require.True(t, change.IsChanged())
	assert.True(t, change.EpochChanged)
	assert.Equal(t, uint64(3), change.NewState.Epoch())
	assert.Equal(t, chain.Waypoint(2), change.NewState.Waypoint())
	assert.True(t, change.NewState.EpochState().Verifier.Equal(factory.ValidatorVerifier(factory.ValidatorKeys(3, 7))))
}

func TestVerifyAndRatchetEpochBoundaryTarget(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	s = ratchet(t, chain, s, initial)

	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	next := ratchet(t, chain, s, nil)
	assert.Equal(t, uint64(2), next.Epoch())
	assert.Equal(t, chain.Waypoint(1), next.Waypoint())
	assert.Equal(t, chain.Latest().Header.Version, next.Version())
}

func TestVerifyAndRatchetIsIdempotent(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	chain.CommitBlocks(2)

	sp, err := chain.Ledger().StateProof(s.Version(), 0)
	require.NoError(t, err)
	first, err := s.VerifyAndRatchet(sp, initial)
	require.NoError(t, err)
	second, err := s.VerifyAndRatchet(sp, initial)
	require.NoError(t, err)
	require.True(t, first.IsChanged())
	require.True(t, second.IsChanged())
	assert.True(t, first.NewState.Equal(*second.NewState))
	assert.Equal(t, first.EpochChanged, second.EpochChanged)

	verified := *first.NewState
	chain.Reconfigure(factory.ValidatorKeys(3, 4))
	chain.CommitBlock()
	sp, err = chain.Ledger().StateProof(verified.Version(), 0)
	require.NoError(t, err)
	first, err = verified.VerifyAndRatchet(sp, nil)
	require.NoError(t, err)
	second, err = verified.VerifyAndRatchet(sp, nil)
	require.NoError(t, err)
	require.True(t, first.IsChanged())
	assert.True(t, first.NewState.Equal(*second.NewState))
}

func TestVerifyAndRatchetFromLaterWaypoint(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	chain.CommitBlock()
	chain.Reconfigure(factory.ValidatorKeys(3, 4))
	chain.CommitBlock()
	chain.Reconfigure(factory.ValidatorKeys(4, 4))
	chain.CommitBlocks(2)

	w := chain.Waypoint(2)
	proof, err := chain.Ledger().ConsistencyProof(nil, &w.Version)
	require.NoError(t, err)
	initial, err := types.NewAccumulatorSummaryFromGenesis(proof, w.Version)
	require.NoError(t, err)

	for _, maxEpochChanges := range []int{0, 1} {
		maxEpochChanges := maxEpochChanges
		t.Run(fmt.Sprintf("max epoch changes %d", maxEpochChanges), func(t *testing.T) {
			s := types.NewWaypointOnlyState(w)
			for step := 0; ; step++ {
				require.Less(t, step, 5, "state proofs do not converge")

				sp, err := chain.Ledger().StateProof(s.Version(), maxEpochChanges)
				require.NoError(t, err)
				var from *types.TransactionAccumulatorSummary
				if !s.IsVerified() {
					from = initial
				}
				change, err := s.VerifyAndRatchet(sp, from)
				require.NoError(t, err)
				if !change.IsChanged() {
					break
				}
				s = *change.NewState
				if !sp.More() {
					break
				}
			}

			assert.True(t, s.IsVerified())
			assert.Equal(t, chain.Latest().Header.Version, s.Version())
			assert.Equal(t, uint64(4), s.Epoch())
			assert.Equal(t, chain.Waypoint(3), s.Waypoint())
			assert.True(t, s.EpochState().Verifier.Equal(factory.ValidatorVerifier(factory.ValidatorKeys(4, 4))))
		})
	}
}

func TestVerifyAndRatchetUnchanged(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	s = ratchet(t, chain, s, initial)

	sp, err := chain.Ledger().StateProof(s.Version(), 0)
	require.NoError(t, err)
	change, err := s.VerifyAndRatchet(sp, nil)
	require.NoError(t, err)
	assert.False(t, change.IsChanged())
	assert.False(t, change.EpochChanged)
	assert.Equal(t, chain.Latest(), change.LatestHeader)
}

func TestVerifyAndRatchetStale(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	old, err := chain.Ledger().StateProof(0, 0)
	require.NoError(t, err)

	chain.CommitBlock()
	s = ratchet(t, chain, s, initial)

	_, err = s.VerifyAndRatchet(old, nil)
	var stale types.ErrStaleStateProof
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, s.Version(), stale.Trusted)
	assert.Equal(t, old.Target.Header.Version, stale.Target)
}

func TestVerifyAndRatchetRejectsForgedTargets(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	s = ratchet(t, chain, s, initial)
	chain.CommitBlock()

	proof := func(t *testing.T) *types.StateProof {
		sp, err := chain.Ledger().StateProof(s.Version(), 0)
		require.NoError(t, err)
		return sp
	}

	t.Run("foreign signers", func(t *testing.T) {
		sp := proof(t)
		sp.Target = factory.Sign(sp.Target.Header, factory.ValidatorKeys(9, 4))
		_, err := s.VerifyAndRatchet(sp, nil)
		assert.ErrorAs(t, err, &types.ErrUnknownAuthor{})
	})

	t.Run("below quorum", func(t *testing.T) {
		sp := proof(t)
		sp.Target = factory.Sign(sp.Target.Header, chain.Validators()[:2])
		_, err := s.VerifyAndRatchet(sp, nil)
		assert.ErrorAs(t, err, &types.ErrTooLittleVotingPower{})
	})

	t.Run("tampered header", func(t *testing.T) {
		sp := proof(t)
		forged := sp.Target.Copy()
		forged.Header.TimestampUsecs++
		sp.Target = forged
		_, err := s.VerifyAndRatchet(sp, nil)
		assert.ErrorAs(t, err, &types.ErrInvalidSignature{})
	})

	t.Run("wrong accumulator root", func(t *testing.T) {
		sp := proof(t)
		h := sp.Target.Header
		h.TransactionAccumulatorHash[0] ^= 0xff
		sp.Target = factory.Sign(h, chain.Validators())
		_, err := s.VerifyAndRatchet(sp, nil)
		assert.ErrorAs(t, err, &types.ErrAccumulatorMismatch{})
	})

	t.Run("missing target", func(t *testing.T) {
		sp := proof(t)
		sp.Target = nil
		_, err := s.VerifyAndRatchet(sp, nil)
		assert.Error(t, err)
	})
}

func TestVerifyAndRatchetRejectsSkippedEpoch(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)
	s = ratchet(t, chain, s, initial)

	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	chain.Reconfigure(factory.ValidatorKeys(3, 4))
	chain.CommitBlock()

	sp, err := chain.Ledger().StateProof(s.Version(), 0)
	require.NoError(t, err)
	require.Len(t, sp.EpochChanges.LedgerInfoWithSigs, 2)
	sp.EpochChanges.LedgerInfoWithSigs = sp.EpochChanges.LedgerInfoWithSigs[1:]

	_, err = s.VerifyAndRatchet(sp, nil)
	assert.Error(t, err)
}

func TestTrustedStateMarshal(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	s, initial := bootstrap(t, chain)

	decoded, err := types.UnmarshalTrustedState(s.Marshal())
	require.NoError(t, err)
	assert.True(t, s.Equal(decoded))
	assert.False(t, decoded.IsVerified())

	verified := ratchet(t, chain, s, initial)
	decoded, err = types.UnmarshalTrustedState(verified.Marshal())
	require.NoError(t, err)
	assert.True(t, verified.Equal(decoded))
	assert.Equal(t, verified.Version(), decoded.Version())
	assert.False(t, decoded.Equal(s))

	// a decoded state keeps ratcheting
	chain.CommitBlock()
	next := ratchet(t, chain, decoded, nil)
	assert.Equal(t, chain.Latest().Header.Version, next.Version())

	bz := verified.Marshal()
	_, err = types.UnmarshalTrustedState(bz[:len(bz)-1])
	assert.Error(t, err)
	_, err = types.UnmarshalTrustedState(append(bz, 0))
	assert.Error(t, err)
}
