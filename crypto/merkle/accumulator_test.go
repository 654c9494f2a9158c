package merkle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ledgerlight/ledgerlight/crypto"
)

func testLeaves(n int) []crypto.HashValue {
	leaves := make([]crypto.HashValue, n)
	for i := range leaves {
		var bz [8]byte
		binary.BigEndian.PutUint64(bz[:], uint64(i))
		leaves[i] = crypto.HashOf("TestLeaf", bz[:])
	}
	return leaves
}

func TestEmptyAccumulator(t *testing.T) {
	acc := NewInMemoryAccumulator(TransactionAccumulator)
	assert.Equal(t, crypto.AccumulatorPlaceholderHash, acc.RootHash())
	assert.Equal(t, crypto.AccumulatorPlaceholderHash, Frontier{}.RootHash(TransactionAccumulator))
}

func TestSmallAccumulatorRoots(t *testing.T) {
	leaves := testLeaves(3)
	d := TransactionAccumulator

	assert.Equal(t, leaves[0], RootHashOf(d, leaves[:1]))
	assert.Equal(t, d.parent(leaves[0], leaves[1]), RootHashOf(d, leaves[:2]))
	assert.Equal(t,
		d.parent(d.parent(leaves[0], leaves[1]), d.parent(leaves[2], crypto.AccumulatorPlaceholderHash)),
		RootHashOf(d, leaves))

	// the domain is part of every internal node
	assert.NotEqual(t, RootHashOf(TransactionAccumulator, leaves), RootHashOf(EventAccumulator, leaves))
}

func TestFrozenSubtrees(t *testing.T) {
	testCases := []struct {
		from, to uint64
		heights  []int
	}{
		{0, 0, nil},
		{0, 1, []int{0}},
		{0, 7, []int{2, 1, 0}},
		{3, 8, []int{0, 2}},
		{5, 6, []int{0}},
		{6, 16, []int{1, 3}},
	}

	for _, tc := range testCases {
		var heights []int
		for _, st := range frozenSubtrees(tc.from, tc.to) {
			heights = append(heights, st.height)
		}
		assert.Equal(t, tc.heights, heights, "[%d, %d)", tc.from, tc.to)
	}
}

func TestFrontierExtension(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 150).Draw(t, "n").(int)
		m := rapid.IntRange(0, n).Draw(t, "m").(int)
		d := TransactionAccumulator

		acc := NewInMemoryAccumulator(d, testLeaves(n)...)

		genesis, err := acc.ConsistencyProof(0, uint64(m))
		require.NoError(t, err)
		start, err := Frontier{}.Append(d, genesis, uint64(m))
		require.NoError(t, err)
		require.Equal(t, acc.RootHashAt(uint64(m)), start.RootHash(d))

		proof, err := acc.ConsistencyProof(uint64(m), uint64(n))
		require.NoError(t, err)
		end, err := start.Append(d, proof, uint64(n))
		require.NoError(t, err)
		require.Equal(t, acc.RootHash(), end.RootHash(d))
		require.NoError(t, end.ValidateBasic())

		full, err := acc.Frontier(uint64(n))
		require.NoError(t, err)
		require.Equal(t, full, end)
	})
}

func TestFrontierRejectsBadProofs(t *testing.T) {
	d := TransactionAccumulator
	acc := NewInMemoryAccumulator(d, testLeaves(11)...)

	start, err := acc.Frontier(5)
	require.NoError(t, err)
	proof, err := acc.ConsistencyProof(5, 11)
	require.NoError(t, err)

	_, err = start.Append(d, ConsistencyProof{Subtrees: proof.Subtrees[1:]}, 11)
	require.Error(t, err)

	_, err = start.Append(d, proof, 4)
	require.Error(t, err)

	tampered := ConsistencyProof{Subtrees: append([]crypto.HashValue(nil), proof.Subtrees...)}
	tampered.Subtrees[0][0] ^= 0x01
	end, err := start.Append(d, tampered, 11)
	require.NoError(t, err)
	require.NotEqual(t, acc.RootHash(), end.RootHash(d))

	_, err = Frontier{NumLeaves: 3}.Append(d, proof, 11)
	require.Error(t, err)
}

func TestAccumulatorProof(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n").(int)
		i := rapid.IntRange(0, n-1).Draw(t, "i").(int)
		d := EventAccumulator

		leaves := testLeaves(n)
		acc := NewInMemoryAccumulator(d, leaves...)
		root := acc.RootHash()

		proof, err := acc.Proof(uint64(i), uint64(n))
		require.NoError(t, err)
		require.NoError(t, proof.Verify(d, root, leaves[i], uint64(i)))

		require.Error(t, proof.Verify(d, root, crypto.HashOf("other"), uint64(i)))
		if len(proof.Siblings) > 0 {
			j := rapid.IntRange(0, len(proof.Siblings)-1).Draw(t, "j").(int)
			proof.Siblings[j][5] ^= 0x80
			require.ErrorIs(t, proof.Verify(d, root, leaves[i], uint64(i)), ErrRootHashMismatch)
		}
	})
}

func TestAccumulatorProofRejectsOutOfRangeIndex(t *testing.T) {
	d := TransactionAccumulator
	leaves := testLeaves(4)
	acc := NewInMemoryAccumulator(d, leaves...)

	proof, err := acc.Proof(1, 4)
	require.NoError(t, err)
	require.Error(t, proof.Verify(d, acc.RootHash(), leaves[1], 5))

	_, err = acc.Proof(4, 4)
	require.Error(t, err)
	_, err = acc.Proof(0, 5)
	require.Error(t, err)
}

func TestAccumulatorRangeProof(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n").(int)
		first := rapid.IntRange(0, n-1).Draw(t, "first").(int)
		count := rapid.IntRange(1, n-first).Draw(t, "count").(int)
		d := TransactionAccumulator

		leaves := testLeaves(n)
		acc := NewInMemoryAccumulator(d, leaves...)
		root := acc.RootHash()

		proof, err := acc.RangeProof(uint64(first), uint64(count), uint64(n))
		require.NoError(t, err)

		idx := uint64(first)
		require.NoError(t, proof.Verify(d, root, &idx, leaves[first:first+count]))

		// shifting the range must fail
		if first > 0 {
			shifted := idx - 1
			require.Error(t, proof.Verify(d, root, &shifted, leaves[first:first+count]))
		}
		// dropping a leaf must fail
		if count > 1 {
			require.Error(t, proof.Verify(d, root, &idx, leaves[first:first+count-1]))
		}
	})
}

func TestEmptyRangeProof(t *testing.T) {
	d := TransactionAccumulator
	root := RootHashOf(d, testLeaves(3))

	require.NoError(t, AccumulatorRangeProof{}.Verify(d, root, nil, nil))
	require.Error(t, AccumulatorRangeProof{}.Verify(d, root, nil, testLeaves(1)))
	require.Error(t, AccumulatorRangeProof{LeftSiblings: testLeaves(1)}.Verify(d, root, nil, nil))

	idx := uint64(0)
	require.Error(t, AccumulatorRangeProof{}.Verify(d, root, &idx, nil))
}
