package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ledgerlight/ledgerlight/crypto"
)

func TestSparseMerkleEmptyTree(t *testing.T) {
	tree := NewSparseMerkleTree(nil)
	root := tree.RootHash()
	require.Equal(t, crypto.SparseMerklePlaceholderHash, root)

	key := crypto.HashOf("key")
	proof := tree.Proof(key)
	assert.Nil(t, proof.Leaf)
	assert.Empty(t, proof.Siblings)
	require.NoError(t, proof.Verify(root, key, nil))

	value := crypto.HashOf("value")
	require.Error(t, proof.Verify(root, key, &value))
}

func TestSparseMerkleSingleLeaf(t *testing.T) {
	key, value := crypto.HashOf("key"), crypto.HashOf("value")
	tree := NewSparseMerkleTree(map[crypto.HashValue]crypto.HashValue{key: value})
	root := tree.RootHash()
	require.Equal(t, SparseMerkleLeaf{Key: key, ValueHash: value}.Hash(), root)

	require.NoError(t, tree.Proof(key).Verify(root, key, &value))

	other := crypto.HashOf("other")
	proof := tree.Proof(other)
	require.NotNil(t, proof.Leaf)
	require.NoError(t, proof.Verify(root, other, nil))
	// an inclusion proof cannot be passed off as non-inclusion
	require.Error(t, tree.Proof(key).Verify(root, key, nil))
}

func TestSparseMerkleProofs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(t, "n").(int)
		leaves := make(map[crypto.HashValue]crypto.HashValue, n)
		keys := make([]crypto.HashValue, 0, n)
		for i := 0; i < n; i++ {
			seed := rapid.SliceOfN(rapid.Byte(), 1, 16).Draw(t, "seed").([]byte)
			k := crypto.HashOf(crypto.DomainAccountAddress, seed, []byte{byte(i)})
			leaves[k] = crypto.HashOf(crypto.DomainAccountStateBlob, seed)
			keys = append(keys, k)
		}
		tree := NewSparseMerkleTree(leaves)
		root := tree.RootHash()

		k := keys[rapid.IntRange(0, n-1).Draw(t, "pick").(int)]
		v := leaves[k]
		proof := tree.Proof(k)
		require.NoError(t, proof.Verify(root, k, &v))

		wrong := crypto.HashOf("wrong value")
		require.Error(t, proof.Verify(root, k, &wrong))

		absent := crypto.HashOf("absent", rapid.SliceOfN(rapid.Byte(), 1, 8).Draw(t, "absent").([]byte))
		if _, ok := leaves[absent]; !ok {
			require.NoError(t, tree.Proof(absent).Verify(root, absent, nil))
			require.Error(t, tree.Proof(absent).Verify(root, absent, &v))
		}

		if len(proof.Siblings) > 0 {
			proof.Siblings[0][0] ^= 0x01
			require.ErrorIs(t, proof.Verify(root, k, &v), ErrRootHashMismatch)
		}
	})
}

func TestSparseMerkleNonInclusionRequiresSharedPrefix(t *testing.T) {
	var a, b crypto.HashValue
	b[0] = 0x80 // differs from a in the first bit
	tree := NewSparseMerkleTree(map[crypto.HashValue]crypto.HashValue{
		a: crypto.HashOf("a"),
		b: crypto.HashOf("b"),
	})
	root := tree.RootHash()

	var c crypto.HashValue
	c[0] = 0x40 // shares one bit with a
	proof := tree.Proof(c)
	require.NoError(t, proof.Verify(root, c, nil))

	// claiming b's leaf sits under c's path must fail
	forged := proof
	forged.Leaf = &SparseMerkleLeaf{Key: b, ValueHash: crypto.HashOf("b")}
	require.Error(t, forged.Verify(root, c, nil))
}
