package merkle

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// MaxSparseMerkleDepth is the number of bits in a key.
const MaxSparseMerkleDepth = crypto.HashSize * 8

// SparseMerkleLeaf is a key and the hash of the value stored under it.
type SparseMerkleLeaf struct {
	Key       crypto.HashValue
	ValueHash crypto.HashValue
}

func (l SparseMerkleLeaf) Hash() crypto.HashValue {
	return crypto.HashOf(crypto.DomainSparseMerkleLeaf, l.Key[:], l.ValueHash[:])
}

func sparseParent(left, right crypto.HashValue) crypto.HashValue {
	return crypto.HashOf(crypto.DomainSparseMerkleInternal, left[:], right[:])
}

// SparseMerkleProof proves that a key is or is not present in a sparse Merkle
// tree. Subtrees holding a single leaf are collapsed into that leaf, so a
// proof is only as deep as needed to isolate the key.
type SparseMerkleProof struct {
	// Leaf is the leaf found where the search for the key ended, or nil if
	// the search ended in an empty subtree.
	Leaf *SparseMerkleLeaf
	// Siblings ordered bottom-up.
	Siblings []crypto.HashValue
}

// Verify checks the proof against expectedRoot. A non-nil valueHash proves
// inclusion of key with that value; nil proves that key is absent.
func (p SparseMerkleProof) Verify(expectedRoot, key crypto.HashValue, valueHash *crypto.HashValue) error {
	if len(p.Siblings) > MaxSparseMerkleDepth {
		return fmt.Errorf("sparse Merkle proof has more than %d siblings: %d", MaxSparseMerkleDepth, len(p.Siblings))
	}

	switch {
	case valueHash != nil:
		if p.Leaf == nil {
			return errors.New("expected inclusion proof, found non-inclusion proof with an empty subtree")
		}
		if p.Leaf.Key != key {
			return fmt.Errorf("expected inclusion proof for key %v, found leaf of key %v", key, p.Leaf.Key)
		}
		if p.Leaf.ValueHash != *valueHash {
			return fmt.Errorf("value hash mismatch for key %v: expected %v, proof has %v", key, *valueHash, p.Leaf.ValueHash)
		}

	case p.Leaf != nil:
		if p.Leaf.Key == key {
			return fmt.Errorf("expected non-inclusion proof, found inclusion proof of key %v", key)
		}
		if n := key.CommonPrefixBits(p.Leaf.Key); n < len(p.Siblings) {
			return fmt.Errorf("leaf %v shares only %d bits with key %v, proof depth is %d",
				p.Leaf.Key, n, key, len(p.Siblings))
		}
	}

	cur := crypto.SparseMerklePlaceholderHash
	if p.Leaf != nil {
		cur = p.Leaf.Hash()
	}
	depth := len(p.Siblings)
	for i, sib := range p.Siblings {
		if key.Bit(depth - 1 - i) {
			cur = sparseParent(sib, cur)
		} else {
			cur = sparseParent(cur, sib)
		}
	}

	if cur != expectedRoot {
		return fmt.Errorf("%w: expected %v, computed %v", ErrRootHashMismatch, expectedRoot, cur)
	}
	return nil
}

// SparseMerkleTree is a read-only sparse Merkle tree over a fixed set of
// leaves. It produces the root and proofs served by a full node.
type SparseMerkleTree struct {
	keys   []crypto.HashValue
	values map[crypto.HashValue]crypto.HashValue
}

// NewSparseMerkleTree builds a tree mapping each key to its value hash.
func NewSparseMerkleTree(leaves map[crypto.HashValue]crypto.HashValue) *SparseMerkleTree {
	t := &SparseMerkleTree{
		keys:   make([]crypto.HashValue, 0, len(leaves)),
		values: make(map[crypto.HashValue]crypto.HashValue, len(leaves)),
	}
	for k, v := range leaves {
		t.keys = append(t.keys, k)
		t.values[k] = v
	}
	return t
}

func (t *SparseMerkleTree) RootHash() crypto.HashValue {
	return t.build(t.keys, 0)
}

func (t *SparseMerkleTree) build(keys []crypto.HashValue, depth int) crypto.HashValue {
	switch len(keys) {
	case 0:
		return crypto.SparseMerklePlaceholderHash
	case 1:
		return SparseMerkleLeaf{Key: keys[0], ValueHash: t.values[keys[0]]}.Hash()
	}
	left, right := splitByBit(keys, depth)
	return sparseParent(t.build(left, depth+1), t.build(right, depth+1))
}

// Proof returns an inclusion proof if key is in the tree and a non-inclusion
// proof otherwise.
func (t *SparseMerkleTree) Proof(key crypto.HashValue) SparseMerkleProof {
	var (
		keys     = t.keys
		siblings []crypto.HashValue
		depth    int
	)
	for len(keys) > 1 {
		left, right := splitByBit(keys, depth)
		if key.Bit(depth) {
			siblings = append(siblings, t.build(left, depth+1))
			keys = right
		} else {
			siblings = append(siblings, t.build(right, depth+1))
			keys = left
		}
		depth++
	}

	// siblings were collected top-down
	for i, j := 0, len(siblings)-1; i < j; i, j = i+1, j-1 {
		siblings[i], siblings[j] = siblings[j], siblings[i]
	}

	proof := SparseMerkleProof{Siblings: siblings}
	if len(keys) == 1 {
		proof.Leaf = &SparseMerkleLeaf{Key: keys[0], ValueHash: t.values[keys[0]]}
	}
	return proof
}

func splitByBit(keys []crypto.HashValue, depth int) (left, right []crypto.HashValue) {
	for _, k := range keys {
		if k.Bit(depth) {
			right = append(right, k)
		} else {
			left = append(left, k)
		}
	}
	return left, right
}
