package merkle

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/ledgerlight/ledgerlight/crypto"
)

const (
	// MaxAccumulatorProofDepth bounds the height of any accumulator.
	MaxAccumulatorProofDepth = 63
	// MaxAccumulatorLeaves is the largest number of leaves an accumulator can hold.
	MaxAccumulatorLeaves uint64 = 1 << MaxAccumulatorProofDepth
)

// ErrRootHashMismatch is returned (wrapped) when a proof folds to a root other
// than the expected one.
var ErrRootHashMismatch = errors.New("root hash mismatch")

// Domain selects the hash domain of an accumulator's internal nodes.
type Domain string

const (
	TransactionAccumulator Domain = crypto.DomainTransactionAccumulator
	EventAccumulator       Domain = crypto.DomainEventAccumulator
)

func (d Domain) parent(left, right crypto.HashValue) crypto.HashValue {
	return crypto.HashOf(string(d), left[:], right[:])
}

// rootHeight is the height of the root of an accumulator with n > 0 leaves.
func rootHeight(n uint64) int {
	return bits.Len64(n - 1)
}

type subtree struct {
	height int
	index  uint64
}

// frozenSubtrees decomposes the leaves [from, to) into maximal aligned
// perfect subtrees, left to right.
func frozenSubtrees(from, to uint64) []subtree {
	var out []subtree
	for pos := from; pos < to; {
		h := 0
		for h < MaxAccumulatorProofDepth {
			size := uint64(1) << uint(h+1)
			if pos&(size-1) != 0 || to-pos < size {
				break
			}
			h++
		}
		out = append(out, subtree{height: h, index: pos >> uint(h)})
		pos += uint64(1) << uint(h)
	}
	return out
}

// AccumulatorProof proves that a leaf is at a given index of an accumulator.
type AccumulatorProof struct {
	// Siblings from the leaf level up to just below the root.
	Siblings []crypto.HashValue
}

// Verify folds leaf up to the root and compares it with expectedRoot.
func (p AccumulatorProof) Verify(d Domain, expectedRoot, leaf crypto.HashValue, leafIndex uint64) error {
	if len(p.Siblings) > MaxAccumulatorProofDepth {
		return fmt.Errorf("accumulator proof has more than %d siblings: %d",
			MaxAccumulatorProofDepth, len(p.Siblings))
	}
	if leafIndex>>uint(len(p.Siblings)) != 0 {
		return fmt.Errorf("leaf index %d does not fit a proof of depth %d", leafIndex, len(p.Siblings))
	}

	cur, idx := leaf, leafIndex
	for _, sib := range p.Siblings {
		if idx&1 == 1 {
			cur = d.parent(sib, cur)
		} else {
			cur = d.parent(cur, sib)
		}
		idx >>= 1
	}

	if cur != expectedRoot {
		return fmt.Errorf("%w: expected %v, computed %v (leaf %d)", ErrRootHashMismatch, expectedRoot, cur, leafIndex)
	}
	return nil
}

// AccumulatorRangeProof proves that a contiguous range of leaves belongs to
// an accumulator.
type AccumulatorRangeProof struct {
	// LeftSiblings and RightSiblings are both ordered bottom-up.
	LeftSiblings  []crypto.HashValue
	RightSiblings []crypto.HashValue
}

// Verify checks that leaves sit at [firstLeafIndex, firstLeafIndex+len(leaves))
// of the accumulator rooted at expectedRoot. A nil firstLeafIndex denotes an
// empty range and requires an empty proof.
func (p AccumulatorRangeProof) Verify(
	d Domain,
	expectedRoot crypto.HashValue,
	firstLeafIndex *uint64,
	leaves []crypto.HashValue,
) error {
	if firstLeafIndex == nil {
		if len(leaves) != 0 || len(p.LeftSiblings) != 0 || len(p.RightSiblings) != 0 {
			return errors.New("empty range proof must have no leaves and no siblings")
		}
		return nil
	}
	if len(leaves) == 0 {
		return errors.New("range proof with a first leaf index must cover at least one leaf")
	}
	if len(p.LeftSiblings) > MaxAccumulatorProofDepth || len(p.RightSiblings) > MaxAccumulatorProofDepth {
		return fmt.Errorf("range proof has too many siblings: left %d, right %d",
			len(p.LeftSiblings), len(p.RightSiblings))
	}
	first := *firstLeafIndex
	if uint64(len(leaves)) > MaxAccumulatorLeaves-first {
		return fmt.Errorf("range [%d, +%d) overflows the accumulator", first, len(leaves))
	}

	cur := make([]crypto.HashValue, len(leaves))
	copy(cur, leaves)
	left, right := p.LeftSiblings, p.RightSiblings

	for len(cur) > 1 || len(left) > 0 || len(right) > 0 {
		next := make([]crypto.HashValue, 0, len(cur)/2+1)
		i := 0
		if first&1 == 1 {
			if len(left) == 0 {
				return errors.New("range proof is missing a left sibling")
			}
			next = append(next, d.parent(left[0], cur[0]))
			left = left[1:]
			i = 1
		}
		for ; i+1 < len(cur); i += 2 {
			next = append(next, d.parent(cur[i], cur[i+1]))
		}
		if i < len(cur) {
			if len(right) == 0 {
				return errors.New("range proof is missing a right sibling")
			}
			next = append(next, d.parent(cur[i], right[0]))
			right = right[1:]
		}
		cur = next
		first >>= 1
	}

	if cur[0] != expectedRoot {
		return fmt.Errorf("%w: expected %v, computed %v", ErrRootHashMismatch, expectedRoot, cur[0])
	}
	return nil
}

// ConsistencyProof carries the roots of the frozen subtrees that extend an
// accumulator of N leaves to one of M >= N leaves.
type ConsistencyProof struct {
	Subtrees []crypto.HashValue
}

// Frontier summarizes an accumulator by the roots of its frozen subtrees,
// largest first. It is all a client needs to keep to verify extensions.
type Frontier struct {
	NumLeaves uint64
	Subtrees  []crypto.HashValue
}

// ValidateBasic checks the number of subtrees against NumLeaves.
func (f Frontier) ValidateBasic() error {
	if f.NumLeaves > MaxAccumulatorLeaves {
		return fmt.Errorf("too many leaves: %d", f.NumLeaves)
	}
	if want := bits.OnesCount64(f.NumLeaves); len(f.Subtrees) != want {
		return fmt.Errorf("frontier of %d leaves must have %d subtrees, got %d",
			f.NumLeaves, want, len(f.Subtrees))
	}
	return nil
}

// RootHash computes the accumulator root from the frozen subtrees. Missing
// right subtrees are filled with the placeholder hash.
func (f Frontier) RootHash(d Domain) crypto.HashValue {
	n := f.NumLeaves
	if n == 0 || len(f.Subtrees) == 0 {
		return crypto.AccumulatorPlaceholderHash
	}

	stack := f.Subtrees
	cur := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	for h := bits.TrailingZeros64(n); h < rootHeight(n); h++ {
		if (n-1)>>uint(h)&1 == 1 {
			cur = d.parent(stack[len(stack)-1], cur)
			stack = stack[:len(stack)-1]
		} else {
			cur = d.parent(cur, crypto.AccumulatorPlaceholderHash)
		}
	}
	return cur
}

// Append extends the frontier to newNumLeaves leaves using the frozen
// subtree roots of a consistency proof. The caller must compare the resulting
// root with a trusted one.
func (f Frontier) Append(d Domain, proof ConsistencyProof, newNumLeaves uint64) (Frontier, error) {
	if err := f.ValidateBasic(); err != nil {
		return Frontier{}, err
	}
	if newNumLeaves < f.NumLeaves {
		return Frontier{}, fmt.Errorf("cannot shrink accumulator from %d to %d leaves", f.NumLeaves, newNumLeaves)
	}
	if newNumLeaves > MaxAccumulatorLeaves {
		return Frontier{}, fmt.Errorf("too many leaves: %d", newNumLeaves)
	}

	ranges := frozenSubtrees(f.NumLeaves, newNumLeaves)
	if len(ranges) != len(proof.Subtrees) {
		return Frontier{}, fmt.Errorf("consistency proof from %d to %d leaves needs %d subtrees, got %d",
			f.NumLeaves, newNumLeaves, len(ranges), len(proof.Subtrees))
	}

	n := f.NumLeaves
	stack := make([]crypto.HashValue, len(f.Subtrees), len(f.Subtrees)+len(ranges))
	copy(stack, f.Subtrees)
	for i, r := range ranges {
		cur, h := proof.Subtrees[i], r.height
		for n>>uint(h)&1 == 1 {
			cur = d.parent(stack[len(stack)-1], cur)
			stack = stack[:len(stack)-1]
			h++
		}
		stack = append(stack, cur)
		n += uint64(1) << uint(r.height)
	}
	if len(stack) == 0 {
		stack = nil
	}

	return Frontier{NumLeaves: n, Subtrees: stack}, nil
}
