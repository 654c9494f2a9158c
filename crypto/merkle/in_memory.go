package merkle

import (
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// InMemoryAccumulator keeps every leaf and can produce any proof over any
// prefix of them. It backs the full node side of the protocol in tests and
// computes event roots of individual transactions.
type InMemoryAccumulator struct {
	domain Domain
	leaves []crypto.HashValue
}

func NewInMemoryAccumulator(d Domain, leaves ...crypto.HashValue) *InMemoryAccumulator {
	acc := &InMemoryAccumulator{domain: d}
	acc.Append(leaves...)
	return acc
}

// RootHashOf returns the root of an accumulator holding exactly leaves.
func RootHashOf(d Domain, leaves []crypto.HashValue) crypto.HashValue {
	return NewInMemoryAccumulator(d, leaves...).RootHash()
}

func (a *InMemoryAccumulator) Append(leaves ...crypto.HashValue) {
	a.leaves = append(a.leaves, leaves...)
}

func (a *InMemoryAccumulator) NumLeaves() uint64 { return uint64(len(a.leaves)) }

func (a *InMemoryAccumulator) Leaf(i uint64) crypto.HashValue { return a.leaves[i] }

// RootHash is the root over all leaves.
func (a *InMemoryAccumulator) RootHash() crypto.HashValue {
	return a.RootHashAt(a.NumLeaves())
}

// RootHashAt is the root of the accumulator made of the first n leaves.
func (a *InMemoryAccumulator) RootHashAt(n uint64) crypto.HashValue {
	if n == 0 {
		return crypto.AccumulatorPlaceholderHash
	}
	return a.node(rootHeight(n), 0, n)
}

// node hashes the subtree of the given height and index, restricted to the
// first n leaves.
func (a *InMemoryAccumulator) node(h int, idx, n uint64) crypto.HashValue {
	start := idx << uint(h)
	if start >= n {
		return crypto.AccumulatorPlaceholderHash
	}
	if h == 0 {
		return a.leaves[idx]
	}
	return a.domain.parent(a.node(h-1, 2*idx, n), a.node(h-1, 2*idx+1, n))
}

func (a *InMemoryAccumulator) checkSize(n uint64) error {
	if n > a.NumLeaves() {
		return fmt.Errorf("accumulator has %d leaves, %d requested", a.NumLeaves(), n)
	}
	return nil
}

// Proof proves leaf i within the first n leaves.
func (a *InMemoryAccumulator) Proof(i, n uint64) (AccumulatorProof, error) {
	if err := a.checkSize(n); err != nil {
		return AccumulatorProof{}, err
	}
	if i >= n {
		return AccumulatorProof{}, fmt.Errorf("leaf %d out of range of %d leaves", i, n)
	}

	height := rootHeight(n)
	siblings := make([]crypto.HashValue, 0, height)
	for h := 0; h < height; h++ {
		siblings = append(siblings, a.node(h, (i>>uint(h))^1, n))
	}
	return AccumulatorProof{Siblings: siblings}, nil
}

// RangeProof proves count leaves starting at first within the first n leaves.
func (a *InMemoryAccumulator) RangeProof(first, count, n uint64) (AccumulatorRangeProof, error) {
	if err := a.checkSize(n); err != nil {
		return AccumulatorRangeProof{}, err
	}
	if count == 0 {
		return AccumulatorRangeProof{}, nil
	}
	last := first + count - 1
	if last >= n {
		return AccumulatorRangeProof{}, fmt.Errorf("range [%d, %d] out of range of %d leaves", first, last, n)
	}

	var proof AccumulatorRangeProof
	for h := 0; h < rootHeight(n); h++ {
		f, l := first>>uint(h), last>>uint(h)
		if f&1 == 1 {
			proof.LeftSiblings = append(proof.LeftSiblings, a.node(h, f-1, n))
		}
		if l&1 == 0 {
			proof.RightSiblings = append(proof.RightSiblings, a.node(h, l+1, n))
		}
	}
	return proof, nil
}

// ConsistencyProof returns the frozen subtrees that extend the first from
// leaves to the first to leaves.
func (a *InMemoryAccumulator) ConsistencyProof(from, to uint64) (ConsistencyProof, error) {
	if err := a.checkSize(to); err != nil {
		return ConsistencyProof{}, err
	}
	if from > to {
		return ConsistencyProof{}, fmt.Errorf("consistency proof from %d to %d leaves goes backwards", from, to)
	}

	var proof ConsistencyProof
	for _, st := range frozenSubtrees(from, to) {
		proof.Subtrees = append(proof.Subtrees, a.node(st.height, st.index, to))
	}
	return proof, nil
}

// Frontier summarizes the first n leaves.
func (a *InMemoryAccumulator) Frontier(n uint64) (Frontier, error) {
	proof, err := a.ConsistencyProof(0, n)
	if err != nil {
		return Frontier{}, err
	}
	return Frontier{NumLeaves: n, Subtrees: proof.Subtrees}, nil
}
