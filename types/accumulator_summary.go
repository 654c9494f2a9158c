package types

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
	"github.com/ledgerlight/ledgerlight/crypto/merkle"
)

// TransactionAccumulatorSummary is the client's compact view of the
// transaction accumulator: the frozen subtree roots at a trusted version.
type TransactionAccumulatorSummary struct {
	frontier merkle.Frontier
}

// NewAccumulatorSummaryFromGenesis builds the summary at version from a
// consistency proof that starts at the empty accumulator. The result is
// not trusted until its root is compared with a trusted header.
func NewAccumulatorSummaryFromGenesis(
	proof merkle.ConsistencyProof,
	version uint64,
) (*TransactionAccumulatorSummary, error) {
	if version >= merkle.MaxAccumulatorLeaves {
		return nil, fmt.Errorf("version %d is out of range", version)
	}
	f, err := merkle.Frontier{}.Append(merkle.TransactionAccumulator, proof, version+1)
	if err != nil {
		return nil, fmt.Errorf("genesis consistency proof: %w", err)
	}
	return &TransactionAccumulatorSummary{frontier: f}, nil
}

// Version is the version of the last transaction in the summary.
func (s *TransactionAccumulatorSummary) Version() uint64 {
	return s.frontier.NumLeaves - 1
}

func (s *TransactionAccumulatorSummary) RootHash() crypto.HashValue {
	return s.frontier.RootHash(merkle.TransactionAccumulator)
}

// Verify checks the summary against a trusted header at the same version.
func (s *TransactionAccumulatorSummary) Verify(h *LedgerHeader) error {
	if h.Version != s.Version() {
		return fmt.Errorf("accumulator summary is at version %d, header at %d", s.Version(), h.Version)
	}
	if root := s.RootHash(); root != h.TransactionAccumulatorHash {
		return ErrAccumulatorMismatch{Version: h.Version, Expected: h.TransactionAccumulatorHash, Computed: root}
	}
	return nil
}

// ExtendWithProof appends the subtrees of proof and checks that the result
// has the root committed to by target. The receiver is left unchanged.
func (s *TransactionAccumulatorSummary) ExtendWithProof(
	proof merkle.ConsistencyProof,
	target *LedgerHeader,
) (*TransactionAccumulatorSummary, error) {
	if target.Version < s.Version() {
		return nil, fmt.Errorf("cannot extend accumulator at version %d back to version %d", s.Version(), target.Version)
	}
	if target.Version >= merkle.MaxAccumulatorLeaves {
		return nil, fmt.Errorf("version %d is out of range", target.Version)
	}
	f, err := s.frontier.Append(merkle.TransactionAccumulator, proof, target.Version+1)
	if err != nil {
		return nil, err
	}
	next := &TransactionAccumulatorSummary{frontier: f}
	if err := next.Verify(target); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *TransactionAccumulatorSummary) Equal(other *TransactionAccumulatorSummary) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.frontier.NumLeaves != other.frontier.NumLeaves || len(s.frontier.Subtrees) != len(other.frontier.Subtrees) {
		return false
	}
	for i := range s.frontier.Subtrees {
		if s.frontier.Subtrees[i] != other.frontier.Subtrees[i] {
			return false
		}
	}
	return true
}

func (s *TransactionAccumulatorSummary) encode(e *encoder) {
	e.uint64(s.frontier.NumLeaves)
	e.hashes(s.frontier.Subtrees)
}

func decodeAccumulatorSummary(d *decoder) *TransactionAccumulatorSummary {
	f := merkle.Frontier{NumLeaves: d.uint64(), Subtrees: d.hashes()}
	if d.err != nil {
		return nil
	}
	if f.NumLeaves == 0 {
		d.failf("accumulator summary: %w", errors.New("summary must hold at least the genesis transaction"))
		return nil
	}
	if err := f.ValidateBasic(); err != nil {
		d.failf("accumulator summary: %w", err)
		return nil
	}
	return &TransactionAccumulatorSummary{frontier: f}
}

func encodeConsistencyProof(e *encoder, p merkle.ConsistencyProof) {
	e.hashes(p.Subtrees)
}

func decodeConsistencyProof(d *decoder) merkle.ConsistencyProof {
	return merkle.ConsistencyProof{Subtrees: d.hashes()}
}

// MarshalConsistencyProof encodes a consistency proof for the wire.
func MarshalConsistencyProof(p merkle.ConsistencyProof) []byte {
	return encode(func(e *encoder) { encodeConsistencyProof(e, p) })
}

// UnmarshalConsistencyProof decodes a consistency proof from the wire.
func UnmarshalConsistencyProof(bz []byte) (merkle.ConsistencyProof, error) {
	var p merkle.ConsistencyProof
	err := decode(bz, func(d *decoder) { p = decodeConsistencyProof(d) })
	if err != nil {
		return merkle.ConsistencyProof{}, fmt.Errorf("consistency proof: %w", err)
	}
	return p, nil
}
