package types

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto/merkle"
)

// EpochChangeProof is a chain of epoch-boundary headers, each signed by the
// validators of the epoch it ends.
type EpochChangeProof struct {
	LedgerInfoWithSigs []*LedgerHeaderWithSignatures
	// More is set when the server holds further epoch changes it did not
	// include.
	More bool
}

func (p *EpochChangeProof) Marshal() []byte {
	return encode(func(e *encoder) {
		e.repeated(len(p.LedgerInfoWithSigs), func(i int, e *encoder) {
			p.LedgerInfoWithSigs[i].encode(e)
		})
		e.bool(p.More)
	})
}

// UnmarshalEpochChangeProof decodes the canonical encoding.
func UnmarshalEpochChangeProof(bz []byte) (*EpochChangeProof, error) {
	p := &EpochChangeProof{}
	err := decode(bz, func(d *decoder) {
		d.repeated(func(d *decoder) {
			if lhs := decodeLedgerHeaderWithSignatures(d); lhs != nil {
				p.LedgerInfoWithSigs = append(p.LedgerInfoWithSigs, lhs)
			}
		})
		p.More = d.bool()
	})
	if err != nil {
		return nil, fmt.Errorf("epoch change proof: %w", err)
	}
	return p, nil
}

// StateProof lets a client move its trusted state to Target: the epoch
// changes carry the validator sets from the client's epoch to the target's,
// and the consistency proof extends the client's accumulator to the target.
type StateProof struct {
	EpochChanges EpochChangeProof
	Target       *LedgerHeaderWithSignatures
	Consistency  merkle.ConsistencyProof
}

// More reports whether the server has epoch changes beyond this proof.
func (p *StateProof) More() bool { return p.EpochChanges.More }

// ValidateBasic performs stateless checks.
func (p *StateProof) ValidateBasic() error {
	if p.Target == nil {
		return errors.New("state proof has no target ledger header")
	}
	if err := p.Target.ValidateBasic(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	var prev *LedgerHeader
	for i, lhs := range p.EpochChanges.LedgerInfoWithSigs {
		if lhs == nil {
			return fmt.Errorf("epoch change #%d is nil", i)
		}
		if err := lhs.ValidateBasic(); err != nil {
			return fmt.Errorf("epoch change #%d: %w", i, err)
		}
		if !lhs.Header.IsEpochBoundary() {
			return fmt.Errorf("epoch change #%d: %w", i, ErrNotEpochBoundary)
		}
		if prev != nil && lhs.Header.Epoch != prev.Epoch+1 {
			return fmt.Errorf("epoch change #%d is for epoch %d, expected %d", i, lhs.Header.Epoch, prev.Epoch+1)
		}
		if lhs.Header.Version > p.Target.Header.Version {
			return fmt.Errorf("epoch change #%d at version %d is past the target version %d",
				i, lhs.Header.Version, p.Target.Header.Version)
		}
		prev = &lhs.Header
	}
	return nil
}

// Marshal encodes the proof as the three parts served by get_state_proof.
func (p *StateProof) Marshal() (target, epochChanges, consistency []byte) {
	return p.Target.Marshal(), p.EpochChanges.Marshal(), MarshalConsistencyProof(p.Consistency)
}

// UnmarshalStateProof reassembles a proof from its three encoded parts.
func UnmarshalStateProof(target, epochChanges, consistency []byte) (*StateProof, error) {
	lhs, err := UnmarshalLedgerHeaderWithSignatures(target)
	if err != nil {
		return nil, err
	}
	ecp, err := UnmarshalEpochChangeProof(epochChanges)
	if err != nil {
		return nil, err
	}
	cp, err := UnmarshalConsistencyProof(consistency)
	if err != nil {
		return nil, err
	}
	return &StateProof{EpochChanges: *ecp, Target: lhs, Consistency: cp}, nil
}
