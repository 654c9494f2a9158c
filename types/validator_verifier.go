package types

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledgerlight/ledgerlight/crypto/ed25519"
)

// batchVerifyThreshold is the number of signatures from which a batch
// verifier is used instead of checking them one by one.
const batchVerifyThreshold = 2

// ValidatorConsensusInfo is a validator's identity and voting power within
// one epoch.
type ValidatorConsensusInfo struct {
	Address     Address
	PubKey      ed25519.PubKey
	VotingPower uint64
}

// NewValidatorConsensusInfo derives the validator's address from its key.
func NewValidatorConsensusInfo(pubKey ed25519.PubKey, votingPower uint64) ValidatorConsensusInfo {
	return ValidatorConsensusInfo{
		Address:     AddressFromPubKey(pubKey),
		PubKey:      pubKey,
		VotingPower: votingPower,
	}
}

// ValidatorVerifier checks that a message was signed by a quorum of one
// epoch's validators. It is immutable once built.
type ValidatorVerifier struct {
	validators        []ValidatorConsensusInfo
	index             map[Address]int
	totalVotingPower  uint64
	quorumVotingPower uint64
}

// NewValidatorVerifier builds a verifier whose quorum is strictly more than
// two thirds of the total voting power.
func NewValidatorVerifier(infos []ValidatorConsensusInfo) (*ValidatorVerifier, error) {
	if len(infos) == 0 {
		return nil, ErrEmptyValidatorSet
	}

	validators := make([]ValidatorConsensusInfo, len(infos))
	copy(validators, infos)
	sort.Slice(validators, func(i, j int) bool {
		return bytes.Compare(validators[i].Address[:], validators[j].Address[:]) < 0
	})

	v := &ValidatorVerifier{
		validators: validators,
		index:      make(map[Address]int, len(validators)),
	}
	for i, val := range validators {
		if _, ok := v.index[val.Address]; ok {
			return nil, fmt.Errorf("duplicate validator %v", val.Address)
		}
		if val.VotingPower == 0 {
			return nil, fmt.Errorf("validator %v has no voting power", val.Address)
		}
		if len(val.PubKey) != ed25519.PubKeySize {
			return nil, fmt.Errorf("validator %v has a malformed public key", val.Address)
		}
		if val.VotingPower > math.MaxUint64-v.totalVotingPower {
			return nil, errors.New("total voting power overflows")
		}
		v.index[val.Address] = i
		v.totalVotingPower += val.VotingPower
	}

	// floor(2t/3) + 1 without overflowing 2t
	t := v.totalVotingPower
	v.quorumVotingPower = t/3*2 + (t%3)*2/3 + 1

	return v, nil
}

// Validators returns a copy of the validators ordered by address.
func (v *ValidatorVerifier) Validators() []ValidatorConsensusInfo {
	out := make([]ValidatorConsensusInfo, len(v.validators))
	copy(out, v.validators)
	return out
}

func (v *ValidatorVerifier) Len() int { return len(v.validators) }

func (v *ValidatorVerifier) TotalVotingPower() uint64 { return v.totalVotingPower }

func (v *ValidatorVerifier) QuorumVotingPower() uint64 { return v.quorumVotingPower }

// VotingPower returns the voting power of addr, if it is a validator.
func (v *ValidatorVerifier) VotingPower(addr Address) (uint64, bool) {
	i, ok := v.index[addr]
	if !ok {
		return 0, false
	}
	return v.validators[i].VotingPower, true
}

// CheckVotingPower sums the voting power of authors and fails unless it
// reaches the quorum. Unknown authors are an error.
func (v *ValidatorVerifier) CheckVotingPower(authors []Address) error {
	var tallied uint64
	for _, author := range authors {
		power, ok := v.VotingPower(author)
		if !ok {
			return ErrUnknownAuthor{Author: author}
		}
		tallied += power
	}
	if tallied < v.quorumVotingPower {
		return ErrTooLittleVotingPower{Got: tallied, Needed: v.quorumVotingPower}
	}
	return nil
}

// VerifySignatures checks that signatures over msg come from a quorum of
// validators and that every one of them is valid.
func (v *ValidatorVerifier) VerifySignatures(msg []byte, signatures map[Address][]byte) error {
	if len(signatures) > len(v.validators) {
		return ErrTooManySignatures{Got: len(signatures), Max: len(v.validators)}
	}

	authors := make([]Address, 0, len(signatures))
	for author := range signatures {
		authors = append(authors, author)
	}
	sort.Slice(authors, func(i, j int) bool {
		return bytes.Compare(authors[i][:], authors[j][:]) < 0
	})

	if err := v.CheckVotingPower(authors); err != nil {
		return err
	}

	if len(authors) < batchVerifyThreshold {
		for _, author := range authors {
			val := v.validators[v.index[author]]
			if !val.PubKey.VerifySignature(msg, signatures[author]) {
				return ErrInvalidSignature{Author: author}
			}
		}
		return nil
	}

	bv := ed25519.NewBatchVerifier()
	for _, author := range authors {
		val := v.validators[v.index[author]]
		if err := bv.Add(val.PubKey, msg, signatures[author]); err != nil {
			return ErrInvalidSignature{Author: author}
		}
	}
	if ok, valid := bv.Verify(); !ok {
		for i, isValid := range valid {
			if !isValid {
				return ErrInvalidSignature{Author: authors[i]}
			}
		}
		return errors.New("batch signature verification failed")
	}
	return nil
}

// Equal compares validator sets including voting powers.
func (v *ValidatorVerifier) Equal(other *ValidatorVerifier) bool {
	if v == nil || other == nil {
		return v == other
	}
	if len(v.validators) != len(other.validators) {
		return false
	}
	for i, val := range v.validators {
		o := other.validators[i]
		if val.Address != o.Address || val.VotingPower != o.VotingPower || !val.PubKey.Equals(o.PubKey) {
			return false
		}
	}
	return true
}

func (v *ValidatorVerifier) String() string {
	var sb strings.Builder
	sb.WriteString("ValidatorVerifier{")
	for i, val := range v.validators {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%v:%d", val.Address, val.VotingPower)
	}
	fmt.Fprintf(&sb, " quorum:%d}", v.quorumVotingPower)
	return sb.String()
}

func (v *ValidatorVerifier) encode(e *encoder) {
	e.repeated(len(v.validators), func(i int, e *encoder) {
		val := v.validators[i]
		e.bytes(val.Address[:])
		e.bytes(val.PubKey)
		e.uint64(val.VotingPower)
	})
}

func decodeValidatorVerifier(d *decoder) *ValidatorVerifier {
	var infos []ValidatorConsensusInfo
	d.repeated(func(d *decoder) {
		addrBz := d.bytes()
		pkBz := d.bytes()
		power := d.uint64()
		if d.err != nil {
			return
		}
		addr, err := addressFromBytes(addrBz)
		if err != nil {
			d.failf("validator address: %w", err)
			return
		}
		pk, err := ed25519.PubKeyFromBytes(pkBz)
		if err != nil {
			d.failf("validator %v: %w", addr, err)
			return
		}
		infos = append(infos, ValidatorConsensusInfo{Address: addr, PubKey: pk, VotingPower: power})
	})
	if d.err != nil {
		return nil
	}
	v, err := NewValidatorVerifier(infos)
	if err != nil {
		d.failf("validator set: %w", err)
		return nil
	}
	return v
}
