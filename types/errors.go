package types

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
)

var (
	// ErrEmptyValidatorSet is returned when building a verifier without validators.
	ErrEmptyValidatorSet = errors.New("validator set is empty")
	// ErrNotEpochBoundary is returned when an epoch change is expected but the
	// header carries no next epoch state.
	ErrNotEpochBoundary = errors.New("ledger header does not end an epoch")
)

// ErrTooLittleVotingPower is returned when the signers of a header hold less
// than a quorum of voting power.
type ErrTooLittleVotingPower struct {
	Got    uint64
	Needed uint64
}

func (e ErrTooLittleVotingPower) Error() string {
	return fmt.Sprintf("insufficient voting power: got %d, needed at least %d", e.Got, e.Needed)
}

// ErrUnknownAuthor is returned for a signature by an address outside the
// validator set.
type ErrUnknownAuthor struct {
	Author Address
}

func (e ErrUnknownAuthor) Error() string {
	return fmt.Sprintf("signature by %v, which is not a validator of this epoch", e.Author)
}

// ErrTooManySignatures is returned when a header carries more signatures than
// there are validators.
type ErrTooManySignatures struct {
	Got int
	Max int
}

func (e ErrTooManySignatures) Error() string {
	return fmt.Sprintf("too many signatures: got %d, validator set has %d members", e.Got, e.Max)
}

// ErrInvalidSignature is returned when a validator's signature does not verify.
type ErrInvalidSignature struct {
	Author Address
}

func (e ErrInvalidSignature) Error() string {
	return fmt.Sprintf("invalid signature by %v", e.Author)
}

// ErrEpochMismatch is returned when a header is checked against the validator
// set of another epoch.
type ErrEpochMismatch struct {
	Expected uint64
	Got      uint64
}

func (e ErrEpochMismatch) Error() string {
	return fmt.Sprintf("epoch mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrInvalidWaypoint means the data presented as the waypoint's ledger
// header does not match the waypoint.
type ErrInvalidWaypoint struct {
	Waypoint Waypoint
	Reason   error
}

func (e ErrInvalidWaypoint) Error() string {
	return fmt.Sprintf("waypoint %v does not match: %v", e.Waypoint, e.Reason)
}

func (e ErrInvalidWaypoint) Unwrap() error { return e.Reason }

// ErrStaleStateProof is returned when a state proof targets a version older
// than the one trusted when it was requested.
type ErrStaleStateProof struct {
	Trusted uint64
	Target  uint64
}

func (e ErrStaleStateProof) Error() string {
	return fmt.Sprintf("stale state proof: target version %d is older than trusted version %d", e.Target, e.Trusted)
}

// ErrAccumulatorMismatch is returned when an extended accumulator summary
// does not reproduce the root hash of the header it was extended to.
type ErrAccumulatorMismatch struct {
	Version  uint64
	Expected crypto.HashValue
	Computed crypto.HashValue
}

func (e ErrAccumulatorMismatch) Error() string {
	return fmt.Sprintf("accumulator root at version %d: expected %v, computed %v", e.Version, e.Expected, e.Computed)
}
