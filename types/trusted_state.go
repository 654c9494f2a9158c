package types

import (
	"errors"
	"fmt"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// TrustedState is what a light client trusts about the ledger. It has two
// forms: WaypointOnly, holding nothing but the waypoint the client was
// bootstrapped with, and Verified, holding the accumulator summary at the
// latest verified version and the validator set of the current epoch.
//
// TrustedState is an immutable value. VerifyAndRatchet computes successors;
// it never modifies the receiver.
type TrustedState struct {
	waypoint Waypoint

	// Set together, only in the Verified form.
	accumulator *TransactionAccumulatorSummary
	epochState  *EpochState
	headerHash  crypto.HashValue
}

// NewWaypointOnlyState returns the trusted state of a freshly bootstrapped
// client.
func NewWaypointOnlyState(w Waypoint) TrustedState {
	return TrustedState{waypoint: w}
}

// IsVerified reports whether the state holds a verified accumulator.
func (s TrustedState) IsVerified() bool { return s.accumulator != nil }

// Version is the latest trusted version.
func (s TrustedState) Version() uint64 {
	if s.accumulator != nil {
		return s.accumulator.Version()
	}
	return s.waypoint.Version
}

// Waypoint is the latest trusted epoch boundary.
func (s TrustedState) Waypoint() Waypoint { return s.waypoint }

// Accumulator is nil in the WaypointOnly form.
func (s TrustedState) Accumulator() *TransactionAccumulatorSummary { return s.accumulator }

// EpochState is nil in the WaypointOnly form.
func (s TrustedState) EpochState() *EpochState { return s.epochState }

// Epoch is the epoch whose validators verify the next headers.
func (s TrustedState) Epoch() uint64 {
	if s.epochState != nil {
		return s.epochState.Epoch
	}
	return s.waypoint.Epoch + 1
}

// IsNewerThan orders states for the forward-only ratchet: a higher version
// wins, and at equal versions a Verified state supersedes a WaypointOnly one.
func (s TrustedState) IsNewerThan(other TrustedState) bool {
	if s.Version() != other.Version() {
		return s.Version() > other.Version()
	}
	return s.IsVerified() && !other.IsVerified()
}

func (s TrustedState) Equal(other TrustedState) bool {
	return s.waypoint == other.waypoint &&
		s.headerHash == other.headerHash &&
		s.accumulator.Equal(other.accumulator) &&
		s.epochState.Equal(other.epochState)
}

func (s TrustedState) String() string {
	if !s.IsVerified() {
		return fmt.Sprintf("TrustedState{WaypointOnly %v}", s.waypoint)
	}
	return fmt.Sprintf("TrustedState{v%d e%d waypoint:%v}", s.Version(), s.epochState.Epoch, s.waypoint)
}

// TrustedStateChange is the outcome of verifying a state proof.
type TrustedStateChange struct {
	// NewState is nil when the proof moved nothing forward.
	NewState *TrustedState
	// LatestHeader is the verified target of the proof.
	LatestHeader *LedgerHeaderWithSignatures
	// EpochChanged is set when NewState trusts a new validator set.
	EpochChanged bool
}

func (c TrustedStateChange) IsChanged() bool { return c.NewState != nil }

// VerifyAndRatchet verifies proof against s and returns the state it leads
// to. From the WaypointOnly form initialAccumulator is required: the summary
// at the waypoint's version, built from a genesis consistency proof. Its
// root must match the waypoint header. It is ignored otherwise.
//
// Either the whole proof verifies and a successor is returned, or an error
// is returned and nothing is trusted.
func (s TrustedState) VerifyAndRatchet(
	proof *StateProof,
	initialAccumulator *TransactionAccumulatorSummary,
) (TrustedStateChange, error) {
	if err := proof.ValidateBasic(); err != nil {
		return TrustedStateChange{}, fmt.Errorf("malformed state proof: %w", err)
	}

	target := proof.Target
	if target.Header.Version < s.Version() {
		return TrustedStateChange{}, ErrStaleStateProof{Trusted: s.Version(), Target: target.Header.Version}
	}

	var (
		waypoint     = s.waypoint
		epochState   = s.epochState
		accumulator  = s.accumulator
		trustedHash  = s.headerHash
		changes      = proof.EpochChanges.LedgerInfoWithSigs
		epochChanged bool
	)

	if !s.IsVerified() {
		if initialAccumulator == nil {
			return TrustedStateChange{}, errors.New("verifying from a waypoint requires an initial accumulator summary")
		}

		// The waypoint header is either the first epoch change or, if the
		// server has no later epochs, the target itself.
		boundary := &target.Header
		if len(changes) > 0 {
			boundary = &changes[0].Header
			changes = changes[1:]
		}
		if err := s.waypoint.Verify(boundary); err != nil {
			return TrustedStateChange{}, err
		}
		if err := initialAccumulator.Verify(boundary); err != nil {
			return TrustedStateChange{}, ErrInvalidWaypoint{Waypoint: s.waypoint, Reason: err}
		}

		epochState = boundary.NextEpochState
		accumulator = initialAccumulator
		trustedHash = boundary.Hash()
		epochChanged = true
	}

	for _, lhs := range changes {
		if lhs.Header.Epoch < epochState.Epoch {
			// already trusted
			continue
		}
		if err := epochState.Verify(lhs); err != nil {
			return TrustedStateChange{}, fmt.Errorf("epoch change at version %d: %w", lhs.Header.Version, err)
		}
		epochState = lhs.Header.NextEpochState
		waypoint, _ = NewWaypoint(&lhs.Header)
		trustedHash = lhs.Header.Hash()
		epochChanged = true
	}

	if target.Header.Hash() != trustedHash {
		if err := epochState.Verify(target); err != nil {
			return TrustedStateChange{}, fmt.Errorf("target ledger header at version %d: %w", target.Header.Version, err)
		}
		if target.Header.IsEpochBoundary() {
			epochState = target.Header.NextEpochState
			waypoint, _ = NewWaypoint(&target.Header)
			epochChanged = true
		}
	}

	newAccumulator, err := accumulator.ExtendWithProof(proof.Consistency, &target.Header)
	if err != nil {
		return TrustedStateChange{}, fmt.Errorf("accumulator extension to version %d: %w", target.Header.Version, err)
	}

	change := TrustedStateChange{LatestHeader: target, EpochChanged: epochChanged}
	if s.IsVerified() && !epochChanged && target.Header.Version == s.Version() {
		return change, nil
	}

	change.NewState = &TrustedState{
		waypoint:    waypoint,
		accumulator: newAccumulator,
		epochState:  epochState,
		headerHash:  target.Header.Hash(),
	}
	return change, nil
}

// Marshal encodes the state for persistence.
func (s TrustedState) Marshal() []byte {
	return encode(func(e *encoder) {
		e.message(s.waypoint.encode)
		e.optional(s.IsVerified(), func(e *encoder) {
			e.message(s.accumulator.encode)
			e.message(s.epochState.encode)
			e.hash(s.headerHash)
		})
	})
}

// UnmarshalTrustedState decodes a persisted state.
func UnmarshalTrustedState(bz []byte) (TrustedState, error) {
	var s TrustedState
	err := decode(bz, func(d *decoder) {
		d.message(func(d *decoder) { s.waypoint = decodeWaypoint(d) })
		d.optional(func(d *decoder) {
			d.message(func(d *decoder) { s.accumulator = decodeAccumulatorSummary(d) })
			d.message(func(d *decoder) { s.epochState = decodeEpochState(d) })
			s.headerHash = d.hash()
		})
	})
	if err != nil {
		return TrustedState{}, fmt.Errorf("trusted state: %w", err)
	}
	return s, nil
}
