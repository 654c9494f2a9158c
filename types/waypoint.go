package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledgerlight/ledgerlight/crypto"
)

// Waypoint is a trusted checkpoint on an epoch boundary, supplied out of
// band. Epoch is the epoch the boundary header ends; Digest commits to the
// header, including the validator set of the next epoch.
type Waypoint struct {
	Version uint64
	Epoch   uint64
	Digest  crypto.HashValue
}

// NewWaypoint returns the waypoint of an epoch-boundary header.
func NewWaypoint(h *LedgerHeader) (Waypoint, error) {
	if !h.IsEpochBoundary() {
		return Waypoint{}, ErrNotEpochBoundary
	}
	return Waypoint{Version: h.Version, Epoch: h.Epoch, Digest: waypointDigest(h)}, nil
}

// waypointDigest leaves out the consensus data hash so that the waypoint of
// a header does not depend on which block certified it.
func waypointDigest(h *LedgerHeader) crypto.HashValue {
	bz := encode(func(e *encoder) {
		e.uint64(h.Version)
		e.hash(h.TransactionAccumulatorHash)
		e.uint64(h.Epoch)
		e.uint64(h.Round)
		e.uint64(h.TimestampUsecs)
		e.optional(h.NextEpochState != nil, func(e *encoder) { h.NextEpochState.encode(e) })
	})
	return crypto.HashOf(crypto.DomainWaypoint, bz)
}

// Verify checks that h is the header this waypoint was made from.
func (w Waypoint) Verify(h *LedgerHeader) error {
	switch {
	case h.Version != w.Version:
		return ErrInvalidWaypoint{Waypoint: w, Reason: fmt.Errorf("header is at version %d", h.Version)}
	case h.Epoch != w.Epoch:
		return ErrInvalidWaypoint{Waypoint: w, Reason: fmt.Errorf("header is in epoch %d", h.Epoch)}
	case !h.IsEpochBoundary():
		return ErrInvalidWaypoint{Waypoint: w, Reason: ErrNotEpochBoundary}
	}
	if digest := waypointDigest(h); digest != w.Digest {
		return ErrInvalidWaypoint{Waypoint: w, Reason: fmt.Errorf("header digest is %v", digest)}
	}
	return nil
}

func (w Waypoint) IsZero() bool { return w == Waypoint{} }

// String formats the waypoint as version:epoch:digest.
func (w Waypoint) String() string {
	return fmt.Sprintf("%d:%d:%x", w.Version, w.Epoch, w.Digest[:])
}

// ParseWaypoint parses the version:epoch:digest form.
func ParseWaypoint(s string) (Waypoint, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Waypoint{}, errors.New("waypoint must be formatted as version:epoch:digest")
	}
	version, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("invalid waypoint version: %w", err)
	}
	epoch, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Waypoint{}, fmt.Errorf("invalid waypoint epoch: %w", err)
	}
	digest, err := crypto.HashFromHex(parts[2])
	if err != nil {
		return Waypoint{}, fmt.Errorf("invalid waypoint digest: %w", err)
	}
	return Waypoint{Version: version, Epoch: epoch, Digest: digest}, nil
}

func (w Waypoint) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Waypoint) UnmarshalText(data []byte) error {
	parsed, err := ParseWaypoint(string(data))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func (w Waypoint) encode(e *encoder) {
	e.uint64(w.Version)
	e.uint64(w.Epoch)
	e.hash(w.Digest)
}

func decodeWaypoint(d *decoder) Waypoint {
	return Waypoint{Version: d.uint64(), Epoch: d.uint64(), Digest: d.hash()}
}
