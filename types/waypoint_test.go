package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlight/ledgerlight/internal/test/factory"
	"github.com/ledgerlight/ledgerlight/types"
)

func TestWaypointParse(t *testing.T) {
	chain := factory.NewChain(4)
	w := chain.GenesisWaypoint()

	parsed, err := types.ParseWaypoint(w.String())
	require.NoError(t, err)
	assert.Equal(t, w, parsed)

	parsed, err = types.ParseWaypoint(" " + w.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, w, parsed)

	for _, s := range []string{
		"",
		"0:0",
		"x:0:" + w.Digest.String(),
		"0:x:" + w.Digest.String(),
		"0:0:abcd",
		"0:0:" + w.Digest.String() + ":0",
	} {
		_, err := types.ParseWaypoint(s)
		assert.Error(t, err, s)
	}
}

func TestWaypointJSON(t *testing.T) {
	w := factory.NewChain(4).GenesisWaypoint()

	bz, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Equal(t, `"`+w.String()+`"`, string(bz))

	var decoded types.Waypoint
	require.NoError(t, json.Unmarshal(bz, &decoded))
	assert.Equal(t, w, decoded)
}

func TestWaypointVerify(t *testing.T) {
	chain := factory.NewChain(4)
	chain.CommitBlock()
	chain.Reconfigure(factory.ValidatorKeys(2, 4))

	boundary := chain.EpochEnding(1).Header
	w, err := types.NewWaypoint(&boundary)
	require.NoError(t, err)
	assert.Equal(t, chain.Waypoint(1), w)
	assert.Equal(t, boundary.Version, w.Version)
	assert.Equal(t, uint64(1), w.Epoch)
	require.NoError(t, w.Verify(&boundary))

	// not part of the digest
	other := boundary
	other.ConsensusDataHash[0] ^= 0xff
	assert.NoError(t, w.Verify(&other))

	tampered := boundary
	tampered.TimestampUsecs++
	assert.ErrorAs(t, w.Verify(&tampered), &types.ErrInvalidWaypoint{})

	tampered = boundary
	tampered.Version++
	assert.ErrorAs(t, w.Verify(&tampered), &types.ErrInvalidWaypoint{})

	tampered = boundary
	tampered.NextEpochState = chain.EpochEnding(0).Header.NextEpochState
	assert.ErrorAs(t, w.Verify(&tampered), &types.ErrInvalidWaypoint{})

	assert.ErrorAs(t, chain.GenesisWaypoint().Verify(&boundary), &types.ErrInvalidWaypoint{})

	chain.CommitBlock()
	_, err = types.NewWaypoint(&chain.Latest().Header)
	assert.ErrorIs(t, err, types.ErrNotEpochBoundary)
}
