package light_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlight/ledgerlight/internal/test/factory"
	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/light"
	"github.com/ledgerlight/ledgerlight/light/store"
	"github.com/ledgerlight/ledgerlight/rpc/client/mock"
	"github.com/ledgerlight/ledgerlight/rpc/jsonrpc/server"
	"github.com/ledgerlight/ledgerlight/types"
)

func TestHTTPClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chain := newChain()
	chain.Reconfigure(factory.ValidatorKeys(2, 4))
	chain.CommitBlock()

	srv := httptest.NewServer(server.NewJSONRPCHandler(mock.New(chain), log.TestingLogger()))
	defer srv.Close()

	storage := store.NewMemStorage()
	c, err := light.NewHTTPClient(
		srv.URL,
		types.NewWaypointOnlyState(chain.GenesisWaypoint()),
		storage,
		light.Logger(log.TestingLogger()),
		light.ChainID(factory.DefaultChainID),
	)
	require.NoError(t, err)
	require.NoError(t, c.Sync(ctx))
	assert.Equal(t, chain.Latest().Header.Version, c.Version())
	assert.Equal(t, chain.Waypoint(1), c.Waypoint())

	account, err := c.GetAccount(ctx, bob.Address)
	require.NoError(t, err)
	require.NotNil(t, account.Value)
	assert.Equal(t, chain.Latest().Header.Version, account.State.Version)

	v := uint64(4)
	metadata, err := c.GetMetadataByVersion(ctx, v)
	require.NoError(t, err)
	want, err := chain.Ledger().Metadata(&v)
	require.NoError(t, err)
	assert.Equal(t, want, metadata.Value)

	restored, err := light.NewHTTPClientFromTrustedStore(srv.URL, storage)
	require.NoError(t, err)
	assert.Equal(t, c.Version(), restored.Version())
}
