package light

import (
	"github.com/ledgerlight/ledgerlight/light/store"
	"github.com/ledgerlight/ledgerlight/rpc/client/http"
	"github.com/ledgerlight/ledgerlight/types"
)

// NewHTTPClient initiates an instance of a light client talking JSON-RPC
// over HTTP to the full node at remote, starting from trustedState.
//
// See all Option(s) for the additional configuration.
// See NewClient.
func NewHTTPClient(
	remote string,
	trustedState types.TrustedState,
	storage store.Storage,
	options ...Option) (*Client, error) {

	transport, err := http.New(remote)
	if err != nil {
		return nil, err
	}
	return NewClient(transport, trustedState, storage, options...)
}

// NewHTTPClientFromTrustedStore initiates an instance of a light client
// talking to remote from the state persisted in storage.
//
// See NewClientFromTrustedStore.
func NewHTTPClientFromTrustedStore(
	remote string,
	storage store.Storage,
	options ...Option) (*Client, error) {

	transport, err := http.New(remote)
	if err != nil {
		return nil, err
	}
	return NewClientFromTrustedStore(transport, storage, options...)
}
