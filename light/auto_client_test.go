package light_test

import (
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlight/ledgerlight/light"
	"github.com/ledgerlight/ledgerlight/rpc/client/mock"
)

func TestAutoClient(t *testing.T) {
	defer leaktest.Check(t)()

	chain := newChain()
	c := newClient(t, chain, mock.New(chain))
	auto := light.NewAutoClient(c, 10*time.Millisecond)
	defer auto.Stop()

	select {
	case state := <-auto.TrustedStates():
		assert.True(t, state.IsVerified())
		assert.Equal(t, chain.Latest().Header.Version, state.Version())
	case err := <-auto.Errs():
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trusted state")
	}

	lhs := chain.CommitBlocks(2)
	select {
	case state := <-auto.TrustedStates():
		assert.Equal(t, lhs.Header.Version, state.Version())
	case err := <-auto.Errs():
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a trusted state")
	}
}

func TestAutoClientReportsErrors(t *testing.T) {
	defer leaktest.Check(t)()

	chain := newChain()
	transport := mock.New(chain)
	errUnreachable := errors.New("unreachable")
	transport.Intercept(mock.FailWith(errUnreachable))

	auto := light.NewAutoClient(newClient(t, chain, transport), 10*time.Millisecond)
	defer auto.Stop()

	select {
	case err := <-auto.Errs():
		assert.ErrorIs(t, err, errUnreachable)
	case <-auto.TrustedStates():
		t.Fatal("nothing can be trusted")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error")
	}
}

func TestAutoClientStopsWithoutReader(t *testing.T) {
	defer leaktest.Check(t)()

	chain := newChain()
	auto := light.NewAutoClient(newClient(t, chain, mock.New(chain)), time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	auto.Stop()
}
