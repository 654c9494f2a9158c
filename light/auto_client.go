package light

import (
	"context"
	"time"

	"github.com/ledgerlight/ledgerlight/types"
)

// AutoClient keeps a Client synced by calling Sync every period.
type AutoClient struct {
	base         *Client
	updatePeriod time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	trustedStates chan types.TrustedState
	errs          chan error
}

// NewAutoClient creates a new client and starts a polling goroutine.
func NewAutoClient(base *Client, updatePeriod time.Duration) *AutoClient {
	ctx, cancel := context.WithCancel(context.Background())
	c := &AutoClient{
		base:          base,
		updatePeriod:  updatePeriod,
		cancel:        cancel,
		done:          make(chan struct{}),
		trustedStates: make(chan types.TrustedState),
		errs:          make(chan error),
	}
	go c.autoUpdate(ctx)
	return c
}

// TrustedStates returns a channel onto which newly trusted states are
// posted.
func (c *AutoClient) TrustedStates() <-chan types.TrustedState {
	return c.trustedStates
}

// Errs returns a channel onto which sync errors are posted.
func (c *AutoClient) Errs() <-chan error {
	return c.errs
}

// Stop stops the client and waits for the polling goroutine to exit.
func (c *AutoClient) Stop() {
	c.cancel()
	<-c.done
}

func (c *AutoClient) autoUpdate(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.updatePeriod)
	defer ticker.Stop()

	last := c.base.TrustedState()
	for {
		select {
		case <-ticker.C:
			if err := c.base.Sync(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// try again after updatePeriod
				select {
				case c.errs <- err:
				case <-ctx.Done():
					return
				}
				continue
			}

			current := c.base.TrustedState()
			if !current.IsNewerThan(last) {
				continue
			}
			last = current
			select {
			case c.trustedStates <- current:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
