package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerlight/ledgerlight/config"
	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/light"
	"github.com/ledgerlight/ledgerlight/rpc/coretypes"
	"github.com/ledgerlight/ledgerlight/types"
)

// withClient runs fn against a light client built from conf and releases
// the client's storage afterwards.
func withClient(
	ctx context.Context,
	conf *config.Config,
	logger log.Logger,
	fn func(context.Context, *light.Client) error,
) (err error) {
	c, closer, err := newLightClient(conf, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); err == nil {
			err = cerr
		}
	}()
	return fn(ctx, c)
}

// makeQueryCommand returns a command printing the verified response of
// query together with the state it was verified against.
func makeQueryCommand[T any](
	conf *config.Config,
	logger log.Logger,
	cmd *cobra.Command,
	query func(context.Context, *light.Client, []string) (coretypes.Response[T], error),
) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), conf, logger, func(ctx context.Context, c *light.Client) error {
			resp, err := query(ctx, c, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result{Result: resp.Value, State: resp.State})
		})
	}
	return cmd
}

type trustedStateView struct {
	Version  uint64         `json:"version"`
	Epoch    uint64         `json:"epoch"`
	Waypoint types.Waypoint `json:"waypoint"`
	Verified bool           `json:"verified"`
}

func newTrustedStateView(s types.TrustedState) trustedStateView {
	return trustedStateView{
		Version:  s.Version(),
		Epoch:    s.Epoch(),
		Waypoint: s.Waypoint(),
		Verified: s.IsVerified(),
	}
}

// MakeSyncCommand returns the command that syncs the trusted state to the
// server's latest version.
func MakeSyncCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	oneStep := false
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Verify and store the server's latest state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), conf, logger, func(ctx context.Context, c *light.Client) error {
				if oneStep {
					if _, err := c.SyncOneStep(ctx); err != nil {
						return err
					}
				} else if err := c.Sync(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), newTrustedStateView(c.TrustedState()))
			})
		},
	}
	cmd.Flags().BoolVar(&oneStep, "one-step", false, "make a single state proof request, even if the server is further ahead")
	return cmd
}

// MakeStatusCommand returns the command that prints the stored trusted
// state. It does not contact the server.
func MakeStatusCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the trusted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), conf, logger, func(_ context.Context, c *light.Client) error {
				return printJSON(cmd.OutOrStdout(), newTrustedStateView(c.TrustedState()))
			})
		},
	}
}

// MakeNetworkStatusCommand returns the command that prints the number of
// peers the server reports.
func MakeNetworkStatusCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return makeQueryCommand(conf, logger, &cobra.Command{
		Use:   "network-status",
		Short: "Show the number of peers of the server (unverified)",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, c *light.Client, _ []string) (coretypes.Response[uint64], error) {
		return c.GetNetworkStatus(ctx)
	})
}

// MakeMetadataCommand returns the command that prints the ledger metadata.
func MakeMetadataCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var ver uint64
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Show the verified ledger metadata",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Uint64Var(&ver, "version", 0, "historical version (0 - latest)")
	return makeQueryCommand(conf, logger, cmd,
		func(ctx context.Context, c *light.Client, _ []string) (coretypes.Response[coretypes.MetadataView], error) {
			if ver > 0 {
				return c.GetMetadataByVersion(ctx, ver)
			}
			return c.GetMetadata(ctx)
		})
}

// MakeAccountCommand returns the command that prints an account.
func MakeAccountCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var ver uint64
	cmd := &cobra.Command{
		Use:   "account [address]",
		Short: "Show a verified account",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Uint64Var(&ver, "version", 0, "historical version (0 - latest)")
	return makeQueryCommand(conf, logger, cmd,
		func(ctx context.Context, c *light.Client, args []string) (coretypes.Response[*coretypes.AccountView], error) {
			addr, err := types.AddressFromHex(args[0])
			if err != nil {
				return coretypes.Response[*coretypes.AccountView]{}, fmt.Errorf("invalid address: %w", err)
			}
			if ver > 0 {
				return c.GetAccountByVersion(ctx, addr, ver)
			}
			return c.GetAccount(ctx, addr)
		})
}

// MakeTransactionsCommand returns the command that prints a range of
// transactions.
func MakeTransactionsCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var (
		start, limit  uint64
		includeEvents bool
	)
	cmd := &cobra.Command{
		Use:   "txns",
		Short: "Show verified transactions by version",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Uint64Var(&start, "start", 0, "first version")
	cmd.Flags().Uint64Var(&limit, "limit", 10, "maximum number of transactions")
	cmd.Flags().BoolVar(&includeEvents, "include-events", false, "include the emitted events")
	return makeQueryCommand(conf, logger, cmd,
		func(ctx context.Context, c *light.Client, _ []string) (coretypes.Response[[]coretypes.TransactionView], error) {
			return c.GetTransactions(ctx, start, limit, includeEvents)
		})
}

// MakeAccountTransactionsCommand returns the command that prints the
// transactions sent by an account.
func MakeAccountTransactionsCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var (
		start, limit  uint64
		includeEvents bool
	)
	cmd := &cobra.Command{
		Use:   "account-txns [address]",
		Short: "Show verified transactions sent by an account",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Uint64Var(&start, "start", 0, "first sequence number")
	cmd.Flags().Uint64Var(&limit, "limit", 10, "maximum number of transactions")
	cmd.Flags().BoolVar(&includeEvents, "include-events", false, "include the emitted events")
	return makeQueryCommand(conf, logger, cmd,
		func(ctx context.Context, c *light.Client, args []string) (coretypes.Response[[]coretypes.TransactionView], error) {
			addr, err := types.AddressFromHex(args[0])
			if err != nil {
				return coretypes.Response[[]coretypes.TransactionView]{}, fmt.Errorf("invalid address: %w", err)
			}
			return c.GetAccountTransactions(ctx, addr, start, limit, includeEvents)
		})
}

// MakeEventsCommand returns the command that prints the events of a stream.
func MakeEventsCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var start, limit uint64
	cmd := &cobra.Command{
		Use:   "events [key]",
		Short: "Show verified events of an event stream",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Uint64Var(&start, "start", 0, "first sequence number")
	cmd.Flags().Uint64Var(&limit, "limit", 10, "maximum number of events")
	return makeQueryCommand(conf, logger, cmd,
		func(ctx context.Context, c *light.Client, args []string) (coretypes.Response[[]coretypes.EventView], error) {
			key, err := types.EventKeyFromHex(args[0])
			if err != nil {
				return coretypes.Response[[]coretypes.EventView]{}, fmt.Errorf("invalid event key: %w", err)
			}
			return c.GetEvents(ctx, key, start, limit)
		})
}

// MakeCurrenciesCommand returns the command that prints the currencies
// registered on chain.
func MakeCurrenciesCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return makeQueryCommand(conf, logger, &cobra.Command{
		Use:   "currencies",
		Short: "Show the verified currency list",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, c *light.Client, _ []string) (coretypes.Response[[]coretypes.CurrencyInfoView], error) {
		return c.GetCurrencies(ctx)
	})
}

// MakeSubmitCommand returns the command that submits a hex encoded signed
// transaction and optionally waits for it.
func MakeSubmitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	wait := false
	cmd := &cobra.Command{
		Use:   "submit [txn-hex]",
		Short: "Submit a signed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bz, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return fmt.Errorf("invalid transaction hex: %w", err)
			}
			txn, err := types.UnmarshalTransaction(bz)
			if err != nil {
				return err
			}

			return withClient(cmd.Context(), conf, logger, func(ctx context.Context, c *light.Client) error {
				resp, err := c.Submit(ctx, txn)
				if err != nil {
					return err
				}
				if !wait {
					return printJSON(cmd.OutOrStdout(), result{Result: txn.Hash(), State: resp.State})
				}

				committed, err := c.WaitForSignedTransaction(ctx, txn, conf.RPC.Timeout, 0)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result{Result: committed.Value, State: committed.State})
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the transaction is committed and executed")
	return cmd
}
