package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledgerlight/ledgerlight/cmd/ledgerlight/commands"
	"github.com/ledgerlight/ledgerlight/config"
	"github.com/ledgerlight/ledgerlight/libs/cli"
	"github.com/ledgerlight/ledgerlight/libs/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conf := config.DefaultConfig()

	logger := log.MustNewDefaultLogger(conf.LogFormat, conf.LogLevel)

	rcmd := commands.RootCommand(conf, logger)
	rcmd.AddCommand(
		commands.MakeInitCommand(conf, logger),
		commands.MakeSyncCommand(conf, logger),
		commands.MakeStatusCommand(conf, logger),
		commands.MakeNetworkStatusCommand(conf, logger),
		commands.MakeMetadataCommand(conf, logger),
		commands.MakeAccountCommand(conf, logger),
		commands.MakeAccountTransactionsCommand(conf, logger),
		commands.MakeTransactionsCommand(conf, logger),
		commands.MakeEventsCommand(conf, logger),
		commands.MakeCurrenciesCommand(conf, logger),
		commands.MakeSubmitCommand(conf, logger),
		commands.MakeStartCommand(conf, logger),
		commands.VersionCmd,
	)

	if err := cli.RunWithTrace(ctx, rcmd); err != nil {
		stop()
		os.Exit(1)
	}
}
