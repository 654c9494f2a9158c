package commands

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerlight/ledgerlight/config"
	"github.com/ledgerlight/ledgerlight/libs/log"
	"github.com/ledgerlight/ledgerlight/light"
	rpcserver "github.com/ledgerlight/ledgerlight/rpc/jsonrpc/server"
)

// MakeStartCommand returns the command that keeps the trusted state synced
// until interrupted.
func MakeStartCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Keep the trusted state synced with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := light.NopMetrics()
			if conf.Instrumentation.Prometheus {
				metrics = light.PrometheusMetrics(conf.Instrumentation.Namespace)
			}

			c, closer, err := newLightClient(conf, logger, light.WithMetrics(metrics))
			if err != nil {
				return err
			}
			defer closer()

			logger.Info("Starting light client",
				"remote", conf.RPC.Remote, "trusted", c.TrustedState(), "period", conf.Light.UpdatePeriod)

			g, ctx := errgroup.WithContext(cmd.Context())
			if conf.Instrumentation.Prometheus {
				g.Go(func() error { return servePrometheus(ctx, conf.Instrumentation, logger) })
			}
			g.Go(func() error { return runAutoClient(ctx, c, conf.Light, logger) })
			return g.Wait()
		},
	}

	cmd.Flags().Duration("light.update-period", conf.Light.UpdatePeriod, "how often to sync")
	cmd.Flags().Bool("light.auto-sync-when-behind", conf.Light.AutoSyncWhenBehind, "sync instead of failing behind requests")
	cmd.Flags().Bool("instrumentation.prometheus", conf.Instrumentation.Prometheus, "serve Prometheus metrics")
	return cmd
}

func runAutoClient(ctx context.Context, c *light.Client, conf *config.LightConfig, logger log.Logger) error {
	auto := light.NewAutoClient(c, conf.UpdatePeriod)
	defer auto.Stop()

	for {
		select {
		case s := <-auto.TrustedStates():
			logger.Info("Trusted state updated", "version", s.Version(), "epoch", s.Epoch(), "waypoint", s.Waypoint())
		case err := <-auto.Errs():
			logger.Error("Sync failed", "err", err)
		case <-ctx.Done():
			logger.Info("Stopping light client")
			return nil
		}
	}
}

func servePrometheus(ctx context.Context, conf *config.InstrumentationConfig, logger log.Logger) error {
	listener, err := rpcserver.Listen(conf.PrometheusListenAddr, conf.MaxOpenConnections)
	if err != nil {
		return err
	}
	handler := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{MaxRequestsInFlight: conf.MaxOpenConnections},
		),
	)
	return rpcserver.Serve(ctx, listener, handler, logger.With("module", "prometheus"), rpcserver.DefaultConfig())
}
