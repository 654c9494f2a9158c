package commands

import (
	"github.com/spf13/cobra"

	"github.com/ledgerlight/ledgerlight/config"
	"github.com/ledgerlight/ledgerlight/libs/log"
	tmos "github.com/ledgerlight/ledgerlight/libs/os"
)

// MakeInitCommand returns the command that writes config.toml under the
// home directory.
func MakeInitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the ledgerlight home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := config.ConfigFile(conf.RootDir)
			if tmos.FileExists(configFile) {
				logger.Info("Found config file", "path", configFile)
				return nil
			}
			if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
				return err
			}
			logger.Info("Generated config file", "path", configFile)
			return nil
		},
	}

	cmd.Flags().String("light.waypoint", conf.Light.Waypoint, "waypoint to start from (version:epoch:digest)")
	cmd.Flags().Uint8("light.chain-id", conf.Light.ChainID, "chain id the server must report (0 - not checked)")
	cmd.Flags().String("db-backend", conf.DBBackend, "storage backend for the trusted state (file | goleveldb | memdb)")
	return cmd
}
