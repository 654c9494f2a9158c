package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlight/ledgerlight/version"
)

// VersionCmd prints the version and exits.
var VersionCmd *cobra.Command = func() *cobra.Command {
	verbose := false
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return nil
			}

			bs, err := json.MarshalIndent(struct {
				LedgerLight string `json:"ledgerlight"`
				Protocol    string `json:"protocol"`
				GitCommit   string `json:"git_commit,omitempty"`
			}{
				LedgerLight: version.Version,
				Protocol:    version.ProtocolSemVer,
				GitCommit:   version.GitCommit,
			}, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(bs))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show protocol and git commit")
	return cmd
}()
