package commands

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("vaultsync %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built:  %s\n", Date)
	},
}
