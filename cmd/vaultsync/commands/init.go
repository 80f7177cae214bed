package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/vaultsync/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration file with the default settings.

By default the file is created at ./config.yaml. Use --config to pick
another path.

Examples:
  # Write ./config.yaml
  vaultsync init

  # Write to a custom path
  vaultsync init --config /etc/vaultsync/config.yaml

  # Overwrite an existing file
  vaultsync init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = "config.yaml"
	}

	if err := config.InitConfig(path, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	cmd.Printf("Configuration file created at: %s\n", path)
	cmd.Println("\nNext steps:")
	cmd.Println("  1. Edit the file to customize your setup")
	cmd.Println("  2. Create an account: vaultsync user create <name> <email> <password>")
	cmd.Printf("  3. Start the server: vaultsync serve --config %s\n", path)
	return nil
}
