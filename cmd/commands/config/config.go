package config

import (
	"nathanbeddoewebdev/hzdeploy/internal/config"

	"github.com/spf13/cobra"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hzdeploy preferences",
		Long: "View and modify persistent hzdeploy preferences.\n\n" +
			"Preferences are stored at ~/.config/hzdeploy/config.json and sit below\n" +
			"environment variables: a set variable always wins.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())
	cmd.AddCommand(ListCommand())

	return cmd
}
