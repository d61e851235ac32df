package config

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/hzdeploy/internal/config"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/ui"
	"nathanbeddoewebdev/hzdeploy/internal/util"

	"github.com/spf13/cobra"
)

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a preference value",
		Long: "Print a single persisted preference.\n\n" +
			config.KeysHelp() +
			"\nExample:\n" +
			"  hzdeploy config get server-type",
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	spec, err := lookupKey(args[0])
	if err != nil {
		return err
	}

	prefs, err := config.LoadPreferences()
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	value := spec.Get(prefs)
	if value == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "not set")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

// ListCommand returns the "config list" command.
func ListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := config.LoadPreferences()
			if err != nil {
				return fmt.Errorf("failed to load preferences: %w", err)
			}

			p := ui.NewPrinter(cmd.OutOrStdout())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE\tOVERRIDDEN BY")
			for _, spec := range config.Keys {
				value := spec.Get(prefs)
				if value == "" {
					value = p.Muted("(not set)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, value, spec.Env)
			}
			return w.Flush()
		},
	}
}

func lookupKey(name string) (*config.KeySpec, error) {
	spec := config.Lookup(util.NormalizeKey(name))
	if spec == nil {
		return nil, fmt.Errorf("%w: unknown configuration key %q (valid: %s)", domain.ErrInvalidInput, name, strings.Join(config.KeyNames(), ", "))
	}
	return spec, nil
}
