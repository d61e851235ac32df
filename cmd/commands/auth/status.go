package auth

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/config"
	"nathanbeddoewebdev/hzdeploy/internal/services/auth"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/spf13/cobra"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which credentials are configured",
		Long: `Show, for every credential entry, whether it is set in the environment,
stored in the keychain, or missing.

Example:
  hzdeploy auth status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := cmdutil.CredentialStore()
			p := ui.NewPrinter(cmd.OutOrStdout())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ENTRY\tSTATE")
			for _, e := range config.CredentialEntries {
				fmt.Fprintf(w, "%s\t%s\n", e.Name, credentialState(p, store, e))
			}
			return w.Flush()
		},
	}

	return cmd
}

// credentialState reports where a credential would be read from. The
// environment wins over the keychain.
func credentialState(p *ui.Printer, store auth.Store, e config.CredentialEntry) string {
	_, source, err := auth.Resolve(store, e.AuthEntry(), cmdutil.LookupEnv)
	switch {
	case err != nil:
		return fmt.Sprintf("%s (%v)", p.Status("error"), err)
	case source == auth.SourceEnv:
		return p.Accent(source.String() + " (" + e.Env + ")")
	case source == auth.SourceStore:
		return p.Accent(source.String())
	default:
		return p.Muted(source.String())
	}
}

func LogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <entry>",
		Short: "Remove a stored API credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := lookupEntry(args[0])
			if err != nil {
				return err
			}
			err = cmdutil.CredentialStore().DeleteToken(entry.Name)
			switch {
			case errors.Is(err, auth.ErrTokenNotFound):
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not stored\n", entry.Name)
				return nil
			case err != nil:
				return fmt.Errorf("remove %s: %w", entry.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", entry.Name)
			return nil
		},
	}
}
