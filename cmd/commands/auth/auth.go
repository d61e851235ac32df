package auth

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/config"
	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API credentials",
		Long: `Manage API credentials kept in the local keychain.

Environment variables always take precedence over stored credentials.
` + entriesHelp(),
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(StatusCommand())
	cmd.AddCommand(LogoutCommand())

	return cmd
}

func entriesHelp() string {
	var b strings.Builder
	b.WriteString("\nCredential entries:\n")
	for _, e := range config.CredentialEntries {
		fmt.Fprintf(&b, "  %-22s %s (overridden by %s)\n", e.Name, e.Description, e.Env)
	}
	return b.String()
}

func lookupEntry(name string) (*config.CredentialEntry, error) {
	e := config.LookupCredential(name)
	if e == nil {
		return nil, fmt.Errorf("%w: unknown credential %q (valid: %s)", domain.ErrInvalidInput, name, strings.Join(config.CredentialNames(), ", "))
	}
	return e, nil
}
