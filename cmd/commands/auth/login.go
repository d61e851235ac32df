package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <entry>",
		Short: "Store an API credential",
		Long: `Store an API credential in the local keychain.

Without --token the value is read from standard input, hidden when it is
a terminal.

Examples:
  hzdeploy auth login hetzner
  hzdeploy auth login porkbun-apikey --token pk1_...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := lookupEntry(args[0])
			if err != nil {
				return err
			}

			token, _ := cmd.Flags().GetString("token")
			token = strings.TrimSpace(token)
			if token == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s: ", entry.Description)
				token, err = readSecret(cmd.InOrStdin())
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			if token == "" {
				return fmt.Errorf("%w: token cannot be empty", domain.ErrInvalidInput)
			}

			if err := cmdutil.CredentialStore().SetToken(entry.Name, token); err != nil {
				return fmt.Errorf("store %s: %w", entry.Name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", entry.Name)
			return nil
		},
	}

	cmd.Flags().String("token", "", "Credential value (optional, overrides prompt)")

	return cmd
}

// readSecret reads one line from r without echo when r is a terminal.
func readSecret(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
