package config

import (
	"fmt"
	"slices"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/config"
	dnsproviders "nathanbeddoewebdev/hzdeploy/internal/dns/providers"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/util"

	"github.com/spf13/cobra"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a preference value",
		Long: "Set a persistent preference. An empty value clears it.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  hzdeploy config set server-type cx32\n" +
			"  hzdeploy config set dns-provider cloudflare",
		Args: cobra.ExactArgs(2),
		RunE: runSet,
	}

	return cmd
}

// normalizers rewrite a value before it is validated and saved. Keys not
// present keep the trimmed value.
var normalizers = map[string]func(string) string{
	"dns-provider": util.NormalizeKey,
}

// validators maps key names to optional pre-save validation functions.
// Keys not present in this map have no extra validation.
var validators = map[string]func(value string) error{
	"dns-provider": validateDNSProvider,
	"remote-user":  validateRemoteUser,
}

func runSet(cmd *cobra.Command, args []string) error {
	spec, err := lookupKey(args[0])
	if err != nil {
		return err
	}

	value := strings.TrimSpace(args[1])
	if normalize, ok := normalizers[spec.Name]; ok {
		value = normalize(value)
	}
	if validate, ok := validators[spec.Name]; ok && value != "" {
		if err := validate(value); err != nil {
			return err
		}
	}

	prefs, err := config.LoadPreferences()
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	spec.Set(prefs, value)
	if err := prefs.Save(); err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", spec.Name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
	}
	return nil
}

// validateDNSProvider checks that the given name is a registered DNS provider.
func validateDNSProvider(name string) error {
	known := dnsproviders.List()
	if slices.Contains(known, name) {
		return nil
	}
	return fmt.Errorf("%w: unknown DNS provider %q (registered: %s)", domain.ErrInvalidInput, name, strings.Join(known, ", "))
}

func validateRemoteUser(name string) error {
	if name == "root" {
		return fmt.Errorf("%w: remote-user must not be root, root logins are disabled on new servers", domain.ErrInvalidInput)
	}
	return nil
}
