package dns

import (
	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/dns/services"

	"github.com/spf13/cobra"
)

// NewCommand returns the top-level "dns" Cobra command with all subcommands attached.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Inspect and register DNS records",
		Long: `Inspect DNS records and register the CNAME a provisioning run would
create. The provider comes from DNS_PROVIDER or 'hzdeploy config set
dns-provider', its credentials from DNS_API_KEY/DNS_API_SECRET or the
keychain.`,
	}

	cmd.AddCommand(RecordsCommand())
	cmd.AddCommand(CNAMECommand())

	return cmd
}

func newDNSService() (*services.Service, error) {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cmdutil.DNS(cfg)
}
