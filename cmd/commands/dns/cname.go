package dns

import (
	"fmt"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/config"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/spf13/cobra"
)

// CNAMECommand returns the "dns cname" subcommand.
func CNAMECommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cname",
		Short: "Register the configured CNAME record",
		Long: `Point DNS_RECORD_HOST.DNS_DOMAIN at DNS_RECORD_TARGET, the same record a
provisioning run registers. Use it to retry a DNS step that failed. An
existing record with the same target is left alone; one with another
target is reported and not changed.

Examples:
  hzdeploy dns cname
  hzdeploy dns cname --domain example.com --host app --target web-1.example.net`,
		Args: cobra.NoArgs,
		RunE: runCNAME,
	}

	cmd.Flags().String("domain", "", "Domain (overrides "+config.EnvDNSDomain+")")
	cmd.Flags().String("host", "", "Record host (overrides "+config.EnvDNSHost+")")
	cmd.Flags().String("target", "", "Record target (overrides "+config.EnvDNSTarget+")")
	cmd.Flags().Int("ttl", 0, "TTL in seconds (overrides "+config.EnvDNSTTL+")")

	return cmd
}

func runCNAME(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	d := cfg.DNS()
	override := func(flag string, dst *string) {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
		}
	}
	override("domain", &d.Domain)
	override("host", &d.Host)
	override("target", &d.Target)
	if ttl, _ := cmd.Flags().GetInt("ttl"); ttl > 0 {
		d.TTL = ttl
	}

	var missing []string
	for _, f := range []struct{ env, value string }{
		{config.EnvDNSDomain, d.Domain},
		{config.EnvDNSHost, d.Host},
		{config.EnvDNSTarget, d.Target},
	} {
		if f.value == "" {
			missing = append(missing, f.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, cmdutil.MissingList(missing))
	}

	svc, err := cmdutil.DNS(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := cmdutil.SignalContext(cmd)
	defer cancel()

	rec, created, err := svc.EnsureCNAME(ctx, d.Domain, d.Host, d.Target, d.TTL)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if created {
		p.Success("Created %s CNAME %s (TTL %d)", rec.Name, rec.Content, rec.TTL)
	} else {
		p.Println("%s already points at %s", rec.Name, rec.Content)
	}
	return nil
}
