package provision

import (
	"fmt"
	"time"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/config"
	provisioning "nathanbeddoewebdev/hzdeploy/internal/provision"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewCommand returns the "provision" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a hardened server from the environment",
		Long: `Create a single server and wait until it accepts SSH logins.

Every setting comes from the environment (or a .env file), with persisted
preferences and built-in defaults underneath. The server is created with
a first-boot document that adds the remote user, disables root and
password logins, and enables ufw and fail2ban.

Optional steps, each enabled by its setting:
  DNS_DOMAIN/DNS_RECORD_HOST/DNS_RECORD_TARGET   register a CNAME (best effort)
  COPY_SOURCE_PATH                               copy files to the remote home
  STARTUP_SCRIPT_PATH                            run a script with sudo

Examples:
  hzdeploy provision
  SERVER_NAME=web-1 ALLOWED_PORTS=22,80,443 hzdeploy provision`,
		Args: cobra.NoArgs,
		RunE: runProvision,
	}

	cmd.Flags().String("name", "", "Server name (overrides "+config.EnvServerName+")")
	cmd.Flags().String("user", "", "Remote login (overrides "+config.EnvRemoteUser+")")
	cmd.Flags().Duration("wait-timeout", 0, "Bound for each wait phase (overrides "+config.EnvWaitTimeout+")")

	return cmd
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	cfg = applyFlags(cmd, cfg)

	req := cmdutil.ProvisionRequest(cfg)
	dns, missing := cmdutil.DNSRecord(cfg)
	if len(missing) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: DNS record skipped, missing %s\n", cmdutil.MissingList(missing))
	}

	return Run(cmd, cfg, req, dns)
}

func applyFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	name, _ := cmd.Flags().GetString("name")
	user, _ := cmd.Flags().GetString("user")
	timeout, _ := cmd.Flags().GetDuration("wait-timeout")
	return cfg.WithServerName(name).WithRemoteUser(user).WithWaitTimeout(timeout)
}

// Run executes req against the configured cloud and reports the outcome.
// dns, when non-nil, is registered best-effort.
func Run(cmd *cobra.Command, cfg config.Config, req provisioning.Request, dns *provisioning.DNSRecord) error {
	cloud, err := cmdutil.Cloud(cfg)
	if err != nil {
		return err
	}

	mgr, err := cmdutil.RemoteManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	o := provisioning.New(cloud, mgr, cmd.ErrOrStderr(), log.Logger)

	if dns != nil {
		svc, err := cmdutil.DNS(cfg)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: DNS record skipped: %v\n", err)
		} else {
			req.DNS = dns
			o.DNS = svc
		}
	}

	if runs := cmdutil.Runs(); runs != nil {
		defer runs.Close()
		o.Runs = runs
	}

	ctx, cancel := cmdutil.SignalContext(cmd)
	defer cancel()

	start := time.Now()
	res, err := o.Run(ctx, req)
	if err != nil {
		if res != nil && res.Server.ID != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Server %q (ID: %s) stopped at stage %s.\n", res.Server.Name, res.Server.ID, res.Stage)
		}
		return cmdutil.Describe(err)
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Success("Server %q is ready at %s (%s)", res.Server.Name, res.IP, time.Since(start).Round(time.Second))
	p.Println("  ssh %s@%s", req.RemoteUser, res.IP)
	return nil
}
