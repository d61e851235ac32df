package deploy

import (
	"fmt"
	"os"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	provisioncmd "nathanbeddoewebdev/hzdeploy/cmd/commands/provision"
	"nathanbeddoewebdev/hzdeploy/internal/deploy"
	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/spf13/cobra"
)

// NewCommand returns the "deploy" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <directory> [server-name]",
		Short: "Provision a server and start a compose project on it",
		Long: `Provision a server, copy a directory to it and start its compose manifest.

The directory is searched for compose.yaml, compose.yml, docker-compose.yaml
and docker-compose.yml, in that order. A generated startup script installs
Docker and the compose plugin, adds the remote user to the docker group and
runs "docker compose up -d" in the copied directory. Without a manifest the
files are copied and Docker is installed, but nothing is started.

Ports come from DEPLOY_PORTS (default 22,80,443) and are opened on both the
host firewall and a cloud firewall named FIREWALL_NAME (default
<server>-fw). A DNS record, when configured, must be complete.

Examples:
  hzdeploy deploy ./shop
  hzdeploy deploy ./shop shop-prod`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runDeploy,
	}

	return cmd
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	if len(args) == 2 {
		cfg = cfg.WithServerName(args[1])
	}

	if _, err := cfg.RequireToken(); err != nil {
		return err
	}

	dns, missing := cmdutil.DNSRecord(cfg)
	if len(missing) > 0 {
		return fmt.Errorf("%w: DNS record is partly configured, missing %s", domain.ErrInvalidInput, cmdutil.MissingList(missing))
	}

	plan, err := deploy.Compose(args[0], cfg.RemoteUser(), cfg.DeployPorts())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), plan.Summary())

	tmp, err := os.MkdirTemp("", "hzdeploy-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := plan.WriteScript(tmp); err != nil {
		return err
	}
	req, err := plan.Apply(cmdutil.ProvisionRequest(cfg))
	if err != nil {
		return err
	}

	return provisioncmd.Run(cmd, cfg, req, dns)
}
