package manage

import (
	"fmt"
	"strings"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/config"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/fleet"
	"nathanbeddoewebdev/hzdeploy/internal/services/action"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewCommand returns the "manage" command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manage <command>",
		Short: "Run one-shot commands against existing servers",
		Long: `Run one-shot commands against existing servers.

A server is referenced by numeric ID or by name (the first server with the
name wins). Commands that act on a single server take the reference as an
argument, from --server, or from SERVER_NAME, in that order.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q for %q\n\n%s", domain.ErrInvalidInput, args[0], cmd.CommandPath(), cmd.UsageString())
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().String("server", "", "Server name or ID (default $"+config.EnvServerName+")")

	cmd.AddCommand(listCommand())
	cmd.AddCommand(statusCommand())
	cmd.AddCommand(ipCommand())
	cmd.AddCommand(startCommand())
	cmd.AddCommand(stopCommand())
	cmd.AddCommand(deleteCommand())
	cmd.AddCommand(sshCommand())
	cmd.AddCommand(syncCommand())
	cmd.AddCommand(downloadCommand())
	cmd.AddCommand(historyCommand())

	return cmd
}

// session is the per-invocation wiring shared by the subcommands.
type session struct {
	cfg     config.Config
	fleet   *fleet.Service
	closers []func() error
}

func (s *session) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Debug().Err(err).Msg("close failed")
		}
	}
}

// open loads the configuration and builds the fleet service. The token is
// checked before any client is built. withRemote also sets up SSH.
func open(withRemote bool) (*session, error) {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return nil, err
	}
	cloud, err := cmdutil.Cloud(cfg)
	if err != nil {
		return nil, err
	}

	actions := action.NewService(cloud)
	actions.Timeout = cfg.WaitTimeout()
	actions.Log = log.Logger

	s := &session{cfg: cfg, fleet: fleet.NewService(cloud, actions)}
	s.fleet.DefaultUser = cfg.RemoteUser()

	if withRemote {
		mgr, err := cmdutil.RemoteManager(cfg)
		if err != nil {
			return nil, err
		}
		s.fleet.Remote = mgr
		s.closers = append(s.closers, mgr.Close)

		if runs := cmdutil.Runs(); runs != nil {
			s.fleet.History = runs
			s.closers = append(s.closers, runs.Close)
		}
	}
	return s, nil
}

// serverRef picks the server reference from the first positional
// argument before "--", --server or SERVER_NAME.
func serverRef(cmd *cobra.Command, args []string) (string, error) {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		args = args[:dash]
	}
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if ref, _ := cmd.Flags().GetString("server"); strings.TrimSpace(ref) != "" {
		return ref, nil
	}
	if ref, ok := cmdutil.LookupEnv(config.EnvServerName); ok && strings.TrimSpace(ref) != "" {
		return strings.TrimSpace(ref), nil
	}
	return "", fmt.Errorf("%w: no server given (pass a name or ID, --server, or set %s)", domain.ErrInvalidInput, config.EnvServerName)
}

// withServer runs fn with an open session and the resolved reference.
// When positional is false the arguments are paths and the reference
// comes from --server or SERVER_NAME only.
func withServer(remote, positional bool, fn func(cmd *cobra.Command, s *session, ref string, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := open(remote)
		if err != nil {
			return err
		}
		defer s.Close()

		refArgs := args
		if !positional {
			refArgs = nil
		}
		ref, err := serverRef(cmd, refArgs)
		if err != nil {
			return err
		}
		if err := fn(cmd, s, ref, args); err != nil {
			return cmdutil.Describe(err)
		}
		return nil
	}
}
