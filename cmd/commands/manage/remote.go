package manage

import (
	"strings"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/remote"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/spf13/cobra"
)

func sshCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh [server] [-- command...]",
		Short: "Open a shell on a server or run a command there",
		Long: `Open an interactive shell on a running server with the system ssh
client, or run a command when one follows "--".

The login is --user when given, else the user recorded by the last
provisioning run of the server, else REMOTE_USER. Unknown host keys are
accepted. When the recorded key changed, for example because the address
now belongs to a new server, you are asked whether to forget it.

Examples:
  hzdeploy manage ssh web-1
  hzdeploy manage ssh web-1 -- sudo systemctl status docker`,
		RunE: withServer(true, true, func(cmd *cobra.Command, s *session, ref string, args []string) error {
			user, _ := cmd.Flags().GetString("user")

			var command []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				command = args[dash:]
			}

			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			return s.fleet.SSH(ctx, ref, user, command, remote.ShellIO{
				Stdin:  cmd.InOrStdin(),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
		}),
	}
	cmd.Args = func(cmd *cobra.Command, args []string) error {
		if dash := cmd.ArgsLenAtDash(); dash >= 0 {
			args = args[:dash]
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	}
	cmd.Flags().String("user", "", "Remote login")

	return cmd
}

func syncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <local-path>",
		Short: "Copy a local path into the remote home directory",
		Long: `Copy a local file or directory into the home directory of the remote
user. rsync is used when available on both ends, otherwise the files are
copied over SFTP.

Examples:
  hzdeploy manage sync ./site --server web-1`,
		Args: cobra.ExactArgs(1),
		RunE: withServer(true, false, func(cmd *cobra.Command, s *session, ref string, args []string) error {
			user, _ := cmd.Flags().GetString("user")

			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			method, err := s.fleet.Sync(ctx, ref, user, args[0])
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("Copied %s to %s (%s)", args[0], ref, method)
			return nil
		}),
	}
	cmd.Flags().String("user", "", "Remote login")
	return cmd
}

func downloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <remote-path> <local-path>",
		Short: "Copy a remote path to the local machine",
		Long: `Copy a remote file or directory to the local machine. A relative remote
path is taken from the home directory of the remote user.

Examples:
  hzdeploy manage download logs ./logs --server web-1`,
		Args: cobra.ExactArgs(2),
		RunE: withServer(true, false, func(cmd *cobra.Command, s *session, ref string, args []string) error {
			user, _ := cmd.Flags().GetString("user")

			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			method, err := s.fleet.Download(ctx, ref, user, args[0], args[1])
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("Copied %s:%s to %s (%s)", ref, strings.TrimSpace(args[0]), args[1], method)
			return nil
		}),
	}
	cmd.Flags().String("user", "", "Remote login")
	return cmd
}
