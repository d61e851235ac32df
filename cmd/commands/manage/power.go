package manage

import (
	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/spf13/cobra"
)

func startCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start [server]",
		Short: "Power on a server and wait until it is running",
		Args:  cobra.MaximumNArgs(1),
		RunE: withServer(false, true, func(cmd *cobra.Command, s *session, ref string, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			server, err := s.fleet.Start(ctx, ref, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("Server %q is %s", server.Name, server.Status)
			return nil
		}),
	}
}

func stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop [server]",
		Short: "Shut a server down and wait until it is off",
		Args:  cobra.MaximumNArgs(1),
		RunE: withServer(false, true, func(cmd *cobra.Command, s *session, ref string, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			server, err := s.fleet.Stop(ctx, ref, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("Server %q is %s", server.Name, server.Status)
			return nil
		}),
	}
}

func deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [server]",
		Short: "Delete a server after confirmation",
		Long: `Delete a server permanently.

The command asks for confirmation on standard input and only proceeds when
the answer is exactly "yes".`,
		Args: cobra.MaximumNArgs(1),
		RunE: withServer(false, true, func(cmd *cobra.Command, s *session, ref string, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			server, err := s.fleet.Delete(ctx, ref, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("Server %q (ID: %s) deleted", server.Name, server.ID)
			return nil
		}),
	}
}
