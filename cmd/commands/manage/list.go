package manage

import (
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/spf13/cobra"
)

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(false)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			servers, err := s.fleet.List(ctx)
			if err != nil {
				return cmdutil.Describe(err)
			}
			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
				return nil
			}

			p := ui.NewPrinter(cmd.OutOrStdout())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tTYPE\tLOCATION\tPUBLIC IPv4")
			fmt.Fprintln(w, "--\t----\t------\t----\t--------\t-----------")
			for _, server := range servers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					server.ID,
					server.Name,
					p.Status(server.Status),
					server.ServerType,
					server.Region,
					orDash(server.PublicIPv4),
				)
			}
			return w.Flush()
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [server]",
		Short: "Show the state of a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: withServer(false, true, func(cmd *cobra.Command, s *session, ref string, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			server, err := s.fleet.Status(ctx, ref)
			if err != nil {
				return err
			}

			p := ui.NewPrinter(cmd.OutOrStdout())
			p.Println("%s", p.Title(server.Name))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("ID"), server.ID)
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("Status"), p.Status(server.Status))
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("Type"), server.ServerType)
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("Image"), orDash(server.Image))
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("Location"), server.Region)
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("IPv4"), orDash(server.PublicIPv4))
			fmt.Fprintf(w, "  %s\t%s\n", p.Label("IPv6"), orDash(server.PublicIPv6))
			if !server.CreatedAt.IsZero() {
				fmt.Fprintf(w, "  %s\t%s\n", p.Label("Created"), server.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		}),
	}
}

func ipCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ip [server]",
		Short: "Print the public IPv4 address of a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: withServer(false, true, func(cmd *cobra.Command, s *session, ref string, _ []string) error {
			ctx, cancel := cmdutil.SignalContext(cmd)
			defer cancel()

			ip, err := s.fleet.IP(ctx, ref)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ip)
			return nil
		}),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
