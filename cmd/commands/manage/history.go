package manage

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	"nathanbeddoewebdev/hzdeploy/internal/fleet"
	"nathanbeddoewebdev/hzdeploy/internal/ui"

	"github.com/spf13/cobra"
)

func historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent provisioning runs",
		Long: `Show the most recent provisioning runs recorded on this machine, newest
first. The history is local and needs no API token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			runs := cmdutil.Runs()
			if runs == nil {
				return errors.New("run history is unavailable")
			}
			defer runs.Close()

			svc := fleet.NewService(nil, nil)
			svc.History = runs
			records, err := svc.Runs(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			p := ui.NewPrinter(cmd.OutOrStdout())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSERVER\tID\tIP\tSTAGE\tOUTCOME")
			fmt.Fprintln(w, "-------\t------\t--\t--\t-----\t-------")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.ServerName,
					orDash(r.ServerID),
					orDash(r.IP),
					r.Stage,
					p.Status(r.Outcome),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			first := true
			for _, r := range records {
				if r.Error == "" {
					continue
				}
				if first {
					fmt.Fprintln(cmd.OutOrStdout())
					first = false
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.ServerName, p.Muted(r.Error))
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Number of runs to show")
	return cmd
}
