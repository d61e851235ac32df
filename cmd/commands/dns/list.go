package dns

import (
	"fmt"
	"text/tabwriter"

	"nathanbeddoewebdev/hzdeploy/cmd/cmdutil"
	dnsdomain "nathanbeddoewebdev/hzdeploy/internal/dns/domain"

	"github.com/spf13/cobra"
)

// RecordsCommand returns the "dns records" subcommand.
func RecordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records <domain>",
		Short: "List DNS records for a domain",
		Long: `List all DNS records for the given domain.

Examples:
  hzdeploy dns records example.com
  hzdeploy dns records example.com --type CNAME`,
		Args: cobra.ExactArgs(1),
		RunE: runRecords,
	}

	cmd.Flags().String("type", "", "Filter records by type (A, AAAA, CNAME)")

	return cmd
}

func runRecords(cmd *cobra.Command, args []string) error {
	typeFilter, _ := cmd.Flags().GetString("type")

	svc, err := newDNSService()
	if err != nil {
		return err
	}

	ctx, cancel := cmdutil.SignalContext(cmd)
	defer cancel()

	records, err := svc.ListRecords(ctx, args[0], dnsdomain.RecordType(typeFilter))
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tCONTENT\tTTL")
	fmt.Fprintln(w, "--\t----\t----\t-------\t---")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			r.ID,
			r.Name,
			string(r.Type),
			r.Content,
			r.TTL,
		)
	}

	return w.Flush()
}
