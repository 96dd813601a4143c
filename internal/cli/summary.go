package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"facturas/internal/core"

	"github.com/spf13/cobra"
)

func (a *app) newSummaryCmd() *cobra.Command {
	var (
		ff     filterFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals, tax balance and withholding for the filtered invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(l *Ledger) error {
				rep, err := l.Report(cmd.Context(), f)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), struct {
						Count      int         `json:"count"`
						Totals     core.Totals `json:"totals"`
						ByCategory core.Series `json:"byCategory"`
						ByMonth    core.Series `json:"byMonth"`
					}{len(rep.Invoices), rep.Totals, rep.ByCategory, rep.ByMonth})
				}
				irpf, err := l.Settings.IRPFPct()
				if err != nil {
					return err
				}
				return writeSummary(cmd.OutOrStdout(), rep, irpf)
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func writeSummary(w io.Writer, rep core.Report, irpf float64) error {
	t := rep.Totals
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Issued (%d)\t%s\t\n", t.CountIssued, core.FormatAmount(t.TotalIssued))
	fmt.Fprintf(tw, "Received (%d)\t%s\t\n", t.CountReceived, core.FormatAmount(t.TotalReceived))
	fmt.Fprintf(tw, "Profit\t%s\t\n", core.FormatAmount(t.Profit))
	fmt.Fprintf(tw, "Tax issued\t%s\t\n", core.FormatAmount(t.TaxIssued))
	fmt.Fprintf(tw, "Tax received\t%s\t\n", core.FormatAmount(t.TaxReceived))
	fmt.Fprintf(tw, "Tax balance\t%s\t\n", core.FormatAmount(t.TaxBalance))
	fmt.Fprintf(tw, "IRPF %s%%\t%s\t\n", core.FormatPct(irpf), core.FormatAmount(t.Withholding))
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := writeSeries(w, "CATEGORY", rep.ByCategory); err != nil {
		return err
	}
	return writeSeries(w, "MONTH", rep.ByMonth)
}

func writeSeries(w io.Writer, title string, s core.Series) error {
	if len(s.Labels) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tISSUED\tRECEIVED\n", title)
	for i, label := range s.Labels {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", label, core.FormatAmount(s.Issued[i]), core.FormatAmount(s.Received[i]))
	}
	return tw.Flush()
}
