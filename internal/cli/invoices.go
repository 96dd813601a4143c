package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"facturas/internal/core"
	"facturas/internal/services"

	"github.com/spf13/cobra"
)

// filterFlags are shared by list and summary.
type filterFlags struct {
	typ      string
	category string
	from     string
	to       string
	archived bool
	search   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "Only issued or received invoices")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category substring, case-insensitive")
	cmd.Flags().StringVar(&f.from, "from", "", "First date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last date, inclusive (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&f.archived, "archived", "a", false, "Include archived invoices")
	cmd.Flags().StringVarP(&f.search, "search", "q", "", "Text in number, entity, concept or notes")
}

func (f *filterFlags) filter() (core.Filter, error) {
	out := core.Filter{
		Category:        f.category,
		DateFrom:        f.from,
		DateTo:          f.to,
		IncludeArchived: f.archived,
		Search:          f.search,
	}
	if f.typ != "" {
		t, err := core.ParseInvoiceType(f.typ)
		if err != nil {
			return core.Filter{}, err
		}
		out.Type = t
	}
	return out, nil
}

func (a *app) newListCmd() *cobra.Command {
	var (
		ff     filterFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest first",
		Example: `  facturas list --type received --from 2024-01-01
  facturas list -q acme --archived`,
		Args: cobra.NoArgs,
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
					return writeJSON(cmd.OutOrStdout(), rep.Invoices)
				}
				return writeInvoiceTable(cmd.OutOrStdout(), rep.Invoices)
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeInvoiceTable(w io.Writer, invs []core.Invoice) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tNUMBER\tTYPE\tENTITY\tCONCEPT\tBASE\tTAX%\tTOTAL\tCATEGORY\tARCHIVED")
	for _, inv := range invs {
		archived := ""
		if inv.Archived {
			archived = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID, inv.Date, inv.Number, inv.Type, inv.Entity, inv.Concept,
			core.FormatAmount(inv.Base), core.FormatPct(inv.TaxPct), core.FormatAmount(inv.Total()),
			inv.Category, archived)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// invoiceFlags maps the entry form onto flags. Only flags set on the command
// line are applied, so edit keeps every field that is not named.
type invoiceFlags struct {
	in  services.InvoiceInput
	typ string
	tax float64
}

func (f *invoiceFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.in.Number, "number", "n", "", "Invoice number, unique")
	fl.StringVarP(&f.in.Date, "date", "d", "", "Invoice date (YYYY-MM-DD)")
	fl.StringVarP(&f.typ, "type", "t", string(core.Issued), "issued or received")
	fl.StringVarP(&f.in.Entity, "entity", "e", "", "Counterparty")
	fl.StringVar(&f.in.Concept, "concept", "", "What was invoiced")
	fl.Float64VarP(&f.in.Base, "base", "b", 0, "Taxable base amount")
	fl.Float64Var(&f.tax, "tax", core.DefaultTaxPct, "Tax percentage")
	fl.StringVar(&f.in.Payment, "payment", "", "Payment method")
	fl.StringVarP(&f.in.Category, "category", "c", "", "Category")
	fl.StringVar(&f.in.Notes, "notes", "", "Free-form notes")
	fl.StringVar(&f.in.PDFPath, "pdf", "", "Path of the invoice document")
}

// apply copies the flags that were set onto in.
func (f *invoiceFlags) apply(cmd *cobra.Command, in *services.InvoiceInput) error {
	fl := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fl.Changed(name) {
			*dst = v
		}
	}
	set("number", &in.Number, f.in.Number)
	set("date", &in.Date, f.in.Date)
	set("entity", &in.Entity, f.in.Entity)
	set("concept", &in.Concept, f.in.Concept)
	set("payment", &in.Payment, f.in.Payment)
	set("category", &in.Category, f.in.Category)
	set("notes", &in.Notes, f.in.Notes)
	set("pdf", &in.PDFPath, f.in.PDFPath)
	if fl.Changed("base") {
		in.Base = f.in.Base
	}
	if fl.Changed("tax") {
		tax := f.tax
		in.TaxPct = &tax
	}
	if fl.Changed("type") {
		t, err := core.ParseInvoiceType(f.typ)
		if err != nil {
			return err
		}
		in.Type = t
	}
	return nil
}

func (a *app) newAddCmd() *cobra.Command {
	var ff invoiceFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new invoice",
		Example: `  facturas add -n F-2024-001 -e "ACME S.L." --concept Design -b 1200
  facturas add -n R-17 -t received -e Telco --concept Internet -b 40 --tax 21 -c Utilities`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := services.InvoiceInput{Date: core.Today(), Type: core.Issued}
			if err := ff.apply(cmd, &in); err != nil {
				return err
			}
			return a.withLedger(cmd, func(l *Ledger) error {
				inv, err := l.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created invoice %s (%s, %s)\n", inv.Number, inv.ID, core.FormatAmount(inv.Total()))
				return nil
			})
		},
	}
	ff.register(cmd)
	return cmd
}

func (a *app) newEditCmd() *cobra.Command {
	var ff invoiceFlags
	cmd := &cobra.Command{
		Use:     "edit <id>",
		Short:   "Change fields of an invoice",
		Example: `  facturas edit 6f1c... --base 1350 --notes "second revision"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(l *Ledger) error {
				cur, err := l.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				in := inputFrom(cur)
				if err := ff.apply(cmd, &in); err != nil {
					return err
				}
				inv, err := l.Update(cmd.Context(), cur.ID, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated invoice %s (%s)\n", inv.Number, inv.ID)
				return nil
			})
		},
	}
	ff.register(cmd)
	return cmd
}

// inputFrom is the entry form pre-filled with inv.
func inputFrom(inv core.Invoice) services.InvoiceInput {
	tax := inv.TaxPct
	return services.InvoiceInput{
		Number:   inv.Number,
		Date:     inv.Date,
		Type:     inv.Type,
		Entity:   inv.Entity,
		Concept:  inv.Concept,
		Base:     inv.Base,
		TaxPct:   &tax,
		Payment:  inv.Payment,
		Category: inv.Category,
		Notes:    inv.Notes,
		PDFPath:  inv.PDFPath,
		Archived: inv.Archived,
	}
}

func (a *app) newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive an invoice, or restore an archived one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(l *Ledger) error {
				inv, err := l.ToggleArchived(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				state := "restored"
				if inv.Archived {
					state = "archived"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Invoice %s %s\n", inv.Number, state)
				return nil
			})
		},
	}
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an invoice",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(l *Ledger) error {
				if err := l.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
