package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"facturas/internal/backup"

	"github.com/spf13/cobra"
)

func (a *app) newExportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every invoice, archived included, as JSON or CSV",
		Example: `  facturas export > facturas_backup.json
  facturas export --format csv -o facturas.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := backup.ParseFormat(format)
			if err != nil {
				return err
			}
			return a.withLedger(cmd, func(l *Ledger) error {
				if output == "" || output == "-" {
					return l.Export(cmd.Context(), cmd.OutOrStdout(), f)
				}
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := l.Export(cmd.Context(), file, f); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("close %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(backup.FormatJSON), "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace every invoice with the contents of a backup",
		Long: `Replace the whole ledger with a JSON or CSV backup.

The format follows the file extension unless --format is given. Nothing is
changed when the document cannot be read or holds duplicate ids or numbers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			f, err := importFormat(format, name)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if name != "-" {
				file, err := os.Open(name)
				if err != nil {
					return fmt.Errorf("open %s: %w", name, err)
				}
				defer file.Close()
				r = file
			}

			return a.withLedger(cmd, func(l *Ledger) error {
				n, err := l.Import(cmd.Context(), r, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d invoices\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json or csv (default from the file extension)")
	return cmd
}

func importFormat(flag, name string) (backup.Format, error) {
	if flag != "" {
		return backup.ParseFormat(flag)
	}
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return backup.FormatCSV, nil
	}
	return backup.FormatJSON, nil
}
