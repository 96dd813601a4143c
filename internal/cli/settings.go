package cli

import (
	"errors"
	"fmt"

	"facturas/internal/core"
	"facturas/internal/kv"
	"facturas/internal/settings"

	"github.com/spf13/cobra"
)

func (a *app) newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
	}
	cmd.AddCommand(a.newSettingsGetCmd(), a.newSettingsSetCmd(), a.newSettingsResetCmd())
	return cmd
}

// openSettings opens only the preference store; no record store is needed.
func (a *app) openSettings() (*settings.Store, error) {
	kvs, err := kv.Open(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return settings.New(kvs), nil
}

func (a *app) newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the withholding percentage and theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefs, err := a.openSettings()
			if err != nil {
				return err
			}
			irpf, err := prefs.IRPFPct()
			if err != nil {
				return err
			}
			dark, err := prefs.DarkTheme()
			if err != nil {
				return err
			}
			theme := "light"
			if dark {
				theme = "dark"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "irpf\t%s\ntheme\t%s\n", core.FormatPct(irpf), theme)
			return nil
		},
	}
}

func (a *app) newSettingsSetCmd() *cobra.Command {
	var (
		irpf float64
		dark bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the withholding percentage or theme",
		Example: `  facturas settings set --irpf 7
  facturas settings set --dark-theme=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changedIRPF := cmd.Flags().Changed("irpf")
			changedTheme := cmd.Flags().Changed("dark-theme")
			if !changedIRPF && !changedTheme {
				return errors.New("nothing to set: pass --irpf or --dark-theme")
			}
			prefs, err := a.openSettings()
			if err != nil {
				return err
			}
			if changedIRPF {
				stored, err := prefs.SetIRPFPct(irpf)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "irpf\t%s\n", core.FormatPct(stored))
			}
			if changedTheme {
				if err := prefs.SetDarkTheme(dark); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dark-theme\t%t\n", dark)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&irpf, "irpf", settings.DefaultIRPFPct, "Withholding percentage, clamped to 0..100")
	cmd.Flags().BoolVar(&dark, "dark-theme", false, "Use the dark theme")
	return cmd
}

func (a *app) newSettingsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default withholding percentage and theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefs, err := a.openSettings()
			if err != nil {
				return err
			}
			if err := prefs.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings reset")
			return nil
		},
	}
}
