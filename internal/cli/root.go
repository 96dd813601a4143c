package cli

import (
	"fmt"
	"os"

	"facturas/internal/backend"
	"facturas/internal/config"
	applog "facturas/internal/log"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// app carries the state shared by every command of one invocation.
type app struct {
	backend string
	dataDir string
	dbPath  string

	cfg    *config.Config
	logger *applog.Logger
}

// NewRootCmd builds the facturas command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "facturas",
		Short: "Local invoice ledger",
		Long: `facturas keeps a ledger of issued and received invoices on this machine.

Records live in a SQLite database, or in a flat JSON file under the data
directory when SQLite cannot be opened. Every command works offline.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.bootstrap,
	}

	root.PersistentFlags().StringVar(&a.backend, "backend", "", fmt.Sprintf("Record store backend %v (default from STORAGE_BACKEND)", backend.KindStrings()))
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Data directory (default from DATA_DIR)")
	root.PersistentFlags().StringVar(&a.dbPath, "db-path", "", "SQLite database file (default from SQLITE_DB_PATH)")

	root.AddCommand(
		a.newServeCmd(),
		a.newListCmd(),
		a.newAddCmd(),
		a.newEditCmd(),
		a.newArchiveCmd(),
		a.newDeleteCmd(),
		a.newSummaryCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
		a.newSettingsCmd(),
	)
	return root
}

// bootstrap loads .env and the environment config, applies flag overrides
// and sets up logging before any command runs.
func (a *app) bootstrap(cmd *cobra.Command, _ []string) error {
	LoadEnvFile()

	cfg := config.Load()
	if a.backend != "" {
		cfg.StorageBackend = a.backend
	}
	if a.dataDir != "" {
		applyDataDir(cfg, a.dataDir)
	}
	if a.dbPath != "" {
		cfg.SQLiteDBPath = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

// withLedger opens the ledger for the duration of fn.
func (a *app) withLedger(cmd *cobra.Command, fn func(*Ledger) error) error {
	l, err := OpenLedger(cmd.Context(), a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := l.Close(); cerr != nil {
			a.logger.Warn("Failed to close ledger", applog.FieldError, cerr.Error())
		}
	}()
	return fn(l)
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
