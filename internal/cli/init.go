// Package cli provides the facturas command tree and the process bootstrap
// shared by its commands: .env loading, configuration, logging, opening the
// ledger and graceful shutdown.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"facturas/internal/backend"
	"facturas/internal/cache"
	"facturas/internal/config"
	"facturas/internal/core"
	"facturas/internal/kv"
	applog "facturas/internal/log"
	"facturas/internal/services"
	"facturas/internal/settings"

	"github.com/joho/godotenv"
)

// SetupLogger builds the application logger from cfg, writing to w, and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, w io.Writer) *applog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentApp,
		Handler:   applog.NewHandler(w, cfg.LogFormat, level),
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Ledger bundles an opened ledger with the settings it reads and the cache
// manager that expires its reports.
type Ledger struct {
	*services.LedgerService
	Settings *settings.Store
	Backend  backend.Kind
	Caches   *cache.Manager

	reports *cache.LRUCache[core.Report]
	logger  *applog.Logger
	cleanup func() error
}

// OpenLedger selects the record store, loads the collection and wires the
// report cache from cfg.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Ledger, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.Open(ctx, bcfg, logger.Logger.With(applog.FieldComponent, applog.ComponentBackend))
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	kvs, err := kv.Open(cfg.DataDir)
	if err != nil {
		_ = res.Cleanup()
		return nil, fmt.Errorf("open settings: %w", err)
	}
	prefs := settings.New(kvs)

	reports := cache.NewLRUCache[core.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager()
	caches.Register(reports)

	svc := services.NewLedgerService(res.Store, prefs,
		services.WithReportCache(reports),
		services.WithLogger(logger))
	if err := svc.Load(ctx); err != nil {
		_ = res.Cleanup()
		return nil, err
	}

	return &Ledger{
		LedgerService: svc,
		Settings:      prefs,
		Backend:       res.Kind,
		Caches:        caches,
		reports:       reports,
		logger:        logger,
		cleanup:       res.Cleanup,
	}, nil
}

// Close stops cache cleanup and releases the record store.
func (l *Ledger) Close() error {
	l.Caches.Stop()
	if l.reports != nil && l.logger != nil {
		st := l.reports.Stats()
		l.logger.Debug("Report cache stats",
			applog.FieldComponent, applog.ComponentCache,
			"hits", st.Hits, "misses", st.Misses, "stale", st.Stale)
	}
	if l.cleanup == nil {
		return nil
	}
	if err := l.cleanup(); err != nil {
		return fmt.Errorf("close record store: %w", err)
	}
	return nil
}

// applyDataDir points both stores at dir. The sqlite file follows the
// directory unless SQLITE_DB_PATH was set explicitly.
func applyDataDir(cfg *config.Config, dir string) {
	cfg.DataDir = dir
	if os.Getenv("SQLITE_DB_PATH") == "" {
		cfg.SQLiteDBPath = filepath.Join(dir, "facturas.db")
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once after the signal, bounded by timeout; done is closed afterwards.
func GracefulShutdown(parent context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", applog.FieldOperation, applog.OpShutdown)
			return
		}
		logger.Info("Shutdown complete", applog.FieldOperation, applog.OpShutdown)
	}()

	return ctx, done
}
