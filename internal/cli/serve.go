package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	apphttp "facturas/internal/http"
	applog "facturas/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func (a *app) newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger as a local JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			return a.withLedger(cmd, func(l *Ledger) error {
				return a.serve(cmd.Context(), l)
			})
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default from PORT)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, a shutdown signal
// arrives or the listener fails.
func (a *app) serve(parent context.Context, l *Ledger) error {
	l.Caches.StartCleanup(cacheCleanupInterval)

	addr := net.JoinHostPort("", a.cfg.Port)
	srv := apphttp.NewServer(addr, l.LedgerService, l.Settings, a.logger)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	shutdownCtx, done := GracefulShutdown(ctx, a.logger, shutdownTimeout, func(sctx context.Context) {
		if err := srv.Shutdown(sctx); err != nil {
			a.logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
	})

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		a.logger.Info("Starting facturas server",
			applog.FieldOperation, applog.OpStartup,
			"addr", addr,
			applog.FieldBackend, l.Backend.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		cancel()
		return nil
	})

	err := g.Wait()
	cancel()
	<-done
	if err == nil {
		a.logger.Info("Server stopped gracefully")
	}
	return err
}
