package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/ivrflow/internal/cli"
	"github.com/aretw0/ivrflow/internal/presentation/tui"
	httpAdapter "github.com/aretw0/ivrflow/pkg/adapters/http"
	"github.com/aretw0/ivrflow/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flow version store HTTP server",
	Long: `Serves the REST API of the flow version store: flows, versions, activation
and the active definition read by the call-execution engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(cmd.OutOrStdout())
		}

		metrics := observability.NewMetrics()
		backend, err := cli.OpenDesigner(cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer backend.Close()

		streams := httpAdapter.NewStreamManager(logger)
		srv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: httpAdapter.NewHandler(backend.Designer.Service(),
				httpAdapter.WithMetrics(metrics),
				httpAdapter.WithLogger(logger),
				httpAdapter.WithStreams(streams),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}
		// event streams never go idle on their own
		srv.RegisterOnShutdown(streams.Close)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("Starting ivrflow server", "addr", srv.Addr, "store", cfg.Store.Backend)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("ivrflow server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http.addr)")
	serveCmd.Flags().Bool("quiet", false, "Do not print the banner")
}
