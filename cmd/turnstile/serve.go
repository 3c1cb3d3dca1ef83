package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/turnstile"
	"github.com/aretw0/turnstile/internal/cli"
	"github.com/aretw0/turnstile/internal/presentation/tui"
	httpadapter "github.com/aretw0/turnstile/pkg/adapters/http"
	"github.com/aretw0/turnstile/pkg/plugins/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP webhook server",
	Long: `Serves POST /webhook (one turn per request), GET /health and GET /metrics.
The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		noBanner, _ := cmd.Flags().GetBool("no-banner")
		cors, _ := cmd.Flags().GetBool("cors")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := cli.Build(ctx, cfg, logger, cli.WithTraceOutput(os.Stderr))
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Warn("Failed to release resources", "err", err)
			}
		}()

		if err := rt.App.Setup(ctx); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}

		opts := []httpadapter.Option{
			httpadapter.WithLogger(logger),
			httpadapter.WithVersion(strings.TrimSpace(turnstile.Version)),
			httpadapter.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
			httpadapter.WithHealthCheck("store", func(ctx context.Context) error {
				_, err := rt.Store.List(ctx)
				return err
			}),
		}
		if cors {
			opts = append(opts, httpadapter.WithCORS())
		}

		router := chi.NewRouter()
		router.Handle("/metrics", metrics.Handler(rt.Registry))
		router.Mount("/", httpadapter.NewHandler(rt.App, opts...))

		var handler http.Handler = router
		if cfg.Telemetry.Tracing {
			handler = otelhttp.NewHandler(router, "turnstile")
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
		}

		if !noBanner {
			tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(turnstile.Version))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("Turnstile server listening", "address", srv.Addr, "store", cfg.Store.Driver)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", cfg.Server.ShutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("Turnstile server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("cors", false, "Allow cross-origin requests")
	serveCmd.Flags().Bool("no-banner", false, "Do not print the startup banner")
}
