package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/mailfront/internal/logging"
	"github.com/teemow/mailfront/internal/server"
)

func newServeCmd() *cobra.Command {
	var trustProxy bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP proxy",
		Long: `Start the HTTP proxy for the OAuth token grants and the mail operations.

The proxy is stateless: callers pass their access token with every request
and exchange or refresh tokens through /auth/token and /auth/refresh.

Endpoints:
  POST /auth/token, POST /auth/refresh
  GET  /accounts, /emails/folders, /emails/list, /emails/get
  POST /emails/send, POST|DELETE /emails/delete
  GET  /healthz, /readyz, /healthz/detailed

Configuration:
  Provider credentials are required:
    --client-id, --client-secret, --redirect-uri
    OR ZOHO_CLIENT_ID, ZOHO_CLIENT_SECRET, REDIRECT_URI env vars
    (the NEXT_PUBLIC_ZOHO_CLIENT_ID and NEXT_PUBLIC_REDIRECT_URI names work too)

  Metrics are served on a dedicated port (--metrics-addr) when enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, trustProxy)
		},
	}

	addCredentialFlags(cmd)
	cmd.Flags().String("api-url", "", "Zoho Mail API root (default: https://mail.zoho.com/api)")
	cmd.Flags().String("addr", "", "HTTP listen address (default: :3000)")
	cmd.Flags().Float64("rate-limit", 0, "Requests per second allowed per client IP, 0 disables (default: 10)")
	cmd.Flags().Int("rate-burst", 0, "Burst size of the per client rate limit (default: 20)")
	cmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Key the rate limit on X-Forwarded-For and X-Real-IP. Only enable behind a reverse proxy.")
	cmd.Flags().Bool("metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use MAILFRONT_SERVER_METRICS_ENABLED env var.")
	cmd.Flags().String("metrics-addr", "", "Metrics server address (default: :9090)")

	return cmd
}

func runServe(cmd *cobra.Command, trustProxy bool) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	if err := a.cfg.RequireCredentials(); err != nil {
		return err
	}

	metrics := a.provider.Metrics()
	proxy := server.NewProxy(server.ProxyConfig{
		Grants:     a.exchanger(),
		Gateway:    a.gatewayClient(),
		RateLimit:  a.cfg.Server.RateLimit,
		RateBurst:  a.cfg.Server.RateBurst,
		TrustProxy: trustProxy,
		Metrics:    metrics,
		Audit:      a.provider.Audit(),
		Logger:     a.logger,
	})
	defer proxy.Close()

	health := server.NewHealthChecker(version)
	httpServer := server.NewHTTPServer(a.cfg.Server.Addr, proxy.Handler(health), health)

	var metricsServer *server.MetricsServer
	if a.cfg.Server.MetricsEnabled && a.provider.Enabled() && a.provider.PrometheusHandler() != nil {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    a.cfg.Server.MetricsAddr,
			InstrumentationProvider: a.provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	// Listen before serving so the readiness probe only passes once both
	// listeners are bound.
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("proxy server listen on %s: %w", a.cfg.Server.Addr, err)
	}
	var metricsLn net.Listener
	if metricsServer != nil {
		metricsLn, err = net.Listen("tcp", metricsServer.Addr())
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("metrics server listen on %s: %w", metricsServer.Addr(), err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.Serve(ln)
	})
	if metricsServer != nil {
		g.Go(func() error {
			return metricsServer.Serve(metricsLn)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received, stopping servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down proxy server: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	health.SetReady(true)
	a.logger.Info("mailfront proxy started",
		"addr", ln.Addr().String(),
		"metrics", metricsServer != nil,
		"rate_limit", a.cfg.Server.RateLimit,
	)

	if err := g.Wait(); err != nil {
		a.logger.Error("server stopped with error", logging.Err(err))
		return err
	}
	a.logger.Info("servers gracefully stopped")
	return nil
}
