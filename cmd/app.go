package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/mailfront/internal/auth"
	"github.com/teemow/mailfront/internal/config"
	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/instrumentation"
	"github.com/teemow/mailfront/internal/logging"
)

const upstreamTimeout = 30 * time.Second

// app holds what every command builds from the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *instrumentation.Provider
}

// setup loads and validates the configuration, installs the logger as the
// slog default and creates the instrumentation provider. Instrumentation is
// only enabled for long running commands that expose it.
func setup(cmd *cobra.Command, instrumented bool) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Enabled = instrConfig.Enabled && instrumented
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	provider, err := instrumentation.NewProvider(cmd.Context(), instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	return &app{cfg: cfg, logger: logger, provider: provider}, nil
}

func (a *app) shutdown(ctx context.Context) {
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}

// httpClient is the client for provider calls. It propagates trace context
// when instrumentation is enabled.
func (a *app) httpClient() *http.Client {
	if !a.provider.Enabled() {
		return &http.Client{Timeout: upstreamTimeout}
	}
	return &http.Client{
		Timeout:   upstreamTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (a *app) exchanger() *auth.Exchanger {
	return auth.NewExchanger(auth.Config{
		ClientID:     a.cfg.Zoho.ClientID,
		ClientSecret: a.cfg.Zoho.ClientSecret,
		RedirectURL:  a.cfg.Zoho.RedirectURI,
		AuthURL:      a.cfg.Zoho.AuthURL,
		TokenURL:     a.cfg.Zoho.TokenURL,
		HTTPClient:   a.httpClient(),
		Metrics:      a.provider.Metrics(),
		Logger:       a.logger,
	})
}

func (a *app) gatewayClient() *gateway.Client {
	return gateway.New(gateway.Config{
		BaseURL:    a.cfg.Zoho.APIURL,
		HTTPClient: a.httpClient(),
		Metrics:    a.provider.Metrics(),
		Logger:     a.logger,
	})
}

// store opens the configured session store.
func (a *app) store() (auth.Store, error) {
	switch a.cfg.Session.Store {
	case config.StoreKeyring:
		ring, err := auth.OpenKeyring(a.cfg.Session.KeyringDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open keyring: %w", err)
		}
		return auth.NewKeyringStore(ring), nil
	case config.StoreMemory:
		return auth.NewMemoryStore(), nil
	default:
		return auth.NewFileStore(a.cfg.Session.File), nil
	}
}

// session builds the token manager of the local session. source names the
// caller in audit events.
func (a *app) session(source string) (*auth.Manager, error) {
	if err := a.cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(a.exchanger(), store,
		auth.WithAudit(a.provider.Audit(), source),
		auth.WithLogger(a.logger),
	), nil
}

// sessionGateway builds the mail gateway that refreshes the local session on
// an expired access token.
func (a *app) sessionGateway(manager *auth.Manager) *gateway.SessionGateway {
	return gateway.NewSessionGateway(a.gatewayClient(), manager)
}
