package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/mailfront/internal/server"
	"github.com/teemow/mailfront/internal/tools/mail_tools"
)

const auditSourceMCP = "mcp"

func newMCPCmd() *cobra.Command {
	var (
		transport        string
		httpAddr         string
		yolo             bool
		disableStreaming bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide mail tools for
AI assistants. The tools act on the local session, run 'mailfront login' first.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on /mcp. It has no
    authentication of its own, keep it on a loopback address.

Safety Mode:
  By default, the server operates in read-only mode, providing only safe operations.
  Use --yolo to enable write operations (sending and deleting mail).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, transport, httpAddr, !yolo, disableStreaming)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "127.0.0.1:8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (sending and deleting mail). Default is read-only mode.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().String("store", "", "Session store: file, keyring or memory")
	cmd.Flags().String("session-file", "", "Session file for the file store")
	cmd.Flags().String("api-url", "", "Zoho Mail API root (default: https://mail.zoho.com/api)")
	return cmd
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("mailfront", version,
		mcpserver.WithToolCapabilities(true),
	)
}

func runMCP(cmd *cobra.Command, transport, httpAddr string, readOnly, disableStreaming bool) error {
	switch transport {
	case "stdio", "streamable-http":
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := setup(cmd, transport != "stdio")
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	manager, err := a.session(auditSourceMCP)
	if err != nil {
		return err
	}

	mcpSrv := newMCPServer()
	if err := mail_tools.RegisterMailTools(mcpSrv, mail_tools.Deps{
		Gateway: a.sessionGateway(manager),
		Metrics: a.provider.Metrics(),
		Audit:   a.provider.Audit(),
		Logger:  a.logger,
	}, readOnly); err != nil {
		return fmt.Errorf("failed to register mail tools: %w", err)
	}

	if transport == "stdio" {
		// Logs go to stderr, stdout carries the protocol.
		return runStdioServer(mcpSrv)
	}
	return runStreamableHTTPServer(ctx, a, mcpSrv, httpAddr, disableStreaming)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, a *app, mcpSrv *mcpserver.MCPServer, addr string, disableStreaming bool) error {
	var mcpHandler http.Handler
	if disableStreaming {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath("/mcp"),
			mcpserver.WithDisableStreaming(true),
		)
	} else {
		mcpHandler = mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath("/mcp"),
		)
	}

	health := server.NewHealthChecker(version)
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	health.RegisterHealthEndpoints(mux)
	httpServer := server.NewHTTPServer(addr, mux, health)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mcp server listen on %s: %w", addr, err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Serve(ln); err != nil {
			serverDone <- err
		}
	}()
	health.SetReady(true)
	a.logger.Info("streamable HTTP MCP server started", "addr", ln.Addr().String(), "endpoint", "/mcp")

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	a.logger.Info("HTTP server gracefully stopped")
	return nil
}
