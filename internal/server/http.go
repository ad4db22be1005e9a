package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Proxy listener timeouts. Provider calls time out after 30 seconds, so the
// write timeout leaves room for one refresh round trip by the caller.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 45 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
)

// HTTPServer serves the proxy and health endpoints.
type HTTPServer struct {
	httpServer *http.Server
	health     *HealthChecker
	addr       string
}

// NewHTTPServer creates a server for handler on addr.
func NewHTTPServer(addr string, handler http.Handler, health *HealthChecker) *HTTPServer {
	return &HTTPServer{
		addr:   addr,
		health: health,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
		},
	}
}

// Serve serves on ln until Shutdown. It never returns http.ErrServerClosed.
func (s *HTTPServer) Serve(ln net.Listener) error {
	s.addr = ln.Addr().String()
	slog.Info("starting proxy server", "addr", s.addr)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("proxy server listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Shutdown fails the readiness probe and then drains open connections.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.health != nil {
		s.health.MarkShuttingDown()
	}
	slog.Info("shutting down proxy server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address of the server.
func (s *HTTPServer) Addr() string {
	return s.addr
}
