package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/mailfront/internal/auth"
	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/instrumentation"
)

// TokenGrants performs the token endpoint grants. *auth.Exchanger implements it.
type TokenGrants interface {
	ExchangeCode(ctx context.Context, code string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// MailGateway performs the provider calls. *gateway.Client implements it.
type MailGateway interface {
	ListAccounts(ctx context.Context, accessToken string) (gateway.Payload[[]gateway.Account], error)
	ListFolders(ctx context.Context, creds gateway.Credentials) (gateway.Payload[[]gateway.Folder], error)
	ListMessages(ctx context.Context, creds gateway.Credentials, folderID string) (gateway.Payload[[]gateway.MessageSummary], error)
	GetMessage(ctx context.Context, creds gateway.Credentials, folderID, messageID string) (gateway.Payload[gateway.MessageDetail], error)
	SendMessage(ctx context.Context, creds gateway.Credentials, msg gateway.OutgoingMessage) (gateway.Payload[gateway.SentMessage], error)
	DeleteMessage(ctx context.Context, creds gateway.Credentials, messageID string) (gateway.Payload[struct{}], error)
}

// ProxyConfig configures a Proxy.
type ProxyConfig struct {
	Grants  TokenGrants
	Gateway MailGateway

	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int
	// TrustProxy makes the rate limiter key on X-Forwarded-For and X-Real-IP.
	TrustProxy bool

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

// Proxy is the stateless HTTP front of the token grants and mail operations.
type Proxy struct {
	grants  TokenGrants
	gateway MailGateway
	limiter *RateLimiter
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger
}

// NewProxy creates a Proxy.
func NewProxy(cfg ProxyConfig) *Proxy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Proxy{
		grants:  cfg.Grants,
		gateway: cfg.Gateway,
		metrics: cfg.Metrics,
		audit:   cfg.Audit,
		logger:  cfg.Logger.With(slog.String("component", "proxy")),
	}
	if cfg.RateLimit > 0 {
		p.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.TrustProxy)
	}
	return p
}

// Close stops background work of the proxy.
func (p *Proxy) Close() {
	p.limiter.Stop()
}

type route struct {
	path    string
	methods []string
	handle  http.HandlerFunc
}

func (p *Proxy) routes() []route {
	return []route{
		{"/auth/token", []string{http.MethodPost}, p.handleToken},
		{"/auth/refresh", []string{http.MethodPost}, p.handleRefresh},
		{"/accounts", []string{http.MethodGet}, p.handleAccounts},
		{"/emails/folders", []string{http.MethodGet}, p.handleFolders},
		{"/emails/list", []string{http.MethodGet}, p.handleList},
		{"/emails/get", []string{http.MethodGet}, p.handleGet},
		{"/emails/send", []string{http.MethodPost}, p.handleSend},
		{"/emails/delete", []string{http.MethodPost, http.MethodDelete}, p.handleDelete},
	}
}

// Register adds the proxy routes to mux.
func (p *Proxy) Register(mux *http.ServeMux) {
	for _, rt := range p.routes() {
		h := p.observe(rt.path, allowMethods(rt.methods, rt.handle))
		mux.Handle(rt.path, h)
	}
}

// Handler returns the proxy routes wrapped in the middleware chain, plus the
// health endpoints of health when it is not nil.
func (p *Proxy) Handler(health *HealthChecker) http.Handler {
	mux := http.NewServeMux()
	p.Register(mux)
	if health != nil {
		health.RegisterHealthEndpoints(mux)
	}

	var h http.Handler = mux
	h = p.limiter.Middleware(h)
	h = p.logRequests(h)
	h = withRequestID(h)
	return otelhttp.NewHandler(h, "mailfront.proxy",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// observe records the HTTP metrics of one route.
func (p *Proxy) observe(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		p.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}
