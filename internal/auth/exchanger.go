package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/mailfront/internal/instrumentation"
	"github.com/teemow/mailfront/internal/logging"
)

// Provider endpoints.
const (
	DefaultAuthURL  = "https://accounts.zoho.com/oauth/v2/auth"
	DefaultTokenURL = "https://accounts.zoho.com/oauth/v2/token"
)

// DefaultScopes are requested on login. The provider expects them joined by commas.
var DefaultScopes = []string{"ZohoMail.messages.ALL", "ZohoMail.accounts.READ"}

const defaultTimeout = 30 * time.Second

// Config configures an Exchanger.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// AuthURL and TokenURL default to the provider endpoints.
	AuthURL  string
	TokenURL string

	// Scopes default to DefaultScopes.
	Scopes []string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Exchanger performs token endpoint grants. It is safe for concurrent use.
type Exchanger struct {
	oauth      *oauth2.Config
	scopes     string
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// NewExchanger creates an Exchanger. Client credentials travel in the
// request parameters, as the provider requires.
func NewExchanger(cfg Config) *Exchanger {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		scopes:     strings.Join(cfg.Scopes, ","),
		httpClient: cfg.HTTPClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With(slog.String("component", "auth")),
	}
}

// AuthCodeURL returns the provider consent page URL for the given state.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("scope", e.scopes),
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode trades an authorization code for a token pair.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	if strings.TrimSpace(code) == "" {
		e.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultMissing)
		return TokenPair{}, &AuthError{Reason: ReasonMissingCode, Message: "Authorization code is required"}
	}

	ctx, span := instrumentation.StartOAuthSpan(ctx, "authorization_code")
	defer span.End()

	tok, err := e.oauth.Exchange(e.clientContext(ctx), code)
	if err == nil && tok.AccessToken == "" {
		err = errors.New("server response missing access_token")
	}
	if err != nil {
		authErr := classify("failed to exchange authorization code", err)
		e.metrics.RecordOAuthExchange(ctx, resultFor(authErr))
		instrumentation.SetSpanError(span, authErr)
		e.logger.Warn("authorization code exchange failed",
			slog.String("reason", string(authErr.Reason)), logging.Err(err))
		return TokenPair{}, authErr
	}

	e.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)
	e.logger.Debug("authorization code exchanged",
		slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))

	return pairFromToken(tok, ""), nil
}

// Refresh obtains a new access token. The previous access token is not
// revoked. When the provider omits a refresh token in its answer, the given
// one is kept.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		e.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultMissing)
		return TokenPair{}, &AuthError{Reason: ReasonMissingCode, Message: "Refresh token is required"}
	}

	ctx, span := instrumentation.StartOAuthSpan(ctx, "refresh_token")
	defer span.End()

	// An empty access token forces the token source to hit the endpoint.
	ts := e.oauth.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err == nil && tok.AccessToken == "" {
		err = errors.New("server response missing access_token")
	}
	if err != nil {
		authErr := classify("failed to refresh token", err)
		e.metrics.RecordOAuthTokenRefresh(ctx, resultFor(authErr))
		instrumentation.SetSpanError(span, authErr)
		e.logger.Warn("token refresh failed",
			slog.String("reason", string(authErr.Reason)), logging.Err(err))
		return TokenPair{}, authErr
	}

	e.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)

	return pairFromToken(tok, refreshToken), nil
}

func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

func pairFromToken(tok *oauth2.Token, fallbackRefresh string) TokenPair {
	pair := TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = fallbackRefresh
	}
	if pair.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		pair.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return pair
}

// classify maps a token endpoint failure onto the AuthError taxonomy.
// Transport failures and cancellations are network errors; anything the
// endpoint itself answered is a rejection.
func classify(msg string, err error) *AuthError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AuthError{Reason: ReasonNetwork, Message: msg, Err: err}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		msg = msg + ": " + retrieveErr.ErrorCode
	}
	return &AuthError{Reason: ReasonProviderRejected, Message: msg, Err: err}
}

func resultFor(err *AuthError) string {
	switch err.Reason {
	case ReasonNetwork:
		return instrumentation.OAuthResultNetwork
	case ReasonMissingCode:
		return instrumentation.OAuthResultMissing
	default:
		return instrumentation.OAuthResultRejected
	}
}
