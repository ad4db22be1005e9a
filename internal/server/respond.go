package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/mailfront/internal/auth"
	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/logging"
)

const (
	msgUnauthorized     = "Unauthorized"
	msgMethodNotAllowed = "Method not allowed"
	msgInternal         = "Internal server error"
	msgInvalidBody      = "Invalid request body"
	msgRateLimited      = "Too many requests"
)

// ErrorResponse is the JSON body of every failed proxy request.
type ErrorResponse struct {
	Error        string `json:"error"`
	NeedsRefresh bool   `json:"needsRefresh,omitempty"`
}

// TokenResponse is the JSON body of a successful token grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw relays a provider payload unchanged.
func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps an error onto the proxy's status code and user facing message.
func statusFor(err error) (int, ErrorResponse) {
	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case gateway.KindUnauthorized:
			return http.StatusUnauthorized, ErrorResponse{Error: msgUnauthorized, NeedsRefresh: true}
		case gateway.KindInvalidRequest:
			return http.StatusBadRequest, ErrorResponse{Error: gwErr.Message}
		default:
			return http.StatusInternalServerError, ErrorResponse{Error: gwErr.Message}
		}
	}

	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		if authErr.Reason == auth.ReasonMissingCode {
			return http.StatusBadRequest, ErrorResponse{Error: authErr.Message}
		}
		return http.StatusInternalServerError, ErrorResponse{Error: authErr.Message}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: msgInternal}
}

func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	p.logger.LogAttrs(r.Context(), level, "proxy request failed",
		logging.RequestID(RequestIDFrom(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Int("http_status", status),
		logging.Err(err))
	writeJSON(w, status, body)
}
