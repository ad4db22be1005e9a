package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailfront/internal/auth"
	"github.com/teemow/mailfront/internal/gateway"
)

const (
	validToken   = "1000.valid"
	expiredToken = "1000.expired"
)

// fakeGrants answers token grants from fixed values.
type fakeGrants struct {
	pair auth.TokenPair
	err  error
}

func (f *fakeGrants) ExchangeCode(_ context.Context, code string) (auth.TokenPair, error) {
	if strings.TrimSpace(code) == "" {
		return auth.TokenPair{}, &auth.AuthError{Reason: auth.ReasonMissingCode, Message: "Authorization code is required"}
	}
	return f.pair, f.err
}

func (f *fakeGrants) Refresh(_ context.Context, refreshToken string) (auth.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return auth.TokenPair{}, &auth.AuthError{Reason: auth.ReasonMissingCode, Message: "Refresh token is required"}
	}
	return f.pair, f.err
}

// mailProvider stubs the provider API. Requests with the expired token get a 401.
type mailProvider struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	failPath string
}

func (m *mailProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	m.mu.Lock()
	m.requests = append(m.requests, r.Method+" "+r.URL.Path)
	m.bodies = append(m.bodies, string(body))
	failPath := m.failPath
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Header.Get("Authorization") == gateway.DefaultAuthScheme+" "+expiredToken:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"data":{"errorCode":"INVALID_OAUTHTOKEN"}}`)
	case r.URL.Path == failPath:
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"data":{"errorCode":"INTERNAL"}}`)
	case r.URL.Path == "/api/accounts":
		_, _ = io.WriteString(w, `{"status":{"code":200},"data":[{"accountId":"A1","primaryEmailAddress":"me@example.com"}]}`)
	case strings.HasSuffix(r.URL.Path, "/folders"):
		_, _ = io.WriteString(w, `{"status":{"code":200},"data":[{"folderId":"F1","folderName":"Inbox","folderType":"Inbox"}]}`)
	case strings.HasSuffix(r.URL.Path, "/messages/view"):
		_, _ = io.WriteString(w, `{"status":{"code":200},"data":[{"messageId":"M1","subject":"Hi"}]}`)
	case strings.HasSuffix(r.URL.Path, "/content"):
		_, _ = io.WriteString(w, `{"status":{"code":200},"data":{"content":"<p>Hello</p>"}}`)
	case r.Method == http.MethodPost:
		_, _ = io.WriteString(w, `{"status":{"code":200},"data":{"messageId":"S1"}}`)
	default:
		_, _ = io.WriteString(w, `{"status":{"code":200,"description":"success"}}`)
	}
}

func (m *mailProvider) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func (m *mailProvider) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		return ""
	}
	return m.bodies[len(m.bodies)-1]
}

func newTestProxy(t *testing.T, grants *fakeGrants) (http.Handler, *mailProvider) {
	t.Helper()
	provider := &mailProvider{}
	srv := httptest.NewServer(provider)
	t.Cleanup(srv.Close)

	p := NewProxy(ProxyConfig{
		Grants:  grants,
		Gateway: gateway.New(gateway.Config{BaseURL: srv.URL + "/api", HTTPClient: srv.Client()}),
	})
	t.Cleanup(p.Close)
	return p.Handler(NewHealthChecker("test")), provider
}

func do(t *testing.T, h http.Handler, method, target string, body any, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestProxy_Token(t *testing.T) {
	h, _ := newTestProxy(t, &fakeGrants{pair: auth.TokenPair{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600}})

	rec, body := do(t, h, http.MethodPost, "/auth/token", map[string]string{"code": "c0de"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "at", body["access_token"])
	assert.Equal(t, "rt", body["refresh_token"])
	assert.EqualValues(t, 3600, body["expires_in"])

	rec, body = do(t, h, http.MethodPost, "/auth/token", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Authorization code is required", body["error"])

	rec, body = do(t, h, http.MethodGet, "/auth/token", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])
}

func TestProxy_TokenFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"provider rejected", &auth.AuthError{Reason: auth.ReasonProviderRejected, Message: "failed to exchange authorization code: invalid_code"}},
		{"network", &auth.AuthError{Reason: auth.ReasonNetwork, Message: "failed to exchange authorization code"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestProxy(t, &fakeGrants{err: tt.err})
			rec, body := do(t, h, http.MethodPost, "/auth/token", map[string]string{"code": "c0de"}, nil)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestProxy_Refresh(t *testing.T) {
	h, _ := newTestProxy(t, &fakeGrants{pair: auth.TokenPair{AccessToken: "at2", RefreshToken: "rt"}})

	rec, body := do(t, h, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": "rt"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "at2", body["access_token"])
	_, hasExpiry := body["expires_in"]
	assert.False(t, hasExpiry, "unknown expiry is omitted")

	rec, body = do(t, h, http.MethodPost, "/auth/refresh", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token is required", body["error"])
}

func TestProxy_ReadEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCall string
	}{
		{"accounts", "/accounts?token=" + validToken, "GET /api/accounts"},
		{"folders", "/emails/folders?token=" + validToken + "&accountId=A1", "GET /api/accounts/A1/folders"},
		{"list", "/emails/list?token=" + validToken + "&accountId=A1&folderId=F1", "GET /api/accounts/A1/messages/view"},
		{"get", "/emails/get?token=" + validToken + "&accountId=A1&folderId=F1&messageId=M1", "GET /api/accounts/A1/folders/F1/messages/M1/content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, provider := newTestProxy(t, &fakeGrants{})

			rec, body := do(t, h, http.MethodGet, tt.target, nil, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, body, "data", "provider payload is relayed unchanged")
			assert.Contains(t, body, "status")
			assert.Equal(t, []string{tt.wantCall}, provider.calls())
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestProxy_BearerHeader(t *testing.T) {
	h, provider := newTestProxy(t, &fakeGrants{})

	rec, _ := do(t, h, http.MethodGet, "/emails/folders?accountId=A1", nil,
		http.Header{"Authorization": {"Bearer " + validToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, provider.calls(), 1)
}

func TestProxy_MissingParameters(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		body    any
		wantErr string
	}{
		{"accounts without token", http.MethodGet, "/accounts", nil, "token is required"},
		{"folders without account", http.MethodGet, "/emails/folders?token=" + validToken, nil, "accountId is required"},
		{"list without folder", http.MethodGet, "/emails/list?token=" + validToken + "&accountId=A1", nil, "folderId is required"},
		{"get without message", http.MethodGet, "/emails/get?token=" + validToken + "&accountId=A1&folderId=F1", nil, "messageId is required"},
		{"send without recipient", http.MethodPost, "/emails/send", map[string]string{"token": validToken, "accountId": "A1", "subject": "s"}, "to is required"},
		{"delete without message", http.MethodPost, "/emails/delete", map[string]string{"token": validToken, "accountId": "A1"}, "messageId is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, provider := newTestProxy(t, &fakeGrants{})

			rec, body := do(t, h, tt.method, tt.target, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, body["error"])
			for _, c := range provider.calls() {
				assert.Equal(t, "GET /api/accounts", c, "only the sender lookup may reach the provider")
			}
		})
	}
}

func TestProxy_Unauthorized(t *testing.T) {
	h, provider := newTestProxy(t, &fakeGrants{})

	rec, body := do(t, h, http.MethodGet, "/emails/list?token="+expiredToken+"&accountId=A1&folderId=F1", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, true, body["needsRefresh"])
	assert.Len(t, provider.calls(), 1, "the proxy never retries")
}

func TestProxy_UpstreamFailure(t *testing.T) {
	h, provider := newTestProxy(t, &fakeGrants{})
	provider.failPath = "/api/accounts/A1/messages/view"

	rec, body := do(t, h, http.MethodGet, "/emails/list?token="+validToken+"&accountId=A1&folderId=F1", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to list emails", body["error"])
}

func TestProxy_SendResolvesFromAddress(t *testing.T) {
	h, provider := newTestProxy(t, &fakeGrants{})

	rec, body := do(t, h, http.MethodPost, "/emails/send", map[string]string{
		"token": validToken, "accountId": "A1", "to": "bob@example.com", "subject": "Hi", "body": "Hello",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, body, "data")

	assert.Equal(t, []string{"GET /api/accounts", "POST /api/accounts/A1/messages"}, provider.calls())
	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(provider.lastBody()), &sent))
	assert.Equal(t, map[string]string{
		"fromAddress": "me@example.com",
		"toAddress":   "bob@example.com",
		"subject":     "Hi",
		"content":     "Hello",
	}, sent)
}

func TestProxy_SendWithExplicitFrom(t *testing.T) {
	h, provider := newTestProxy(t, &fakeGrants{})

	rec, _ := do(t, h, http.MethodPost, "/emails/send", map[string]string{
		"token": validToken, "accountId": "A1", "to": "bob@example.com", "subject": "Hi", "fromAddress": "alias@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"POST /api/accounts/A1/messages"}, provider.calls())
	assert.Contains(t, provider.lastBody(), "alias@example.com")
}

func TestProxy_Delete(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			h, provider := newTestProxy(t, &fakeGrants{})

			rec, body := do(t, h, method, "/emails/delete", map[string]string{
				"token": validToken, "accountId": "A1", "messageId": "M1",
			}, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, body, "status")
			assert.Equal(t, []string{"DELETE /api/accounts/A1/messages/M1"}, provider.calls())
		})
	}

	h, _ := newTestProxy(t, &fakeGrants{})
	rec, _ := do(t, h, http.MethodGet, "/emails/delete", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProxy_DeleteQueryParameters(t *testing.T) {
	h, provider := newTestProxy(t, &fakeGrants{})

	rec, _ := do(t, h, http.MethodDelete, "/emails/delete?token="+validToken+"&accountId=A1&messageId=M9", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"DELETE /api/accounts/A1/messages/M9"}, provider.calls())
}

func TestProxy_InvalidBody(t *testing.T) {
	h, _ := newTestProxy(t, &fakeGrants{})

	req := httptest.NewRequest(http.MethodPost, "/emails/send", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxy_RequestIDIsKept(t *testing.T) {
	h, _ := newTestProxy(t, &fakeGrants{})

	rec, _ := do(t, h, http.MethodGet, "/healthz", nil, http.Header{RequestIDHeader: {"req-123"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", tt.header)
			assert.Equal(t, tt.want, bearerToken(r))
		})
	}
}
