package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/mailfront/internal/instrumentation"
	"github.com/teemow/mailfront/internal/logging"
)

const (
	// DefaultBaseURL is the provider mail API root.
	DefaultBaseURL = "https://mail.zoho.com/api"
	// DefaultAuthScheme prefixes the access token in the Authorization header.
	DefaultAuthScheme = "Zoho-oauthtoken"

	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of a provider error body is kept for logs.
	maxErrorBody = 2048

	// DefaultMaxResponseBytes bounds a provider response body.
	DefaultMaxResponseBytes = 16 << 20
)

// Operation names, shared with metrics and logs.
const (
	opAccounts = instrumentation.OperationAccounts
	opFolders  = instrumentation.OperationFolders
	opList     = instrumentation.OperationList
	opGet      = instrumentation.OperationGet
	opSend     = instrumentation.OperationSend
	opDelete   = instrumentation.OperationDelete
)

// Config configures a Client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// AuthScheme defaults to DefaultAuthScheme.
	AuthScheme string
	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client
	// MaxResponseBytes defaults to DefaultMaxResponseBytes.
	MaxResponseBytes int64

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Client is the stateless mail gateway. It is safe for concurrent use.
type Client struct {
	baseURL    string
	authScheme string
	httpClient *http.Client
	maxBody    int64
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authScheme: cfg.AuthScheme,
		httpClient: cfg.HTTPClient,
		maxBody:    cfg.MaxResponseBytes,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With(slog.String("component", "gateway")),
	}
}

// request describes one provider call.
type request struct {
	op        string
	method    string
	segments  []string
	query     url.Values
	body      any
	token     string
	accountID string
}

func (c *Client) endpoint(segments []string, query url.Values) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// do issues the call and returns the raw response body on 2xx.
func (c *Client) do(ctx context.Context, r request) (json.RawMessage, error) {
	ctx, span := instrumentation.StartProviderSpan(ctx, r.op,
		instrumentation.NewSpanAttributeBuilder().WithAccount(r.accountID).Build()...)
	defer span.End()

	start := time.Now()
	raw, err := c.roundTrip(ctx, r)
	duration := time.Since(start)

	logger := c.logger.With(logging.Operation(r.op))
	if r.accountID != "" {
		logger = logger.With(logging.Account(r.accountID))
	}

	if err != nil {
		c.metrics.RecordProviderOperation(ctx, r.op, instrumentation.StatusError, r.accountID, duration)
		instrumentation.SetSpanError(span, err)
		logger.Warn("provider call failed",
			slog.Duration(logging.KeyDuration, duration), logging.Err(err))
		return nil, err
	}

	c.metrics.RecordProviderOperation(ctx, r.op, instrumentation.StatusSuccess, r.accountID, duration)
	instrumentation.SetSpanSuccess(span)
	logger.Debug("provider call succeeded", slog.Duration(logging.KeyDuration, duration))
	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) (json.RawMessage, error) {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, c.upstream(r.op, 0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.segments, r.query), body)
	if err != nil {
		return nil, c.upstream(r.op, 0, err)
	}
	req.Header.Set("Authorization", c.authScheme+" "+r.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.upstream(r.op, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, c.upstream(r.op, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if int64(len(data)) > c.maxBody {
		return nil, c.upstream(r.op, resp.StatusCode, fmt.Errorf("response exceeds %d bytes", c.maxBody))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &GatewayError{
			Kind:         KindUnauthorized,
			Operation:    r.op,
			Message:      "Unauthorized",
			Status:       resp.StatusCode,
			NeedsRefresh: true,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, c.upstream(r.op, resp.StatusCode, providerDetail(data))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	return json.RawMessage(data), nil
}

func (c *Client) upstream(op string, status int, err error) *GatewayError {
	return &GatewayError{
		Kind:      KindUpstreamFailure,
		Operation: op,
		Message:   failureMessages[op],
		Status:    status,
		Err:       err,
	}
}

// providerDetail extracts the provider's status description from an error body.
func providerDetail(body []byte) error {
	var envelope struct {
		Status struct {
			Code        int    `json:"code"`
			Description string `json:"description"`
		} `json:"status"`
		Data struct {
			ErrorCode string `json:"errorCode"`
		} `json:"data"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Status.Description != "" {
		if envelope.Data.ErrorCode != "" {
			return fmt.Errorf("%s: %s", envelope.Status.Description, envelope.Data.ErrorCode)
		}
		return errors.New(envelope.Status.Description)
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return errors.New(strings.TrimSpace(string(body)))
}

// decode reads the data field of a provider envelope into a Payload.
func decode[T any](op string, raw json.RawMessage) (Payload[T], error) {
	p := Payload[T]{Raw: raw}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return p, &GatewayError{Kind: KindUpstreamFailure, Operation: op, Message: failureMessages[op], Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(envelope.Data, &p.Data); err != nil {
		return p, &GatewayError{Kind: KindUpstreamFailure, Operation: op, Message: failureMessages[op], Err: fmt.Errorf("decode response: %w", err)}
	}
	return p, nil
}
