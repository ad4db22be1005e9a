package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/mailfront/internal/logging"
)

// Audited actions. Only mutations and token lifecycle events are audited;
// reads are covered by metrics.
const (
	ActionSend    = "mail.send"
	ActionDelete  = "mail.delete"
	ActionLogin   = "session.login"
	ActionRefresh = "session.refresh"
	ActionLogout  = "session.logout"
)

// AuditEvent captures one audited action.
//
// # Privacy Considerations
//
// Recipient contains PII. It is only logged in clear when the audit logger is
// configured with IncludePII; otherwise its hash and domain are logged.
type AuditEvent struct {
	Action    string
	Source    string // proxy, cli, mcp
	AccountID string
	MessageID string
	Recipient string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewAuditEvent creates an AuditEvent with timing started.
// Call Complete when the action finishes.
func NewAuditEvent(action, source string) *AuditEvent {
	return &AuditEvent{
		Action:    action,
		Source:    source,
		StartTime: time.Now(),
	}
}

// WithAccount sets the provider account id.
func (e *AuditEvent) WithAccount(accountID string) *AuditEvent {
	e.AccountID = accountID
	return e
}

// WithMessage sets the affected message id.
func (e *AuditEvent) WithMessage(messageID string) *AuditEvent {
	e.MessageID = messageID
	return e
}

// WithRecipient sets the recipient address of an outgoing message.
func (e *AuditEvent) WithRecipient(recipient string) *AuditEvent {
	e.Recipient = recipient
	return e
}

// WithSpanContext extracts the trace id from the current span.
func (e *AuditEvent) WithSpanContext(ctx context.Context) *AuditEvent {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		e.TraceID = span.SpanContext().TraceID().String()
	}
	return e
}

// Complete marks the event as finished. A nil err means success.
func (e *AuditEvent) Complete(err error) *AuditEvent {
	e.Duration = time.Since(e.StartTime)
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Status returns "success" or "error" based on the Success field.
func (e *AuditEvent) Status() string {
	if e.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the slog attributes for the event. With includePII the
// recipient is logged in clear, otherwise as a hash and domain.
func (e *AuditEvent) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", e.Action),
		slog.Duration(logging.KeyDuration, e.Duration),
		logging.Status(e.Status()),
	}

	if e.Source != "" {
		attrs = append(attrs, slog.String("source", e.Source))
	}
	if e.AccountID != "" {
		attrs = append(attrs, logging.Account(e.AccountID))
	}
	if e.MessageID != "" {
		attrs = append(attrs, logging.Message(e.MessageID))
	}
	if e.Recipient != "" {
		if includePII {
			attrs = append(attrs, slog.String("recipient", e.Recipient))
		} else {
			attrs = append(attrs,
				slog.String("recipient_hash", logging.AnonymizeEmail(e.Recipient)),
				slog.String("recipient_domain", logging.ExtractDomain(e.Recipient)),
			)
		}
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, e.Error))
	}

	return attrs
}

// AuditLogger writes audit events as structured log records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that anonymizes recipients.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log writes the event. Failed actions are logged at warn level.
// A nil AuditLogger discards the event.
func (al *AuditLogger) Log(ctx context.Context, e *AuditEvent) {
	if al == nil || !al.enabled || e == nil {
		return
	}

	level := slog.LevelInfo
	msg := "audit"
	if !e.Success {
		level = slog.LevelWarn
		msg = "audit_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, e.LogAttrs(al.includePII)...)
}
