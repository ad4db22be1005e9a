// Package instrumentation provides OpenTelemetry instrumentation for mailfront.
//
// # Metrics
//
// Proxy:
//   - http_requests_total: Counter of proxy requests by method, path, and status
//   - http_request_duration_seconds: Histogram of proxy request durations
//
// Mail provider:
//   - provider_api_operations_total: Counter of provider calls by operation and status
//   - provider_api_operation_duration_seconds: Histogram of provider call durations
//
// OAuth:
//   - oauth_exchange_total: Counter of authorization code exchanges by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// MCP:
//   - mcp_tool_invocations_total: Counter of tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of tool execution durations
//
// # Tracing
//
// Client spans are created for provider calls (provider.<operation>) and token
// endpoint calls (oauth.<grant_type>); server spans for MCP tools (tool.<name>).
//
// # Audit
//
// Mail mutations (send, delete) and session lifecycle events are written by
// AuditLogger. Recipient addresses are hashed unless IncludePII is set.
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mailfront)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
package instrumentation
