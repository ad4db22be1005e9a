// Package server provides the mailfront HTTP proxy and its operational
// endpoints.
//
// # Proxy
//
// Proxy exposes the token grants under /auth and the mail operations under
// /accounts and /emails. It is stateless: every request carries its own
// access token, either as a "token" parameter or as a Bearer Authorization
// header, and nothing is persisted between requests. A provider 401 is
// answered with {"error": "Unauthorized", "needsRefresh": true} and left to
// the caller to refresh.
//
// # Operational endpoints
//
// HealthChecker serves /healthz and /readyz for Kubernetes probes.
// MetricsServer serves Prometheus metrics on a dedicated port so that
// operational metrics are not reachable through the proxy listener.
//
// # Middleware
//
// Every proxy request passes through request id assignment, per client
// rate limiting, structured request logging, HTTP metrics and OpenTelemetry
// server spans.
package server
