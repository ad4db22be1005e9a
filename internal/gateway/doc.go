// Package gateway translates mail operations into calls against the
// provider REST API.
//
// Client is stateless: every call takes the access token and account id it
// needs, issues exactly one HTTP request and maps the outcome onto a
// GatewayError. A provider 401 surfaces as KindUnauthorized with
// NeedsRefresh set, and is never retried by Client.
//
// SessionGateway wraps a Client for callers that own a token session. On
// KindUnauthorized it refreshes once through the session and retries the
// original call once.
package gateway
