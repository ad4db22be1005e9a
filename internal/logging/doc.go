// Package logging provides structured logging utilities for mailfront.
//
// All components log through log/slog. This package centralizes the attribute
// names so that proxy requests, provider calls, and token lifecycle events can
// be correlated in one log stream.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "gateway.list_messages")
//	logger.Info("listed messages",
//	    logging.Account(accountID),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - Access and refresh tokens are never logged; use SanitizeToken.
//   - Email addresses are hashed with AnonymizeEmail before logging.
package logging
