package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a GatewayError.
type Kind string

const (
	// KindUnauthorized means the provider rejected the access token.
	KindUnauthorized Kind = "unauthorized"
	// KindUpstreamFailure covers any other provider error or transport failure.
	KindUpstreamFailure Kind = "upstream_failure"
	// KindInvalidRequest means a required parameter was missing. No request was sent.
	KindInvalidRequest Kind = "invalid_request"
)

// GatewayError is returned by every gateway operation.
type GatewayError struct {
	Kind      Kind
	Operation string
	// Message is safe to show to end users.
	Message string
	// Status is the provider HTTP status, zero for transport failures.
	Status int
	// NeedsRefresh is set for KindUnauthorized.
	NeedsRefresh bool
	// Err holds the underlying cause, if any.
	Err error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Operation, e.Kind, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a GatewayError of the given kind.
func IsKind(err error, kind Kind) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == kind
}

// IsUnauthorized reports whether err asks the caller to refresh its token.
func IsUnauthorized(err error) bool {
	return IsKind(err, KindUnauthorized)
}

func invalidRequest(op, param string) *GatewayError {
	return &GatewayError{
		Kind:      KindInvalidRequest,
		Operation: op,
		Message:   param + " is required",
	}
}

// failureMessages are the user facing messages per operation.
var failureMessages = map[string]string{
	opAccounts: "Failed to fetch accounts",
	opFolders:  "Failed to fetch folders",
	opList:     "Failed to list emails",
	opGet:      "Failed to get email",
	opSend:     "Failed to send email",
	opDelete:   "Failed to delete email",
}
