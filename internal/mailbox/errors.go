package mailbox

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned after the provider rejected the session token
// and the refresh attempt failed. The session has been cleared.
var ErrSessionExpired = errors.New("session expired, please log in again")

// ErrNotLoaded is returned when an operation needs an account and Load has
// not completed.
var ErrNotLoaded = errors.New("mailbox not loaded")

// ErrNoSelection is returned when an operation needs an opened message.
var ErrNoSelection = errors.New("no message selected")

// UiErrorKind classifies a UiError.
type UiErrorKind string

// UiValidation marks input rejected before any network call.
const UiValidation UiErrorKind = "validation"

// UiError is a user input error.
type UiError struct {
	Kind    UiErrorKind
	Message string
}

func (e *UiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsValidation reports whether err is a validation UiError.
func IsValidation(err error) bool {
	var uiErr *UiError
	return errors.As(err, &uiErr) && uiErr.Kind == UiValidation
}
