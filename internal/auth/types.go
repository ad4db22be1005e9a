package auth

import (
	"errors"
	"fmt"
)

// Persisted key names for the token pair.
const (
	KeyAccessToken  = "zoho_token"
	KeyRefreshToken = "zoho_refresh_token"
)

// TokenPair is the credential pair issued by the provider.
type TokenPair struct {
	AccessToken  string `json:"zoho_token"`
	RefreshToken string `json:"zoho_refresh_token"`

	// ExpiresIn is the access token lifetime in seconds as reported by the
	// provider. Zero when unknown. Not persisted.
	ExpiresIn int64 `json:"-"`
}

// Reason classifies an AuthError.
type Reason string

const (
	// ReasonMissingCode means the code or refresh token was blank. No request was sent.
	ReasonMissingCode Reason = "missing_code"
	// ReasonProviderRejected means the token endpoint answered with an error
	// or without an access token.
	ReasonProviderRejected Reason = "provider_rejected"
	// ReasonNetwork means the token endpoint could not be reached.
	ReasonNetwork Reason = "network"
)

// AuthError is returned by every token endpoint operation.
type AuthError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsReason reports whether err is an AuthError with the given reason.
func IsReason(err error, reason Reason) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Reason == reason
}

// ErrNotAuthenticated is returned when a session operation needs a stored
// token pair and none exists.
var ErrNotAuthenticated = errors.New("not authenticated: run 'mailfront login' first")

// State is the session state of a Manager.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}
