package bili

import (
	"errors"
	"fmt"
)

// Envelope codes with dedicated handling. Everything else non-zero is a
// plain application error.
const (
	codeSessionInvalid   = -101
	codeChallengeExpired = 86038
	codeChallengeOK      = 0
)

var (
	// ErrNotLoggedIn is returned when an authenticated call is attempted
	// without a stored credential.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrChallengeExpired is returned when the login QR code expired before
	// the user confirmed it. The flow must be restarted for a fresh code.
	ErrChallengeExpired = errors.New("login challenge expired")

	// ErrNoCredential is returned when a login poll succeeded but the
	// response did not carry the full cookie set.
	ErrNoCredential = errors.New("login response missing credential cookies")

	// ErrCorruptCredential is returned by Load when the credential file
	// could not be parsed. The file has already been removed.
	ErrCorruptCredential = errors.New("credential file corrupt")

	// ErrMalformedPayload marks a response whose envelope decoded but whose
	// data section is missing fields the caller requires.
	ErrMalformedPayload = errors.New("malformed response payload")
)

// APIError is a non-zero application code returned inside a response
// envelope, carrying the server-provided message.
type APIError struct {
	Code     int
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: api code %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: api code %d: %s", e.Endpoint, e.Code, e.Message)
}

// SessionInvalid reports whether the error is the session-expired sentinel.
func (e *APIError) SessionInvalid() bool {
	return e.Code == codeSessionInvalid
}
