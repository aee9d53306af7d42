package shared

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects a sign-in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing means the request or the session carries no token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch means the submitted token is not the session's.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
