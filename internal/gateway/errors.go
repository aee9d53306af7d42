package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures.
type Kind string

const (
	// KindNetwork covers transport failures, timeouts and 5xx answers.
	KindNetwork Kind = "network"
	// KindAuth covers a missing or rejected access token.
	KindAuth Kind = "auth"
	// KindRejected is a well-formed envelope with success=false.
	KindRejected Kind = "rejected"
	// KindNotFound is a 404.
	KindNotFound Kind = "not_found"
	// KindContract is a response that does not match the expected shape.
	KindContract Kind = "contract"
)

var (
	// ErrNoAccessToken is returned when the token source has nothing to send.
	ErrNoAccessToken = errors.New("gateway: no access token")
)

// Error is the failure type of every gateway call.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("gateway: %s: %s (%d): %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("gateway: %s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("gateway: %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("gateway: %s: %s (%d)", e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a gateway error, or "" for anything else.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// IsAuth reports whether err means the session has to log in again.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
