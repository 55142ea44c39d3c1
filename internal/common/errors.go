// Package common holds the error taxonomy shared by the auth, user and note
// layers. Callers match these values with errors.Is; wrapped causes are for
// logs only and never reach a client.
package common

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated covers a missing, invalid or stale session credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when a valid identity targets a resource it does not own.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned for duplicate registrations and email collisions.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials is returned for both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken folds bad signature, malformed payload and expiry together.
	ErrInvalidToken = errors.New("invalid token")
	ErrNotFound     = errors.New("not found")
	// ErrDeliveryFailed wraps email-delivery failures.
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
)

// Classification is the client-facing rendering of an error.
type Classification struct {
	Status  int
	Code    string
	Message string
}

// Classify maps an error onto an HTTP status, a stable code and a public
// message. Unknown errors become 500 so collaborator details do not leak.
func Classify(err error) Classification {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return Classification{http.StatusUnauthorized, "unauthenticated", "not authenticated"}
	case errors.Is(err, ErrForbidden):
		return Classification{http.StatusForbidden, "forbidden", "access denied"}
	case errors.Is(err, ErrConflict):
		return Classification{http.StatusConflict, "conflict", "email already registered"}
	case errors.Is(err, ErrInvalidCredentials):
		return Classification{http.StatusUnauthorized, "invalid_credentials", "invalid credentials"}
	case errors.Is(err, ErrInvalidToken):
		return Classification{http.StatusBadRequest, "invalid_token", "invalid or expired token"}
	case errors.Is(err, ErrNotFound):
		return Classification{http.StatusNotFound, "not_found", "resource not found"}
	case errors.Is(err, ErrDeliveryFailed):
		return Classification{http.StatusBadGateway, "delivery_failed", "verification email could not be sent"}
	case errors.Is(err, ErrInvalidInput):
		return Classification{http.StatusBadRequest, "invalid_input", invalidInputMessage(err)}
	default:
		return Classification{http.StatusInternalServerError, "internal", "internal server error"}
	}
}

// InvalidInput builds a validation error whose message is safe to show.
func InvalidInput(msg string) error {
	return &inputError{msg: msg}
}

type inputError struct{ msg string }

func (e *inputError) Error() string { return "invalid input: " + e.msg }
func (e *inputError) Unwrap() error { return ErrInvalidInput }

func invalidInputMessage(err error) string {
	var ie *inputError
	if errors.As(err, &ie) {
		return ie.msg
	}
	return "invalid input"
}
