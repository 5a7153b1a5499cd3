package errors

import (
	"errors"
	"fmt"
)

// Error kinds used across the session manager, the API client and the front-end
var (
	// Authentication errors: bad credentials, expired or invalid token
	ErrAuthentication = errors.New("authentication failed")

	// Input errors
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")

	// Transport and remote failures
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")

	// Local failures
	ErrInvalidState = errors.New("invalid session state")
	ErrStorage      = errors.New("token storage error")
)

// GenericRetryMessage is shown for unexpected and network failures
const GenericRetryMessage = "Something went wrong. Please try again."

// Error carries a kind, a user-displayable message and, for remote failures, the HTTP status.
type Error struct {
	Kind       error  // One of the Err* kinds above
	Message    string // Displayable reason, may be empty
	StatusCode int    // HTTP status when the error came from the remote API
	Err        error  // Underlying cause
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an Error of the given kind.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Authentication creates an AuthenticationError.
func Authentication(message string) *Error { return New(ErrAuthentication, message) }

// Validation creates a ValidationError.
func Validation(message string) *Error { return New(ErrValidation, message) }

// Conflict creates a ConflictError.
func Conflict(message string) *Error { return New(ErrConflict, message) }

// InvalidState creates an InvalidStateError.
func InvalidState(message string) *Error { return New(ErrInvalidState, message) }

// Network wraps a transport failure.
func Network(err error) *Error {
	return &Error{Kind: ErrNetwork, Message: "unable to reach the server", Err: err}
}

// Storage wraps a token store failure.
func Storage(err error) *Error {
	return &Error{Kind: ErrStorage, Message: "unable to access stored credentials", Err: err}
}

// FromStatus maps an HTTP status and the server's message onto the taxonomy.
func FromStatus(status int, message string) *Error {
	var kind error
	switch {
	case status == 400 || status == 422:
		kind = ErrValidation
	case status == 401 || status == 403:
		kind = ErrAuthentication
	case status == 404:
		kind = ErrNotFound
	case status == 409:
		kind = ErrConflict
	default:
		kind = ErrServer
	}
	return &Error{Kind: kind, Message: message, StatusCode: status}
}

// UserMessage returns a message suitable for displaying to the user.
// Authentication, validation, conflict and not-found failures surface their reason inline;
// everything else collapses to a generic retry-able message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if Is(err, ErrNetwork) || Is(err, ErrServer) || Is(err, ErrStorage) {
		return GenericRetryMessage
	}
	var e *Error
	if As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return capitalise(e.Kind.Error())
	}
	return GenericRetryMessage
}

// IsRetryable reports whether the failure is transient (transport or 5xx).
func IsRetryable(err error) bool {
	return Is(err, ErrNetwork) || Is(err, ErrServer)
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
