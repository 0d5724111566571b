package auth

import (
	"errors"
	"fmt"
)

// Kind classifies service errors for the transport layer
type Kind int

const (
	// KindValidation is malformed input or a duplicate email
	KindValidation Kind = iota + 1
	// KindAuth is a failed credential check
	KindAuth
	// KindNotFound is an unknown, used or expired reset token or a missing user
	KindNotFound
	// KindDependency is a store or mail failure
	KindDependency
)

// GenericMessage is shown to clients instead of dependency failure details
const GenericMessage = "something went wrong, please try again"

// Sentinel causes wrapped by *Error
var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrBadCredentials        = errors.New("invalid email or password")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrEmailDeliveryFailed   = errors.New("email delivery failed")
	ErrUnavailable           = errors.New("dependency unavailable")
	ErrUserNotFound          = errors.New("user not found")
)

// String returns the name used in API error responses
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindNotFound:
		return "NotFoundError"
	case KindDependency:
		return "DependencyError"
	default:
		return "UnknownError"
	}
}

// Error is returned by Service operations. Message is safe to show to clients.
type Error struct {
	Err     error
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func validationError(message string, err error) error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func authError(err error) error {
	return &Error{Kind: KindAuth, Message: err.Error(), Err: err}
}

func notFoundError(err error) error {
	return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
}

func dependencyError(cause, err error) error {
	return &Error{Kind: KindDependency, Message: GenericMessage, Err: fmt.Errorf("%w: %w", cause, err)}
}
