package domain

import "errors"

// ErrorKind is the machine-usable category rendered at the API boundary.
type ErrorKind string

const (
	KindValidation       ErrorKind = "VALIDATION"
	KindConflict         ErrorKind = "CONFLICT"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindUnauthorized     ErrorKind = "UNAUTHORIZED"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindToken            ErrorKind = "TOKEN_EXPIRED_OR_INVALID"
	KindTransportFailure ErrorKind = "TRANSPORT_FAILURE"
	KindInternal         ErrorKind = "INTERNAL"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrWeakPassword      = errors.New("password is too weak")
	ErrDuplicateEmail    = errors.New("a user with that email already exists")
	ErrDuplicateUsername = errors.New("a user with that username already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrUnauthorized       = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is not active yet")
	ErrForbidden          = errors.New("you are not allowed to modify this user")
	ErrInvalidOperation   = errors.New("invalid operation")

	ErrInvalidToken     = errors.New("token is invalid or expired")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenSignature   = errors.New("token signature is invalid")
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenInvalid     = errors.New("token is invalid")
	ErrTokenBlacklisted = errors.New("token is blacklisted")

	ErrTransportFailure = errors.New("email delivery failed")
)

// KindOf classifies err into the boundary taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrWeakPassword):
		return KindValidation
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrDuplicateUsername):
		return KindConflict
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInactiveAccount):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidOperation):
		return KindForbidden
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenSignature),
		errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenBlacklisted):
		return KindToken
	case errors.Is(err, ErrTransportFailure):
		return KindTransportFailure
	default:
		return KindInternal
	}
}
