package users

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeAlreadyRegistered    = "users_already_registered"
	TextCodeNotFound             = "users_not_found"
	TextCodeRouteNotFound        = "users_route_not_found"
	TextCodeInvalidCredentials   = "users_invalid_credentials"
	TextCodePendingVerification  = "users_pending_verification"
	TextCodeMissingToken         = "users_missing_token"
	TextCodeTokenExpired         = "users_token_expired"
	TextCodeTokenMalformed       = "users_token_malformed"
	TextCodeRefreshNotRecognized = "users_refresh_not_recognized"
	TextCodeNotAllowed           = "users_not_allowed"
	TextCodeValidation           = "users_validation_failed"
)

// ErrAlreadyRegistered is returned when a registration hits an email already
// on file, whether through the pre-check or the unique constraint.
var ErrAlreadyRegistered = errors.New("email is already registered", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyRegistered).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is returned for lookups that match no user record.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrRouteNotFound is the uniform answer for unregistered routes.
var ErrRouteNotFound = errors.New("page not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRouteNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidCredentials keeps one indistinguishable message for unknown email
// and wrong password.
var ErrInvalidCredentials = errors.New("incorrect email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrPendingVerification blocks login until the verification token is redeemed.
var ErrPendingVerification = errors.New("account is pending email verification", errors.CategoryAuth).
	WithTextCode(TextCodePendingVerification).
	WithCode(errors.CodeUnauthorized)

// ErrMissingToken is returned when a guarded route receives no credential.
var ErrMissingToken = errors.New("missing authorization token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeForbidden)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeForbidden)

// ErrRefreshNotRecognized covers revoked or rotated refresh tokens: the value
// verifies nothing if no user record carries it.
var ErrRefreshNotRecognized = errors.New("refresh token not recognized", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshNotRecognized).
	WithCode(errors.CodeForbidden)

// ErrNotAllowed is the ownership guard rejection.
var ErrNotAllowed = errors.New("not allowed", errors.CategoryAuthz).
	WithTextCode(TextCodeNotAllowed).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsUniqueViolationError sniffs driver messages for unique-constraint hits so
// a concurrent duplicate registration maps to the same ErrAlreadyRegistered
// the pre-check produces.
func IsUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
