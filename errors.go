package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds flags a failed credential check
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeEmptyPassword flags an empty password input
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeTooManyAttempts flags login attempt throttling
	TextCodeTooManyAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	// TextCodeNotVerified flags a login against an unverified account
	TextCodeNotVerified = "ACCOUNT_NOT_VERIFIED"
	// TextCodePasswordMismatch flags a failed password confirmation
	TextCodePasswordMismatch = "PASSWORD_MISMATCH"
	// TextCodeUsernameTaken flags a duplicate username at registration
	TextCodeUsernameTaken = "USERNAME_TAKEN"
	// TextCodeEmailTaken flags a duplicate email at registration
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeTokenInvalid is the single code for every action token
	// failure: expired, tampered, or already consumed all look the same
	// to the caller.
	TextCodeTokenInvalid = "TOKEN_INVALID"
	// TextCodeTokenExpired flags an expired session token
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags a session token we could not parse
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when credentials do not check out
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotVerified is returned when credentials are valid but the
// account email has not been verified yet. No session is created.
var ErrAccountNotVerified = goerrors.New("account email is not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotVerified).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrTooManyLoginAttempts enforces the login cool down window
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrPasswordMismatch is returned when a password confirmation differs
var ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrUsernameTaken is returned when the username is already registered
var ErrUsernameTaken = goerrors.New("username already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrEmailTaken is returned when the email is already registered
var ErrEmailTaken = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrTokenInvalid collapses every action token failure into one outcome so
// callers cannot probe whether a token was expired, tampered, or used.
var ErrTokenInvalid = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for expired session tokens
var ErrTokenExpired = goerrors.New("session token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens we cannot parse
var ErrTokenMalformed = goerrors.New("session token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
