package aegisx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidCredentials maps a 401 from the login or register endpoints.
var ErrInvalidCredentials = goerrors.New("Invalid credentials", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrUserExists maps a 409 from the register endpoint.
var ErrUserExists = goerrors.New("User already exists", goerrors.CategoryConflict).
	WithTextCode("USER_EXISTS").
	WithCode(goerrors.CodeConflict)

// ErrNetwork covers transport-level failures (the status-0 case).
var ErrNetwork = goerrors.New("Network error - please check your connection", goerrors.CategoryOperation).
	WithTextCode("NETWORK_ERROR")

// ErrRefreshFailed is returned when the refresh exchange is rejected.
// It always comes with a cleared session.
var ErrRefreshFailed = goerrors.New("token refresh failed", goerrors.CategoryAuth).
	WithTextCode("REFRESH_FAILED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired signals a decoded expiry claim in the past.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed signals a token whose payload segment can not be decoded.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeBadRequest)

// ErrNoStoredSession is returned by RestoreSession when durable storage
// holds no access token.
var ErrNoStoredSession = goerrors.New("no stored session", goerrors.CategoryNotFound).
	WithTextCode("NO_STORED_SESSION").
	WithCode(goerrors.CodeNotFound)

// ErrFileRejected is returned when a file fails client-side validation
// before upload; Metadata carries the per-file messages.
var ErrFileRejected = goerrors.New("file failed validation", goerrors.CategoryValidation).
	WithTextCode("FILE_REJECTED")

// ErrFileTooLarge maps a 413 from the files API.
var ErrFileTooLarge = goerrors.New("File too large", goerrors.CategoryValidation).
	WithTextCode("FILE_TOO_LARGE")

// ErrFileTypeNotAllowed maps a 415 from the files API.
var ErrFileTypeNotAllowed = goerrors.New("File type not supported", goerrors.CategoryValidation).
	WithTextCode("INVALID_FILE_TYPE")

// ErrStorageExhausted maps a 507 from the files API.
var ErrStorageExhausted = goerrors.New("Not enough storage space", goerrors.CategoryOperation).
	WithTextCode("STORAGE_EXHAUSTED")

// RefreshFailedError is the transport's explicit refresh-failure
// variant. The original flow swallowed this case entirely; callers that
// want that behavior check IsRefreshFailed and drop the error, callers
// that want to handle it get the cause.
type RefreshFailedError struct {
	Cause error
}

func (e *RefreshFailedError) Error() string {
	if e.Cause == nil {
		return "request aborted: token refresh failed"
	}
	return fmt.Sprintf("request aborted: token refresh failed: %v", e.Cause)
}

func (e *RefreshFailedError) Unwrap() error {
	return e.Cause
}

// IsRefreshFailed reports whether err is the transport's
// refresh-failure variant.
func IsRefreshFailed(err error) bool {
	var rf *RefreshFailedError
	return errors.As(err, &rf)
}

// IsNetworkError reports whether err is the transport-level failure
// surfaced as the status-0 case.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == ErrNetwork.TextCode
	}
	return false
}

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
	return strings.Contains(err.Error(), "token is malformed")
}

// errWithMetadata returns a copy of sentinel carrying md. The shared
// sentinel is never mutated; the copy keeps it as its source so
// errors.Is still matches.
func errWithMetadata(sentinel *goerrors.Error, md map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(md)
}

// fileErrorFromStatus maps a non-2xx files API response to the
// user-facing taxonomy.
func fileErrorFromStatus(status int) *goerrors.Error {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return ErrFileTooLarge
	case http.StatusUnsupportedMediaType:
		return ErrFileTypeNotAllowed
	case http.StatusInsufficientStorage:
		return ErrStorageExhausted
	default:
		return goerrors.New("file request failed", goerrors.CategoryOperation).
			WithTextCode("FILE_REQUEST_FAILED").
			WithMetadata(map[string]any{"status": status})
	}
}

// authErrorFromStatus maps a non-2xx auth endpoint response to the
// user-facing taxonomy: 401 invalid credentials, 409 user exists,
// anything else a generic operation failure carrying the status.
func authErrorFromStatus(op string, status int) *goerrors.Error {
	switch status {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusConflict:
		return ErrUserExists
	default:
		return goerrors.New(fmt.Sprintf("%s failed", op), goerrors.CategoryOperation).
			WithTextCode("AUTH_REQUEST_FAILED").
			WithMetadata(map[string]any{
				"operation": op,
				"status":    status,
			})
	}
}
